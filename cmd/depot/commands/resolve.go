package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <version>",
		Short: "Print the flattened descriptor of an installed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preserve, _ := cmd.Flags().GetBool("preserve-patches")

			v, err := c.app.ResolveVersion(args[0], preserve)
			if err != nil {
				return err
			}
			return writeJSON(cmd, v)
		},
	}
	cmd.Flags().BoolP("preserve-patches", "p", false, "Keep every inheritance layer as a patch")
	return cmd
}

func (c *CLI) newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <file>",
		Short: "Deduplicate the libraries of a version document or library list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			libs, err := c.app.MergeFile(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, libs)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
