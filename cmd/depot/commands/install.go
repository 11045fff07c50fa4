package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/depot/internal/app"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Install a game version and everything it needs to run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, _ := cmd.Flags().GetString("loader")

			res, err := c.app.Install(cmd.Context(), args[0], app.InstallOptions{Loader: loader})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "installed", res)
			return nil
		},
	}
	cmd.Flags().StringP("loader", "l", "", "Install a loader on top, as kind:version (e.g. fabric:0.14.21)")
	return cmd
}

func (c *CLI) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <version>",
		Short: "Check an installed version and repair missing or corrupt files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), "verified", res)
			return nil
		},
	}
}

func printResult(w io.Writer, verb string, res app.Result) {
	r := res.Report
	_, _ = fmt.Fprintf(w, "%s %s: %d downloaded, %d up to date, %d registered, %d failed\n",
		verb, res.Version.ID, r.Downloaded, r.Cached, r.Registered, r.Failed)
}
