package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/depot/internal/core/domain"
)

func (c *CLI) newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List the installable game versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, _ := cmd.Flags().GetString("type")

			var filter domain.ReleaseType
			if typ != "" {
				filter = domain.ParseReleaseType(typ)
			}

			versions, err := c.app.RemoteVersions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, v := range versions {
				released := "-"
				if !v.ReleaseTime.IsZero() {
					released = v.ReleaseTime.Format(time.DateOnly)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Type, released)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringP("type", "t", "", "Only list one release type: release, snapshot or old")
	return cmd
}
