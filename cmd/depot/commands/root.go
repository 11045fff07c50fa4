// Package commands implements the CLI commands for depot.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/depot/internal/app"
	"go.trai.ch/depot/internal/build"
	"go.trai.ch/depot/internal/core/domain"
)

// CLI represents the command line interface for depot.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Configure(opts app.Options)
	Install(ctx context.Context, id string, opts app.InstallOptions) (app.Result, error)
	Verify(ctx context.Context, id string) (app.Result, error)
	ResolveVersion(id string, preservePatches bool) (domain.VersionDescriptor, error)
	MergeFile(path string) ([]domain.Library, error)
	RemoteVersions(ctx context.Context, releaseType domain.ReleaseType) ([]domain.RemoteVersion, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "depot",
		Short:         "Install and repair game versions",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the depot.yaml configuration file")
	rootCmd.PersistentFlags().IntP("parallelism", "j", 0, "Maximum number of concurrent tasks")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		path, _ := cmd.Flags().GetString("config")
		parallelism, _ := cmd.Flags().GetInt("parallelism")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		c.app.Configure(app.Options{
			ConfigPath:  path,
			Parallelism: parallelism,
			JSONLogs:    jsonLogs,
		})
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newVerifyCmd())
	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newMergeCmd())
	rootCmd.AddCommand(c.newVersionsCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
