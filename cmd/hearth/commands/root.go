// Package commands implements the CLI commands for hearth.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/hearth/internal/app"
	"go.trai.ch/hearth/internal/build"
	"go.trai.ch/hearth/internal/core/domain"
)

// CLI represents the command line interface for hearth.
type CLI struct {
	app     Application
	console Console
	rootCmd *cobra.Command

	instance   string
	jsonOutput bool
	verbose    bool
	workers    int
	noRollback bool
}

// Application represents the application logic interface.
type Application interface {
	Install(ctx context.Context, inst app.Instance) (domain.InstallResult, error)
	Status(ctx context.Context, inst app.Instance) (*domain.DiffReport, error)
	Rollback(ctx context.Context, inst app.Instance, snapshotID string) (domain.RollbackResult, error)
	Repair(ctx context.Context, inst app.Instance, names []string) (domain.InstallResult, error)
	Regenerate(ctx context.Context, inst app.Instance, reason string) (*domain.Lockfile, error)
	Clean(ctx context.Context, inst app.Instance, opts app.CleanOptions) (app.CleanResult, error)
	Snapshots(ctx context.Context, inst app.Instance) ([]domain.Snapshot, error)
	Quarantined(ctx context.Context, inst app.Instance) ([]domain.QuarantineEntry, error)
}

// Console is the logger configuration driven by global flags.
type Console interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// New creates a new CLI instance with the given app. console may be nil.
func New(a Application, console Console) *CLI {
	rootCmd := &cobra.Command{
		Use:           "hearth",
		Short:         "Deterministic installs and crash-safe recovery for game instances",
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

	c := &CLI{
		app:     a,
		console: console,
		rootCmd: rootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.instance, "instance", "C", ".", "Instance root directory")
	flags.BoolVar(&c.jsonOutput, "json", false, "Write logs and results as JSON")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log every decision, including promotions")
	flags.IntVar(&c.workers, "workers", 0, "Override the number of concurrent downloads")
	flags.BoolVar(&c.noRollback, "no-rollback", false, "Do not roll back automatically when an install fails")

	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if c.console != nil {
			c.console.SetJSON(c.jsonOutput)
			c.console.SetVerbose(c.verbose)
		}
	}

	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newRollbackCmd())
	rootCmd.AddCommand(c.newRepairCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newSnapshotsCmd())
	rootCmd.AddCommand(c.newQuarantineCmd())
	rootCmd.AddCommand(c.newCleanCmd())
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

// JSON reports whether --json was given. Valid after Execute.
func (c *CLI) JSON() bool {
	return c.jsonOutput
}

func (c *CLI) target() app.Instance {
	return app.Instance{Root: c.instance, Workers: c.workers, NoRollback: c.noRollback}
}
