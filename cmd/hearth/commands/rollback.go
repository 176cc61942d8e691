package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [snapshot-id]",
		Short: "Restore the live tree from a snapshot",
		Long: "Rollback restores the named snapshot, or the newest one that passes verification.\n" +
			"Only files that differ are restored; their current bytes are quarantined first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			result, err := c.app.Rollback(cmd.Context(), c.target(), id)
			if err != nil {
				return err
			}
			return c.printRollback(cmd, result)
		},
	}
}

func (c *CLI) newSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List recorded snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := c.app.Snapshots(cmd.Context(), c.target())
			if err != nil {
				return err
			}
			return c.printSnapshots(cmd, snaps)
		},
	}
}

func (c *CLI) newQuarantineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quarantine",
		Short: "List files moved aside because they failed verification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.Quarantined(cmd.Context(), c.target())
			if err != nil {
				return err
			}
			return c.printQuarantine(cmd, entries)
		},
	}
}
