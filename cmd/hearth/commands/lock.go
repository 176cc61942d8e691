package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage the lockfile",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(c.newLockRegenerateCmd())
	return cmd
}

func (c *CLI) newLockRegenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Replace the lockfile from the desired-state descriptor",
		Long: "Regenerate consults upstream metadata and replaces the lockfile. The previous lockfile is kept\n" +
			"next to it and the replacement is recorded in pack/lock.audit. Run install afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			lock, err := c.app.Regenerate(cmd.Context(), c.target(), reason)
			if err != nil {
				return err
			}
			return c.printLockfile(cmd, lock)
		},
	}
	cmd.Flags().StringP("reason", "r", "", "Why the lockfile is replaced (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
