package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install or repair the instance to match its lockfile",
		Long: "Install generates the lockfile on first use, then downloads, verifies and promotes every\n" +
			"missing or corrupt artifact. Satisfied artifacts are never touched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := c.app.Install(cmd.Context(), c.target())
			if result.RolledBackTo != "" {
				c.printRolledBack(cmd, result.RolledBackTo)
			}
			if err != nil {
				return err
			}
			return c.printInstall(cmd, "install", result)
		},
	}
}

func (c *CLI) newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair [artifacts...]",
		Short: "Verify the named artifacts, or all, and re-fetch only the broken ones",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := c.app.Repair(cmd.Context(), c.target(), args)
			if err != nil {
				return err
			}
			return c.printInstall(cmd, "repair", result)
		},
	}
}
