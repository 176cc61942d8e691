package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Compare the live tree with the lockfile without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := c.app.Status(cmd.Context(), c.target())
			if err != nil {
				return err
			}
			return c.printStatus(cmd, report)
		},
	}
}
