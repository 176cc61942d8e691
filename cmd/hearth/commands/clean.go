package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/hearth/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove leftover staging files and snapshots beyond the retention count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quarantine, _ := cmd.Flags().GetBool("quarantine")
			result, err := c.app.Clean(cmd.Context(), c.target(), app.CleanOptions{Quarantine: quarantine})
			if err != nil {
				return err
			}
			return c.printClean(cmd, result)
		},
	}

	cmd.Flags().BoolP("quarantine", "q", false, "Also delete preserved quarantine entries")

	return cmd
}
