package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the index for the codebase configured by the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wireUp()
			if err != nil {
				return err
			}
			defer c.cleanup()

			if err := c.pipeline.ClearIndex(c.cfg.Root, c.cfg.ContextName); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
			return nil
		},
	}
}
