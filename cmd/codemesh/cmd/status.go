package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the indexing state of the codebase configured by the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wireUp()
			if err != nil {
				return err
			}
			defer c.cleanup()

			status, err := c.pipeline.Status(cmd.Context(), c.cfg.Root, c.cfg.ContextName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n", status.Registry.State)
			switch status.Registry.State {
			case "indexing":
				fmt.Fprintf(cmd.OutOrStdout(), "progress: %d%%\n", status.Registry.Progress)
			case "failed":
				fmt.Fprintf(cmd.OutOrStdout(), "message: %s (last progress %d%%)\n", status.Registry.Message, status.Registry.LastProgress)
			}
			if status.Collection != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "collection: %s (dimension %d, hybrid %v)\n",
					status.Collection.Name, status.Collection.Dimension, status.Collection.IsHybrid)
				fmt.Fprintf(cmd.OutOrStdout(), "documents: %d\n", status.Collection.DocumentCount)
				fmt.Fprintf(cmd.OutOrStdout(), "storage: %d bytes\n", status.Collection.StorageBytes)
				fmt.Fprintf(cmd.OutOrStdout(), "created: %s\n", status.Collection.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
}
