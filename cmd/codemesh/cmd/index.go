package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsethi/codemesh/internal/pipeline"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the codebase configured by the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wireUp()
			if err != nil {
				return err
			}
			defer c.cleanup()

			ctx := cmd.Context()
			report := func(p pipeline.Progress) {
				if p.CurrentFile != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "[%3d%%] %s: %s\n", p.Percentage, p.Phase, p.CurrentFile)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "[%3d%%] %s\n", p.Percentage, p.Phase)
				}
			}

			if force {
				if err := c.pipeline.ClearIndex(c.cfg.Root, c.cfg.ContextName); err != nil {
					return fmt.Errorf("clear existing index: %w", err)
				}
			}

			exists, err := c.store.HasCollection(ctx, pipeline.CollectionName(c.cfg.Root, c.cfg.ContextName))
			if err != nil {
				return fmt.Errorf("check existing index: %w", err)
			}
			if !exists {
				return c.pipeline.FullIndex(ctx, c.cfg.Root, c.cfg.ContextName, c.cfg.Hybrid, report)
			}

			delta, err := c.pipeline.ReindexByChange(ctx, c.cfg.Root, c.cfg.ContextName, c.cfg.Hybrid, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d, modified %d, removed %d\n",
				len(delta.Added), len(delta.Modified), len(delta.Removed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard any existing index before reindexing")
	return cmd
}
