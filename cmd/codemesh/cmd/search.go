package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsethi/codemesh/internal/pipeline"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var extensions []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wireUp()
			if err != nil {
				return err
			}
			defer c.cleanup()

			if limit <= 0 {
				limit = c.cfg.Search.DefaultLimit
			}
			result, err := c.pipeline.Search(cmd.Context(), c.cfg.Root, c.cfg.ContextName, args[0], pipeline.SearchOptions{
				TopK:       limit,
				Extensions: extensions,
			})
			if err != nil {
				return err
			}
			if result.InProgress {
				fmt.Fprintln(cmd.OutOrStdout(), "(index is currently being updated; results may be incomplete)")
			}
			if len(result.Hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}
			for i, h := range result.Hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s:%d-%d (%s, score %.4f)\n",
					i+1, h.RelativePath, h.StartLine, h.EndLine, h.Language, h.Score)
				fmt.Fprintln(cmd.OutOrStdout(), indent(h.Content))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (default from config)")
	cmd.Flags().StringArrayVar(&extensions, "ext", nil, "restrict results to these file extensions, e.g. --ext .go")
	return cmd
}

func indent(s string) string {
	out := "    "
	for _, r := range s {
		out += string(r)
		if r == '\n' {
			out += "    "
		}
	}
	return out
}
