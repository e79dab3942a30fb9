package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nsethi/codemesh/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server over stdio for the codebase configured by the current config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wireUp()
			if err != nil {
				return err
			}
			defer c.cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(c.pipeline, c.cfg.Hybrid)
			return server.Run(ctx)
		},
	}
}
