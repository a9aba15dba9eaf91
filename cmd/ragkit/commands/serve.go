package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/tools"
	"github.com/54b3r/ragkit/internal/version"
)

// NewServeCmd constructs the `ragkit serve` command, which exposes the
// search tool to MCP clients over stdio.
func NewServeCmd() *cobra.Command {
	var indexPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search tool over MCP stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing one tool,
"search", over the index at --index-path.

Tool arguments: query (required), maxResults (default 5), sourceIds,
mode (bm25, vector or hybrid; default bm25).

Logs go to stderr; stdout carries only the protocol.

Examples:
  ragkit serve --index-path ./index`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := requireDir(indexPath, "Index directory"); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			s, err := buildStack(log, stackOptions{})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer s.Close()

			tool := tools.NewSearchTool(indexPath, s.searcher)
			srv := tools.NewMCPServer(tool, version.Version)

			log.Info("serve: MCP stdio server starting",
				slog.String("index_path", indexPath),
				slog.String("version", version.Version),
			)
			return tools.ServeStdio(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout(), log)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory to search")
	_ = cmd.MarkFlagRequired("index-path")

	return cmd
}
