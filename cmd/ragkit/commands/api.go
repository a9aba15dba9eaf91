package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/server"
)

// NewAPICmd constructs the `ragkit api` command, which serves search over
// HTTP.
func NewAPICmd() *cobra.Command {
	var indexPath string
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "api",
		Short: "Start the HTTP search API",
		Long: `Start the HTTP API over the index at --index-path.

Endpoints:
  GET  /api/health   liveness
  GET  /api/ready    index directory, vector store and Qdrant probes
  POST /api/search   {"query", "maxResults", "sourceIds", "mode"}
  GET  /metrics      Prometheus metrics

Environment variables:
  RAGKIT_API_KEY      Bearer token required on /api/search (unset: no auth)
  RAGKIT_RATE_LIMIT   Requests per second per client IP (default: 10)
  RAGKIT_RATE_BURST   Burst per client IP (default: 20)

Examples:
  ragkit api --index-path ./index
  ragkit api --index-path ./index --port 9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := requireDir(indexPath, "Index directory"); err != nil {
				return fmt.Errorf("api: %w", err)
			}
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("RAGKIT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("RAGKIT_PORT", port)
			}

			s, err := buildStack(log, stackOptions{registry: prometheus.DefaultRegisterer})
			if err != nil {
				return fmt.Errorf("api: %w", err)
			}
			defer s.Close()

			pingers := []server.Pinger{
				server.NewIndexPinger(indexPath),
				server.NewVectorStorePinger(s.opener, indexPath),
			}
			if s.qdrant != nil {
				client, err := s.qdrant.Client()
				if err != nil {
					log.Warn("api: qdrant client unavailable, readiness probe skipped", slog.Any("error", err))
				} else {
					pingers = append(pingers, server.NewQdrantPinger(client))
				}
			}

			srv, err := server.New(s.searcher, &server.Config{
				IndexPath: indexPath,
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: getEnvFloat("RAGKIT_RATE_LIMIT", 0),
				RateBurst: getEnvInt("RAGKIT_RATE_BURST", 0),
				APIKey:    os.Getenv("RAGKIT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("api: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory to search")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	_ = cmd.MarkFlagRequired("index-path")

	return cmd
}
