// Package server implements the HTTP API that exposes index search over
// REST, with liveness, readiness and Prometheus endpoints.
// The server is started by the `ragkit api` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/rag"
)

const (
	// defaultMaxResults is used when a search request omits maxResults.
	defaultMaxResults = 10

	// maxRequestBytes bounds the size of a search request body.
	maxRequestBytes = 1 << 20
)

// New constructs a Server from the provided searcher and config.
func New(s searcher, cfg *Config) (*Server, error) {
	if s == nil {
		return nil, fmt.Errorf("server: searcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if strings.TrimSpace(cfg.IndexPath) == "" {
		return nil, fmt.Errorf("server: index path must not be empty")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 60 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("server: RAGKIT_API_KEY is not set, authentication is disabled")
	}

	srv := &Server{
		searcher: s,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, srv.metrics.reject, log)
	srv.stopRL = stop

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(jsonRecoverer)
	r.Use(srv.metrics.middleware)

	r.Get("/api/health", srv.handleHealth)
	r.Get("/api/ready", srv.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(cfg.APIKey, srv.metrics.reject))
		r.Use(rl.middleware)
		r.Post("/api/search", srv.handleSearch)
	})

	srv.handler = r
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

// Handler returns the wired router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("ragkit api listening",
			slog.String("addr", "http://"+s.httpServer.Addr),
			slog.String("index_path", s.cfg.IndexPath),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleSearch handles POST /api/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Mode == "" {
		req.Mode = string(rag.ModeBM25)
	}
	mode, err := rag.ParseSearchMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	req.MaxResults = min(req.MaxResults, s.cfg.MaxResults)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()

	results, err := s.searcher.Search(ctx, s.cfg.IndexPath, req.Query, mode, req.MaxResults, req.SourceIDs)
	if err != nil {
		status := statusFor(err)
		log.Error("search failed",
			slog.String("mode", string(mode)),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		return
	}
	if results == nil {
		results = []rag.SearchResult{}
	}

	log.Debug("search complete",
		slog.String("mode", string(mode)),
		slog.Int("results", len(results)),
	)
	writeJSON(w, http.StatusOK, searchResponse{Mode: mode, Results: results})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case rag.IsKind(err, rag.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case rag.IsKind(err, rag.ErrInvalidArgument):
		return http.StatusBadRequest
	case rag.IsKind(err, rag.ErrInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case rag.IsKind(err, rag.ErrDependencyFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
