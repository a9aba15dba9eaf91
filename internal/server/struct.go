package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragkit/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// IndexPath is the index directory every search is run against. Required.
	IndexPath string
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// SearchTimeout bounds a single /api/search request (default: 60s).
	SearchTimeout time.Duration
	// MaxResults caps maxResults in search requests (default: 100).
	MaxResults int
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the HTTP metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// searcher is the interface handleSearch calls.
// *retrieval.Searcher satisfies it; tests inject a fake.
type searcher interface {
	Search(ctx context.Context, indexPath, query string, mode rag.SearchMode, maxResults int, sourceIDs []string) ([]rag.SearchResult, error)
}

// Server is the HTTP server that exposes index search.
type Server struct {
	// searcher answers POST /api/search.
	searcher searcher
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wired router, also used directly by tests.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the HTTP collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the search text.
	Query string `json:"query"`
	// MaxResults caps the number of results. Defaults to 10.
	MaxResults int `json:"maxResults,omitempty"`
	// SourceIDs restricts results to these source ids.
	SourceIDs []string `json:"sourceIds,omitempty"`
	// Mode is bm25, vector or hybrid. Defaults to bm25.
	Mode string `json:"mode,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Mode is the search mode that produced Results.
	Mode rag.SearchMode `json:"mode"`
	// Results are ordered best first.
	Results []rag.SearchResult `json:"results"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
}
