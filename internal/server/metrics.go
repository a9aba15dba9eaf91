package server

// Prometheus collectors for the HTTP server and the middleware that records them.

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the chi route pattern rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the router,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// httpInFlight is the number of requests currently being served.
	httpInFlight prometheus.Gauge

	// httpRejectedTotal counts search requests refused before the handler
	// ran, by reason: unauthorized, invalid_token or rate_limited.
	httpRejectedTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragkit",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", labelHandler}),

		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragkit",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),

		httpRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests refused by authentication or rate limiting, by reason.",
		}, []string{"reason"}),
	}
}

// Rejection reasons.
const (
	reasonUnauthorized = "unauthorized"
	reasonInvalidToken = "invalid_token"
	reasonRateLimited  = "rate_limited"
)

// reject counts a refused request. Safe on a nil receiver.
func (m *serverMetrics) reject(reason string) {
	if m == nil {
		return
	}
	m.httpRejectedTotal.WithLabelValues(reason).Inc()
}

// middleware records request count, latency and in-flight requests.
func (m *serverMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		handler := routePattern(r)
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(statusOf(ww))).Inc()
	})
}

// routePattern returns the matched chi pattern, or "unknown" for requests
// that matched no route. Raw paths are never used as label values.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}
