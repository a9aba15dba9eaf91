// Package metrics registers the Prometheus collectors shared by the
// retrieval pipeline: search, ingestion and embedding cache counters.
// HTTP metrics stay with the server package.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing, so components can run without a registry.
type Metrics struct {
	// searchRequestsTotal counts searches by mode and outcome.
	searchRequestsTotal *prometheus.CounterVec

	// searchDurationSeconds records search latency per mode.
	searchDurationSeconds *prometheus.HistogramVec

	// ingestFilesTotal counts ingested files by outcome.
	ingestFilesTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks written to both indexes.
	ingestChunksTotal prometheus.Counter

	// embeddingCacheTotal counts cache lookups by result: "hit" or "miss".
	embeddingCacheTotal *prometheus.CounterVec
}

// New registers every collector against reg. promauto.With(reg) keeps
// tests hermetic when they pass a fresh prometheus.Registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		searchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of searches, partitioned by mode and outcome.",
		}, []string{"mode", "outcome"}),

		searchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragkit",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of searches, partitioned by mode.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"mode"}),

		ingestFilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Total number of files processed by ingestion, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks written to the lexical and vector indexes.",
		}),

		embeddingCacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragkit",
			Subsystem: "embedding",
			Name:      "cache_total",
			Help:      "Embedding cache lookups, partitioned by result.",
		}, []string{"result"}),
	}
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(mode string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searchRequestsTotal.WithLabelValues(mode, outcome(err)).Inc()
	m.searchDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveIngest records one ingested file and its chunk count.
func (m *Metrics) ObserveIngest(chunks int, err error) {
	if m == nil {
		return
	}
	m.ingestFilesTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil && chunks > 0 {
		m.ingestChunksTotal.Add(float64(chunks))
	}
}

// ObserveCache records embedding cache hits and misses.
func (m *Metrics) ObserveCache(hits, misses int) {
	if m == nil {
		return
	}
	if hits > 0 {
		m.embeddingCacheTotal.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		m.embeddingCacheTotal.WithLabelValues("miss").Add(float64(misses))
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
