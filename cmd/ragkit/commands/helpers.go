package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragkit/internal/chunking"
	"github.com/54b3r/ragkit/internal/embedder"
	"github.com/54b3r/ragkit/internal/events"
	"github.com/54b3r/ragkit/internal/ingestion"
	"github.com/54b3r/ragkit/internal/lexical"
	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/provider"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/resilience"
	"github.com/54b3r/ragkit/internal/retrieval"
	"github.com/54b3r/ragkit/internal/vector"
)

// stack holds the collaborators shared by every command that touches an
// index. Close releases the embedding cache and the Qdrant connection.
type stack struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	embedder rag.Embedder
	opener   vector.Opener
	qdrant   *vector.QdrantOpener
	lexical  *lexical.Index
	vector   *vector.Index
	selector *chunking.Selector
	searcher *retrieval.Searcher

	closers []func()
}

// stackOptions tunes buildStack.
type stackOptions struct {
	// requireEmbedder fails the build when no embedder can be configured.
	// Otherwise the failure surfaces on the first vector operation so
	// bm25-only use works without embedding credentials.
	requireEmbedder bool

	// registry receives the pipeline metrics. Default: a private registry.
	registry prometheus.Registerer
}

// buildStack wires the indexes, chunkers and searcher from the environment.
func buildStack(log *slog.Logger, opts stackOptions) (*stack, error) {
	reg := opts.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &stack{log: log, metrics: metrics.New(reg)}

	dims, err := s.buildEmbedder(opts.requireEmbedder)
	if err != nil {
		return nil, err
	}

	s.opener, s.qdrant, err = buildVectorOpener(dims)
	if err != nil {
		s.Close()
		return nil, err
	}
	if s.qdrant != nil {
		s.closers = append(s.closers, func() { _ = s.qdrant.Close() })
	}

	s.lexical = lexical.New(lexical.Config{
		DefaultOperator: lexical.ParseOperator(os.Getenv("LEXICAL_DEFAULT_OPERATOR")),
		Logger:          log,
	})
	s.vector, err = vector.New(vector.Config{
		Opener:    s.opener,
		Embedder:  s.embedder,
		BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", vector.DefaultBatchSize),
		Logger:    log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	semantic, err := chunking.NewSemantic(s.embedder, chunking.SemanticConfig{
		TokenLimit:          getEnvInt("SEMANTIC_TOKEN_LIMIT", chunking.DefaultTokenLimit),
		BufferSize:          getEnvInt("SEMANTIC_BUFFER_SIZE", chunking.DefaultBufferSize),
		ThresholdPercentile: getEnvFloat("SEMANTIC_THRESHOLD_PERCENTILE", chunking.DefaultThresholdPercentile),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.selector = chunking.NewSelector(semantic)

	s.searcher, err = retrieval.New(retrieval.Config{
		Lexical: s.lexical,
		Vector:  s.vector,
		Metrics: s.metrics,
		Logger:  log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// buildEmbedder sets s.embedder and returns the vector dimensionality.
func (s *stack) buildEmbedder(required bool) (int, error) {
	if required {
		if err := embedder.Validate(s.log); err != nil {
			return 0, err
		}
	}

	emb, err := embedder.NewFromEnv(embedder.Options{
		Logger:     s.log,
		Metrics:    s.metrics,
		Resilience: resilience.FromEnv(),
	})
	if err != nil {
		if required {
			return 0, fmt.Errorf("failed to initialise embedder: %w", err)
		}
		s.log.Warn("embedder unavailable; vector and hybrid search will fail", slog.Any("error", err))
		s.embedder = unavailableEmbedder{err: err}
		return embedder.DefaultDimensions(os.Getenv("EMBEDDING_PROVIDER")), nil
	}

	s.log.Info("embedder initialised",
		slog.String("provider", emb.Settings.Provider),
		slog.String("model", emb.Settings.Model),
		slog.Int("dimensions", emb.Settings.Dimensions),
	)
	s.embedder = emb
	s.closers = append(s.closers, emb.Close)
	return emb.Settings.Dimensions, nil
}

// Close releases everything the stack opened, in reverse order.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// buildPipeline returns an ingestion pipeline over the stack's indexes and
// the events publisher selected by NATS_URL. The returned func closes the
// publisher.
func (s *stack) buildPipeline() (*ingestion.Pipeline, func(), error) {
	exec := resilience.NewExecutor(resilience.FromEnv(), s.log)
	publisher, err := events.NewFromEnv(exec, s.log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect events publisher: %w", err)
	}

	p, err := ingestion.NewPipeline(&ingestion.Config{
		Lexical:     s.lexical,
		Vector:      s.vector,
		Chunkers:    s.selector,
		Publisher:   publisher,
		Metrics:     s.metrics,
		Concurrency: getEnvInt("INGEST_CONCURRENCY", 1),
		Logger:      s.log,
	})
	if err != nil {
		publisher.Close()
		return nil, nil, err
	}
	return p, publisher.Close, nil
}

// buildVectorOpener selects the vector store from VECTOR_BACKEND
// (sqlite or qdrant). The Qdrant opener is also returned so callers can
// register its readiness probe and close it.
func buildVectorOpener(dimensions int) (vector.Opener, *vector.QdrantOpener, error) {
	switch backend := strings.ToLower(getEnvOrDefault("VECTOR_BACKEND", "sqlite")); backend {
	case "sqlite":
		return vector.SQLiteOpener{}, nil, nil
	case "qdrant":
		q := vector.NewQdrantOpener(&vector.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			VectorSize: uint64(dimensions), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		return q, q, nil
	default:
		return nil, nil, rag.WrapError(rag.ErrInvalidArgument, "vector backend",
			fmt.Errorf("unknown VECTOR_BACKEND %q (valid values: sqlite, qdrant)", backend))
	}
}

// buildCompleter constructs the chat collaborator used by the eval
// commands, wrapped in the resilience executor.
func buildCompleter(ctx context.Context, log *slog.Logger) (*provider.Completer, error) {
	cfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)
	exec := resilience.NewExecutor(resilience.FromEnv(), log)
	return provider.NewCompleter(chatModel, exec, "chat."+string(cfg.Backend), log), nil
}

// unavailableEmbedder reports the configuration error that prevented the
// real embedder from being built.
type unavailableEmbedder struct {
	err error
}

func (u unavailableEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, rag.WrapError(rag.ErrDependencyFailure, "embed", u.err)
}

// parseModes parses a list of search modes; an empty list selects all.
func parseModes(values []string) ([]rag.SearchMode, error) {
	var modes []rag.SearchMode
	for _, v := range splitList(values) {
		m, err := rag.ParseSearchMode(v)
		if err != nil {
			return nil, err
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return rag.Modes, nil
	}
	return modes, nil
}

// splitList flattens repeated and comma-separated flag values, dropping
// blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// requireDir returns NotFound when path is not an existing directory.
func requireDir(path, what string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return rag.NotFoundf("%s '%s' not found", what, path)
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable key, or
// defaultVal if the variable is unset or empty.
func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt returns the integer value of the environment variable key, or
// defaultVal if the variable is unset, empty, or not a valid integer.
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvFloat is getEnvInt for float64 values.
func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
