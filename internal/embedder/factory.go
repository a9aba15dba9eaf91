package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/resilience"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-large"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-large.
	defaultOpenAIDimensions = 3072
)

// Settings describes the resolved embedding provider.
type Settings struct {
	Provider   string
	Model      string
	Dimensions int
}

// DefaultDimensions returns the default embedding vector size for the
// given backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// resolveProvider returns EMBEDDING_PROVIDER, falling back to
// MODEL_PROVIDER when that names an embedding-capable backend, then openai.
func resolveProvider() string {
	if p := getEnv("EMBEDDING_PROVIDER"); p != "" {
		return p
	}
	switch p := getEnv("MODEL_PROVIDER"); p {
	case "ollama", "openai", "azure":
		return p
	}
	return "openai"
}

// NewProviderFromEnv constructs the bare provider embedder.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER if it is ollama/openai/azure, else openai
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions (ollama: 768, openai/azure: 3072)
func NewProviderFromEnv() (rag.Embedder, Settings, error) {
	backend := resolveProvider()

	switch backend {
	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		return NewOllamaEmbedder(&OllamaConfig{
				Host:  host,
				Model: model,
			}), Settings{
				Provider:   backend,
				Model:      model,
				Dimensions: DefaultDimensions(backend),
			}, nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, Settings{}, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		dims := getEnvInt("EMBEDDING_DIMENSIONS", 0)
		return NewOpenAIEmbedder(&OpenAIConfig{
				BaseURL:    getEnvOrDefault("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
				APIKey:     apiKey,
				Model:      model,
				Dimensions: dims,
			}), Settings{
				Provider:   backend,
				Model:      model,
				Dimensions: DefaultDimensions(backend),
			}, nil

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, Settings{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, Settings{}, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		return NewOpenAIEmbedder(&OpenAIConfig{
				BaseURL:    endpoint,
				APIKey:     apiKey,
				Model:      model,
				Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
				Azure:      true,
				APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-10-21"),
			}), Settings{
				Provider:   backend,
				Model:      model,
				Dimensions: DefaultDimensions(backend),
			}, nil

	default:
		return nil, Settings{}, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", backend)
	}
}

// Options configures the layers NewFromEnv puts around the provider.
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Resilience resilience.Config
}

// Stack is a fully wrapped embedder. Close releases the cache connection.
type Stack struct {
	rag.Embedder
	Settings Settings

	redis rueidis.Client
}

// Close releases the resources held by the stack.
func (s *Stack) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

// NewFromEnv builds the provider from the environment and wraps it, from
// the inside out, with retries, the throttle and, when
// EMBEDDING_CACHE_REDIS_ADDR is set, the Redis cache.
//
//	EMBEDDING_MAX_CONCURRENCY   in-flight embedding calls (default 1)
//	EMBEDDING_RATE_PER_SECOND   call rate limit (default unlimited)
//	EMBEDDING_CACHE_REDIS_ADDR  host:port of the cache
//	EMBEDDING_CACHE_PASSWORD    cache password
//	EMBEDDING_CACHE_TTL         entry lifetime, e.g. "720h" (default no expiry)
func NewFromEnv(opts Options) (*Stack, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	provider, settings, err := NewProviderFromEnv()
	if err != nil {
		return nil, err
	}

	exec := resilience.NewExecutor(opts.Resilience, log)
	var emb rag.Embedder = NewResilient(provider, exec, "embed."+settings.Provider)

	concurrency := getEnvInt("EMBEDDING_MAX_CONCURRENCY", 1)
	ratePerSecond := getEnvFloat("EMBEDDING_RATE_PER_SECOND", 0)
	emb = NewThrottled(emb, concurrency, ratePerSecond)

	stack := &Stack{Settings: settings}
	if addr := getEnv("EMBEDDING_CACHE_REDIS_ADDR"); addr != "" {
		client, err := NewRedisClient(addr, getEnv("EMBEDDING_CACHE_PASSWORD"))
		if err != nil {
			return nil, err
		}
		ttl, _ := time.ParseDuration(getEnv("EMBEDDING_CACHE_TTL"))
		emb = NewCached(emb, client, CacheConfig{
			Model:   settings.Model,
			TTL:     ttl,
			Metrics: opts.Metrics,
			Logger:  log,
		})
		stack.redis = client
	}
	stack.Embedder = emb

	log.Debug("embedder: configured",
		slog.String("provider", settings.Provider),
		slog.String("model", settings.Model),
		slog.Int("dimensions", settings.Dimensions),
		slog.Int("max_concurrency", concurrency),
		slog.Float64("rate_per_second", ratePerSecond),
		slog.Bool("cache", stack.redis != nil),
	)
	return stack, nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
