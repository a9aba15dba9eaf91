// Package config provides YAML-based configuration for ragkit.
// Configuration is loaded with a layered precedence: defaults → .env file →
// YAML file → env vars. Environment variables always win, so every package
// keeps reading its settings from the environment.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGKIT_CONFIG environment variable
//  3. ~/.ragkit/config.yaml
//  4. ./ragkit.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the chat model used to generate and judge eval pairs.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider and its client-side layers.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector selects and configures the vector store.
	Vector VectorConfig `yaml:"vector"`

	// Lexical configures BM25 query parsing.
	Lexical LexicalConfig `yaml:"lexical"`

	// Semantic tunes the semantic chunker.
	Semantic SemanticConfig `yaml:"semantic"`

	// Ingestion tunes folder ingestion.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Resilience tunes retries and circuit breaking of provider calls.
	Resilience ResilienceConfig `yaml:"resilience"`

	// Events configures the document event publisher.
	Events EventsConfig `yaml:"events"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, bedrock, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	Ollama  OllamaConfig  `yaml:"ollama"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Azure   AzureConfig   `yaml:"azure"`
	Bedrock BedrockConfig `yaml:"bedrock"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// BedrockConfig holds AWS Bedrock provider settings.
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	// BatchSize caps the texts sent per embedding request.
	BatchSize int `yaml:"batch_size"`
	// MaxConcurrency caps in-flight embedding requests (default 1).
	MaxConcurrency int `yaml:"max_concurrency"`
	// RatePerSecond limits embedding requests per second (0 = unlimited).
	RatePerSecond float64 `yaml:"rate_per_second"`
	// Cache enables the Redis embedding cache.
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig holds Redis embedding cache settings.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	// Password is the Redis password. Prefer env var EMBEDDING_CACHE_PASSWORD.
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// VectorConfig selects the vector store.
type VectorConfig struct {
	// Backend is sqlite (default) or qdrant.
	Backend string       `yaml:"backend"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	TLS    bool   `yaml:"tls"`
}

// LexicalConfig holds BM25 query settings.
type LexicalConfig struct {
	// DefaultOperator joins bare query terms: and (default) or or.
	DefaultOperator string `yaml:"default_operator"`
}

// SemanticConfig tunes the semantic chunker.
type SemanticConfig struct {
	TokenLimit          int     `yaml:"token_limit"`
	BufferSize          int     `yaml:"buffer_size"`
	ThresholdPercentile float64 `yaml:"threshold_percentile"`
}

// IngestionConfig tunes folder ingestion.
type IngestionConfig struct {
	// Concurrency is the number of files ingested at once (default 1).
	Concurrency int `yaml:"concurrency"`
}

// ResilienceConfig tunes the retry and breaker policy of provider calls.
type ResilienceConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
	// BreakerEnabled is a pointer so an explicit false can be told apart
	// from an absent key.
	BreakerEnabled *bool `yaml:"breaker_enabled"`
}

// EventsConfig holds NATS publisher settings.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGKIT_API_KEY.
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"AWS_REGION", func(c *Config) string { return c.Model.Bedrock.Region }},
	{"BEDROCK_MODEL_ID", func(c *Config) string { return c.Model.Bedrock.ModelID }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_BATCH_SIZE", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"EMBEDDING_MAX_CONCURRENCY", func(c *Config) string { return intStr(c.Embedding.MaxConcurrency) }},
	{"EMBEDDING_RATE_PER_SECOND", func(c *Config) string { return float64Str(c.Embedding.RatePerSecond) }},
	{"EMBEDDING_CACHE_REDIS_ADDR", func(c *Config) string { return c.Embedding.Cache.RedisAddr }},
	{"EMBEDDING_CACHE_PASSWORD", func(c *Config) string { return c.Embedding.Cache.Password }},
	{"EMBEDDING_CACHE_TTL", func(c *Config) string { return durationStr(c.Embedding.Cache.TTL) }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Vector.Backend }},
	{"QDRANT_HOST", func(c *Config) string { return c.Vector.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Vector.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Vector.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Vector.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Vector.Qdrant.TLS) }},
	{"LEXICAL_DEFAULT_OPERATOR", func(c *Config) string { return c.Lexical.DefaultOperator }},
	{"SEMANTIC_TOKEN_LIMIT", func(c *Config) string { return intStr(c.Semantic.TokenLimit) }},
	{"SEMANTIC_BUFFER_SIZE", func(c *Config) string { return intStr(c.Semantic.BufferSize) }},
	{"SEMANTIC_THRESHOLD_PERCENTILE", func(c *Config) string { return float64Str(c.Semantic.ThresholdPercentile) }},
	{"INGEST_CONCURRENCY", func(c *Config) string { return intStr(c.Ingestion.Concurrency) }},
	{"RESILIENCE_MAX_ATTEMPTS", func(c *Config) string { return intStr(c.Resilience.MaxAttempts) }},
	{"RESILIENCE_INITIAL_BACKOFF", func(c *Config) string { return durationStr(c.Resilience.InitialBackoff) }},
	{"RESILIENCE_MAX_BACKOFF", func(c *Config) string { return durationStr(c.Resilience.MaxBackoff) }},
	{"RESILIENCE_TIMEOUT", func(c *Config) string { return durationStr(c.Resilience.Timeout) }},
	{"RESILIENCE_BREAKER_ENABLED", func(c *Config) string { return boolPtrStr(c.Resilience.BreakerEnabled) }},
	{"NATS_URL", func(c *Config) string { return c.Events.NATSURL }},
	{"NATS_SUBJECT", func(c *Config) string { return c.Events.Subject }},
	{"RAGKIT_HOST", func(c *Config) string { return c.Server.Host }},
	{"RAGKIT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RAGKIT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"RAGKIT_RATE_LIMIT", func(c *Config) string { return float64Str(c.Server.RateLimit) }},
	{"RAGKIT_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv loads KEY=value pairs from path (default ".env") into the
// environment without overriding variables that are already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if _, set := os.LookupEnv(m.envKey); set && os.Getenv(m.envKey) != "" {
			continue
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: failed to set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGKIT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragkit", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragkit.yaml"); err == nil {
		return "ragkit.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to its shortest string, "" for zero.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// durationStr renders d in time.ParseDuration syntax, "" for zero.
func durationStr(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// boolPtrStr renders an explicit YAML boolean, "" when absent.
func boolPtrStr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
