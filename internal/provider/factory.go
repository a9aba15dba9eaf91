package provider

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// Provider defaults used when the matching variable is unset.
const (
	defaultOllamaHost      = "http://localhost:11434"
	defaultOllamaModel     = "llama3"
	defaultOpenAIModel     = "gpt-4o"
	defaultAzureAPIVersion = "2024-10-21"
	defaultAWSRegion       = "us-east-1"
	defaultGeminiModel     = "gemini-1.5-pro"
	defaultMaxTokens       = 1024
)

// Getenv looks up a variable by name; os.Getenv satisfies it.
type Getenv func(key string) string

// ConfigFromEnv reads the chat model configuration from the process
// environment. See ConfigFrom for the variables consulted.
func ConfigFromEnv() *Config {
	return ConfigFrom(os.Getenv)
}

// ConfigFrom builds a Config from getenv. MODEL_PROVIDER selects the
// backend (ollama, openai, azure, bedrock or gemini; default openai) and
// each backend reads its own native credential variables:
//
//	ollama   OLLAMA_HOST, OLLAMA_MODEL
//	openai   OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL
//	azure    AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT,
//	         AZURE_OPENAI_DEPLOYMENT, AZURE_OPENAI_API_VERSION
//	bedrock  AWS_REGION, BEDROCK_MODEL_ID, BEDROCK_API_KEY, BEDROCK_BASE_URL
//	gemini   GOOGLE_API_KEY, GEMINI_MODEL
//
// MODEL_MAX_TOKENS and MODEL_TEMPERATURE tune every backend. The eval judge
// relies on the default temperature of 0 for repeatable verdicts.
func ConfigFrom(getenv Getenv) *Config {
	env := lookup(getenv)
	return &Config{
		Backend: Backend(strings.ToLower(env.str("MODEL_PROVIDER", string(BackendOpenAI)))),
		Ollama: ProviderOllama{
			Host:  env.str("OLLAMA_HOST", defaultOllamaHost),
			Model: env.str("OLLAMA_MODEL", defaultOllamaModel),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  env.str("OPENAI_API_KEY", ""),
			Model:   env.str("OPENAI_MODEL", defaultOpenAIModel),
			BaseURL: env.str("OPENAI_BASE_URL", ""),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     env.str("AZURE_OPENAI_API_KEY", ""),
			Endpoint:   env.str("AZURE_OPENAI_ENDPOINT", ""),
			Deployment: env.str("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion: env.str("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion),
		},
		Bedrock: ProviderBedrock{
			AWSRegion: env.str("AWS_REGION", defaultAWSRegion),
			ModelID:   env.str("BEDROCK_MODEL_ID", ""),
			APIKey:    env.str("BEDROCK_API_KEY", ""),
			BaseURL:   env.str("BEDROCK_BASE_URL", ""),
		},
		Gemini: ProviderGemini{
			APIKey: env.str("GOOGLE_API_KEY", ""),
			Model:  env.str("GEMINI_MODEL", defaultGeminiModel),
		},
		Tuning: SharedTuning{
			MaxTokens:   env.integer("MODEL_MAX_TOKENS", defaultMaxTokens),
			Temperature: env.float("MODEL_TEMPERATURE", 0),
		},
	}
}

// New validates cfg and builds the chat model for its backend.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendBedrock:
		return newBedrock(ctx, cfg)
	default:
		return newGemini(ctx, cfg)
	}
}

// lookup wraps a Getenv with typed accessors. Blank values and values that
// fail to parse fall back to the default.
type lookup Getenv

func (l lookup) str(key, fallback string) string {
	if v := strings.TrimSpace(l(key)); v != "" {
		return v
	}
	return fallback
}

func (l lookup) integer(key string, fallback int) int {
	if i, err := strconv.Atoi(l.str(key, "")); err == nil {
		return i
	}
	return fallback
}

func (l lookup) float(key string, fallback float32) float32 {
	if f, err := strconv.ParseFloat(l.str(key, ""), 32); err == nil {
		return float32(f)
	}
	return fallback
}
