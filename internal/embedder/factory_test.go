package embedder

import (
	"log/slog"
	"strings"
	"testing"
)

// clearEmbeddingEnv unsets every variable the factory reads.
func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY",
		"AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST", "EMBEDDING_CACHE_REDIS_ADDR",
		"EMBEDDING_MAX_CONCURRENCY", "EMBEDDING_RATE_PER_SECOND",
	} {
		t.Setenv(k, "")
	}
}

func TestNewProviderFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		wantProvider string
		wantModel    string
		wantDims     int
		wantErr      string
	}{
		{
			name:         "defaults to openai large",
			env:          map[string]string{"OPENAI_API_KEY": "sk"},
			wantProvider: "openai",
			wantModel:    "text-embedding-3-large",
			wantDims:     3072,
		},
		{
			name:    "openai without key",
			env:     map[string]string{},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:         "inherits ollama from chat provider",
			env:          map[string]string{"MODEL_PROVIDER": "ollama"},
			wantProvider: "ollama",
			wantModel:    "nomic-embed-text",
			wantDims:     768,
		},
		{
			name:         "bedrock chat does not leak into embeddings",
			env:          map[string]string{"MODEL_PROVIDER": "bedrock", "EMBEDDING_API_KEY": "k"},
			wantProvider: "openai",
			wantModel:    "text-embedding-3-large",
			wantDims:     3072,
		},
		{
			name:    "azure without endpoint",
			env:     map[string]string{"EMBEDDING_PROVIDER": "azure", "AZURE_OPENAI_API_KEY": "k"},
			wantErr: "AZURE_OPENAI_ENDPOINT",
		},
		{
			name: "azure with overrides",
			env: map[string]string{
				"EMBEDDING_PROVIDER":    "azure",
				"AZURE_OPENAI_API_KEY":  "k",
				"AZURE_OPENAI_ENDPOINT": "https://res.openai.azure.com",
				"EMBEDDING_MODEL":       "embeddings-small",
				"EMBEDDING_DIMENSIONS":  "256",
			},
			wantProvider: "azure",
			wantModel:    "embeddings-small",
			wantDims:     256,
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"EMBEDDING_PROVIDER": "gemini"},
			wantErr: "unknown backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			emb, settings, err := NewProviderFromEnv()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProviderFromEnv: %v", err)
			}
			if emb == nil {
				t.Fatal("nil embedder")
			}
			if settings.Provider != tt.wantProvider || settings.Model != tt.wantModel || settings.Dimensions != tt.wantDims {
				t.Errorf("settings = %+v, want %s/%s/%d", settings, tt.wantProvider, tt.wantModel, tt.wantDims)
			}
		})
	}
}

func TestNewFromEnv_BuildsStackWithoutCache(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_MAX_CONCURRENCY", "3")

	stack, err := NewFromEnv(Options{Logger: slog.Default()})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	defer stack.Close()

	if _, ok := stack.Embedder.(*Throttled); !ok {
		t.Errorf("outer layer = %T, want *Throttled when no cache is configured", stack.Embedder)
	}
	if cap(stack.Embedder.(*Throttled).sem) != 3 {
		t.Errorf("semaphore size = %d, want 3", cap(stack.Embedder.(*Throttled).sem))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"ollama needs nothing", map[string]string{"EMBEDDING_PROVIDER": "ollama"}, ""},
		{"openai key present", map[string]string{"OPENAI_API_KEY": "sk"}, ""},
		{"openai key missing", map[string]string{}, "API key"},
		{"azure endpoint missing", map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k"}, "endpoint"},
		{"unknown", map[string]string{"EMBEDDING_PROVIDER": "bedrock"}, "unknown backend"},
		{"chat model only warns", map[string]string{"EMBEDDING_PROVIDER": "ollama", "EMBEDDING_MODEL": "llama3"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := Validate(slog.Default())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for model, want := range map[string]bool{
		"gpt-4o":                 true,
		"Llama3:8b":              true,
		"text-embedding-3-large": false,
		"nomic-embed-text":       false,
	} {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}
