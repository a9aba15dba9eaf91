package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/ragkit/internal/resilience"
)

const (
	// defaultOllamaTimeout bounds a single /api/embed call. Cold model loads
	// on CPU-only hosts can take most of a minute.
	defaultOllamaTimeout = 60 * time.Second

	// maxOllamaResponse caps how much of a response body is read.
	maxOllamaResponse = 64 << 20
)

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
	// Timeout bounds each request. Zero means defaultOllamaTimeout.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// OllamaEmbedder embeds text through a local Ollama server's /api/embed
// endpoint. Inputs longer than the model context are truncated server side.
type OllamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultOllamaTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OllamaEmbedder{
		endpoint: strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:    cfg.Model,
		client:   client,
	}
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. A non-2xx reply comes
// back as *resilience.HTTPStatusError so the retry layer can classify it.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	status, header, body, err := e.post(ctx, ollamaEmbedRequest{Model: e.model, Input: texts, Truncate: true})
	if err != nil {
		return nil, err
	}

	var out ollamaEmbedResponse
	decodeErr := json.Unmarshal(body, &out)

	if status < 200 || status >= 300 {
		msg := string(body)
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, &resilience.HTTPStatusError{
			Operation:  "ollama embed",
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Body:       msg,
			RetryAfter: resilience.ParseRetryAfter(header.Get("Retry-After"), time.Now()),
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", decodeErr)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	for i, v := range out.Embeddings {
		if len(v) == 0 || len(v) != len(out.Embeddings[0]) {
			return nil, fmt.Errorf("ollama embedder: embedding %d has %d dimensions, want %d", i, len(v), len(out.Embeddings[0]))
		}
	}
	return out.Embeddings, nil
}

// post sends payload as JSON and returns the status, headers and body.
func (e *OllamaEmbedder) post(ctx context.Context, payload any) (int, http.Header, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaResponse))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("ollama embedder: read response: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}
