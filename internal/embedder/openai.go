// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings, plus the layers every
// provider is wrapped in: a throttle, retries with a circuit breaker, and an
// optional Redis cache.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/54b3r/ragkit/internal/resilience"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI (or Azure OpenAI)
// embeddings API. It is safe for concurrent use.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: the resource endpoint "https://<resource>.openai.azure.com".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
	// HTTPClient overrides the default client (60s timeout).
	HTTPClient *http.Client
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	var clientCfg openai.ClientConfig
	if cfg.Azure {
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// Deployment names are used verbatim.
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	clientCfg.HTTPClient = &retryAfterDoer{next: httpClient}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	slot := &retryAfterSlot{}
	resp, err := e.client.CreateEmbeddings(withRetryAfterSlot(ctx, slot), req)
	if err != nil {
		return nil, openAIError(err, slot.get())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API may return data out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

// openAIError maps client errors onto resilience.HTTPStatusError so the
// executor can classify them by status.
func openAIError(err error, retryAfter time.Duration) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{
			Operation:  "openai embeddings",
			StatusCode: apiErr.HTTPStatusCode,
			Status:     apiErr.HTTPStatus,
			RetryAfter: retryAfter,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &resilience.HTTPStatusError{
			Operation:  "openai embeddings",
			StatusCode: reqErr.HTTPStatusCode,
			Status:     reqErr.HTTPStatus,
			Body:       string(reqErr.Body),
			RetryAfter: retryAfter,
			Err:        err,
		}
	}

	return fmt.Errorf("openai embedder: request failed: %w", err)
}

// retryAfterSlot receives the Retry-After header of the response to one
// request. The slot travels in the request context.
type retryAfterSlot struct {
	mu    sync.Mutex
	delay time.Duration
}

func (s *retryAfterSlot) set(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *retryAfterSlot) get() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

type retryAfterKey struct{}

func withRetryAfterSlot(ctx context.Context, slot *retryAfterSlot) context.Context {
	return context.WithValue(ctx, retryAfterKey{}, slot)
}

// retryAfterDoer records Retry-After on error responses. The OpenAI client
// does not surface response headers in its error types.
type retryAfterDoer struct {
	next *http.Client
}

func (d *retryAfterDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil || resp.StatusCode < http.StatusBadRequest {
		return resp, err
	}
	if slot, ok := req.Context().Value(retryAfterKey{}).(*retryAfterSlot); ok {
		slot.set(resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	}
	return resp, nil
}
