package embedder

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/ragkit/internal/resilience"
)

func Test_OllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    string
		wantStatus int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"embeddings":[[0.1,0.2],[0.3,0.4]]}`,
		},
		{
			name:       "model missing",
			status:     http.StatusNotFound,
			body:       `{"error":"model \"nomic-embed-text\" not found"}`,
			wantErr:    "not found",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "plain text error",
			status:     http.StatusServiceUnavailable,
			body:       "loading model",
			wantErr:    "loading model",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:    "ragged dimensions",
			status:  http.StatusOK,
			body:    `{"embeddings":[[0.1,0.2],[0.3]]}`,
			wantErr: "embedding 1 has 1 dimensions",
		},
		{
			name:    "count mismatch",
			status:  http.StatusOK,
			body:    `{"embeddings":[[0.1,0.2]]}`,
			wantErr: "expected 2 embeddings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/embed" {
					t.Errorf("path = %q, want /api/embed", r.URL.Path)
				}
				var req ollamaEmbedRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Model != "nomic-embed-text" || !req.Truncate {
					t.Errorf("request = %+v", req)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "nomic-embed-text"})
			got, err := emb.Embed(t.Context(), []string{"a", "b"})

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Embed: %v", err)
				}
				if len(got) != 2 || got[1][1] != 0.4 {
					t.Errorf("embeddings = %v", got)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
			if tt.wantStatus != 0 {
				var statusErr *resilience.HTTPStatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.wantStatus {
					t.Errorf("want HTTPStatusError %d, got %v", tt.wantStatus, err)
				}
			}
		})
	}
}

func Test_OllamaEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()

	// No server: an empty batch must not make a request.
	emb := NewOllamaEmbedder(&OllamaConfig{Host: "http://127.0.0.1:1", Model: "m"})
	got, err := emb.Embed(t.Context(), nil)
	if err != nil || got != nil {
		t.Fatalf("Embed(nil) = %v, %v", got, err)
	}
}
