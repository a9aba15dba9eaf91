package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// okHandler marks requests that reached the protected handler.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		header     string
		wantStatus int
		wantReason string
		wantError  string
	}{
		{name: "disabled", apiKey: "", header: "", wantStatus: http.StatusOK},
		{name: "disabled ignores token", apiKey: "", header: "Bearer anything", wantStatus: http.StatusOK},
		{name: "missing header", apiKey: "secret", wantStatus: http.StatusUnauthorized, wantReason: reasonUnauthorized, wantError: "authorization required"},
		{name: "basic scheme", apiKey: "secret", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantReason: reasonUnauthorized, wantError: "authorization required"},
		{name: "wrong token", apiKey: "secret", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantReason: reasonInvalidToken, wantError: "invalid token"},
		{name: "correct token", apiKey: "secret", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "lowercase scheme", apiKey: "secret", header: "bearer secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var reasons []string
			h := authMiddleware(tt.apiKey, func(r string) { reasons = append(reasons, r) })(okHandler)

			req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantReason == "" {
				if len(reasons) != 0 {
					t.Errorf("unexpected rejections %v", reasons)
				}
				return
			}
			if len(reasons) != 1 || reasons[0] != tt.wantReason {
				t.Errorf("reasons = %v, want [%s]", reasons, tt.wantReason)
			}
			if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer realm=\"ragkit\"") {
				t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestAuthMiddleware_NilOnReject(t *testing.T) {
	t.Parallel()

	h := authMiddleware("secret", nil)(okHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
