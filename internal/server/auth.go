package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/ragkit/internal/logging"
)

// authMiddleware returns a chi middleware enforcing Bearer token
// authentication. With an empty apiKey it passes every request through;
// New logs a warning once at startup.
//
// Protected routes must supply:
//
//	Authorization: Bearer <apiKey>
//
// Missing or wrong tokens get a JSON 401 with a WWW-Authenticate challenge.
// Tokens are compared in constant time and never logged. onReject, when
// non-nil, receives the rejection reason.
func authMiddleware(apiKey string, onReject func(reason string)) func(http.Handler) http.Handler {
	if onReject == nil {
		onReject = func(string) {}
	}
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.FromContext(r.Context())

			token := bearerToken(r)
			switch {
			case token == "":
				log.Warn("auth: missing bearer token", slog.String("path", r.URL.Path))
				onReject(reasonUnauthorized)
				w.Header().Set("WWW-Authenticate", `Bearer realm="ragkit"`)
				writeError(w, http.StatusUnauthorized, "authorization required")
			case subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1:
				log.Warn("auth: invalid token", slog.String("path", r.URL.Path))
				onReject(reasonInvalidToken)
				w.Header().Set("WWW-Authenticate", `Bearer realm="ragkit" error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
