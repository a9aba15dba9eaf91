package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/54b3r/ragkit/internal/logging"
)

// requestLogger returns a middleware that:
//  1. Echoes the chi request id in the X-Request-ID response header.
//  2. Injects a child [*slog.Logger] carrying that id into the request context.
//  3. Logs method, path, status code, and latency on completion.
//
// It must run after chiMiddleware.RequestID.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chiMiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}

			log := base.With(
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			r = r.WithContext(logging.WithLogger(r.Context(), log))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Info("request",
				slog.Int("status", statusOf(ww)),
				slog.Duration("duration", time.Since(start)),
				slog.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// jsonRecoverer turns a handler panic into a JSON 500 response.
func jsonRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logging.FromContext(r.Context()).Error("panic recovered",
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusOf reports the status written through ww. A handler that never
// calls WriteHeader answers 200.
func statusOf(ww chiMiddleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
