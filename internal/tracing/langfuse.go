// Package tracing wires Langfuse tracing into the eino callback chain so
// eval generation and judging calls show up as traces.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Settings holds the Langfuse credentials read from the environment.
type Settings struct {
	Host      string
	PublicKey string
	SecretKey string
}

// Enabled reports whether both keys are present.
func (s Settings) Enabled() bool {
	return s.PublicKey != "" && s.SecretKey != ""
}

// SettingsFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func SettingsFromEnv() Settings {
	s := Settings{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
	return s
}

// Setup registers the Langfuse handler as a global eino callback when
// credentials are configured. The returned flush function must run before
// process exit so buffered traces are sent; it is a no-op when tracing is
// disabled.
func Setup(log *slog.Logger) func() {
	if log == nil {
		log = slog.Default()
	}
	s := SettingsFromEnv()
	if !s.Enabled() {
		log.Debug("tracing: langfuse disabled")
		return func() {}
	}

	handler, flush := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      s.Host,
		PublicKey: s.PublicKey,
		SecretKey: s.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", s.Host))
	return flush
}
