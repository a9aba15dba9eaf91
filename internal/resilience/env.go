package resilience

import (
	"os"
	"strconv"
	"time"
)

// FromEnv returns DefaultConfig overridden by RESILIENCE_* variables.
// Unparseable values are ignored.
//
//	RESILIENCE_MAX_ATTEMPTS      total attempts including the first (default 6)
//	RESILIENCE_INITIAL_BACKOFF   first retry delay (default 2s)
//	RESILIENCE_MAX_BACKOFF       retry delay cap (default 30s)
//	RESILIENCE_TIMEOUT           bound on one call including retries (default 2m)
//	RESILIENCE_BREAKER_ENABLED   "false" disables the circuit breaker
func FromEnv() Config {
	cfg := DefaultConfig()
	if v, err := strconv.Atoi(os.Getenv("RESILIENCE_MAX_ATTEMPTS")); err == nil && v > 0 {
		cfg.RetryMaxAttempts = v
	}
	if d := envDuration("RESILIENCE_INITIAL_BACKOFF"); d > 0 {
		cfg.RetryInitialBackoff = d
	}
	if d := envDuration("RESILIENCE_MAX_BACKOFF"); d > 0 {
		cfg.RetryMaxBackoff = d
	}
	if d := envDuration("RESILIENCE_TIMEOUT"); d > 0 {
		cfg.OperationTimeout = d
	}
	if v, err := strconv.ParseBool(os.Getenv("RESILIENCE_BREAKER_ENABLED")); err == nil {
		cfg.BreakerEnabled = v
	}
	return cfg
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}
