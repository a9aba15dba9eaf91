package resilience

import "time"

// Config tunes retries and the circuit breaker. Zero values are replaced
// by DefaultConfig values.
type Config struct {
	// RetryMaxAttempts counts the first call: 6 means one call plus five retries.
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// RetryJitter spreads each backoff uniformly by ±RetryJitter of its
	// length. Negative disables jitter.
	RetryJitter float64

	// MaxRetryAfter caps a server-supplied Retry-After delay.
	MaxRetryAfter time.Duration

	// OperationTimeout bounds one Execute call including all retries.
	// Negative disables the bound.
	OperationTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig matches the policy used for embedding and chat providers:
// five retries starting at two seconds, doubling, with jitter, and a
// breaker that opens when half of at least ten calls fail.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    6,
		RetryInitialBackoff: 2 * time.Second,
		RetryMaxBackoff:     30 * time.Second,
		RetryMultiplier:     2.0,
		RetryJitter:         0.2,
		MaxRetryAfter:       time.Minute,
		OperationTimeout:    2 * time.Minute,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	switch {
	case out.RetryJitter == 0:
		out.RetryJitter = def.RetryJitter
	case out.RetryJitter < 0:
		out.RetryJitter = 0
	case out.RetryJitter > 1:
		out.RetryJitter = 1
	}
	if out.MaxRetryAfter <= 0 {
		out.MaxRetryAfter = def.MaxRetryAfter
	}
	if out.OperationTimeout == 0 {
		out.OperationTimeout = def.OperationTimeout
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
