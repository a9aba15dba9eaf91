package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragkit/internal/rag"
)

// Throttled bounds the number of in-flight embedding calls and, optionally,
// their rate. Providers with strict quotas stay under them even when
// ingestion runs files concurrently.
type Throttled struct {
	next    rag.Embedder
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewThrottled wraps next. maxConcurrency < 1 is treated as 1. A
// non-positive ratePerSecond disables the rate limit.
func NewThrottled(next rag.Embedder, maxConcurrency int, ratePerSecond float64) *Throttled {
	maxConcurrency = max(maxConcurrency, 1)
	t := &Throttled{
		next: next,
		sem:  make(chan struct{}, maxConcurrency),
	}
	if ratePerSecond > 0 {
		burst := max(int(ratePerSecond), 1)
		t.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return t
}

// Embed waits for a free slot and a rate token, then calls the wrapped
// embedder. It returns ctx.Err() if the context ends while waiting.
func (t *Throttled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-t.sem }()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
		}
	}
	return t.next.Embed(ctx, texts)
}
