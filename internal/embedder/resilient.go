package embedder

import (
	"context"

	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/resilience"
)

// Resilient retries failed embedding calls through a resilience.Executor.
type Resilient struct {
	next      rag.Embedder
	exec      *resilience.Executor
	operation string
}

// NewResilient wraps next. operation names the breaker, e.g. "embed.openai".
func NewResilient(next rag.Embedder, exec *resilience.Executor, operation string) *Resilient {
	return &Resilient{next: next, exec: exec, operation: operation}
}

// Embed calls the wrapped embedder until it succeeds or the policy gives up.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.exec.Execute(ctx, r.operation, func(ctx context.Context) error {
		v, err := r.next.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, err
	}
	return out, nil
}
