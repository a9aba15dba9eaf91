package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/ragkit/internal/budget"
	"github.com/54b3r/ragkit/internal/rag"
)

// Generator asks a chat model for question/answer pairs about a document.
type Generator struct {
	completer rag.Completer
	log       *slog.Logger

	// MaxContentTokens caps the document text placed in the prompt.
	// Zero selects budget.DefaultMaxContextTokens; negative disables the cap.
	MaxContentTokens int
}

// NewGenerator returns a Generator that talks to completer.
func NewGenerator(completer rag.Completer, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{completer: completer, log: log}
}

// Generate returns at most count pairs answerable from content. A reply
// that is not a JSON array of pairs, or holds none, is an
// ErrInvalidOperation.
func (g *Generator) Generate(ctx context.Context, content string, count int) ([]Pair, error) {
	if count <= 0 {
		return nil, rag.WrapError(rag.ErrInvalidArgument, "generate evals",
			fmt.Errorf("count must be positive, got %d", count))
	}

	limit := g.MaxContentTokens
	if limit == 0 {
		limit = budget.DefaultMaxContextTokens
	}
	if trimmed, cut := budget.Truncate(content, limit); cut {
		g.log.Warn("eval generate: document truncated to fit the prompt budget",
			slog.Int("original_tokens_est", budget.Estimate(content)),
			slog.Int("max_tokens", limit),
		)
		content = trimmed
	}

	reply, err := g.completer.Complete(ctx, GeneratePrompt(content, count))
	if err != nil {
		return nil, rag.WrapError(rag.ErrDependencyFailure, "generate evals", err)
	}

	pairs, err := parsePairs(reply)
	if err != nil {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "generate evals", err)
	}
	if len(pairs) == 0 {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "generate evals",
			fmt.Errorf("failed to generate evaluation queries"))
	}
	if len(pairs) > count {
		pairs = pairs[:count]
	}
	return pairs, nil
}

// parsePairs decodes a JSON array of pairs, tolerating a surrounding
// markdown code fence. Key matching is case-insensitive, so both
// "expectedAnswer" and "ExpectedAnswer" are accepted.
func parsePairs(reply string) ([]Pair, error) {
	text := stripCodeFence(reply)
	if text == "" {
		return nil, fmt.Errorf("empty model response")
	}
	var pairs []Pair
	if err := json.Unmarshal([]byte(text), &pairs); err != nil {
		return nil, fmt.Errorf("parse model response as JSON array: %w", err)
	}
	out := pairs[:0]
	for _, p := range pairs {
		if strings.TrimSpace(p.Question) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// stripCodeFence removes a leading ```lang line and a trailing ``` fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
