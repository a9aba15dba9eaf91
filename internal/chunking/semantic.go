package chunking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/54b3r/ragkit/internal/budget"
	"github.com/54b3r/ragkit/internal/rag"
)

const (
	// DefaultTokenLimit is the largest chunk the semantic chunker emits.
	DefaultTokenLimit = 512

	// DefaultBufferSize is the number of neighbouring sentences on each side
	// combined with a sentence before it is embedded.
	DefaultBufferSize = 1

	// DefaultThresholdPercentile selects which distances count as topic
	// shifts: only those above this percentile start a new chunk.
	DefaultThresholdPercentile = 95.0
)

// SemanticConfig tunes the semantic chunker. Zero values select defaults.
type SemanticConfig struct {
	// TokenLimit caps the estimated size of each chunk.
	TokenLimit int

	// BufferSize is the sentence window used when embedding a sentence.
	// Zero selects the default; a negative value disables the window.
	BufferSize int

	// ThresholdPercentile is the breakpoint percentile in (0, 100].
	ThresholdPercentile float64
}

// Semantic groups consecutive sentences whose embeddings stay close and
// starts a new chunk where the distance between neighbouring sentence
// windows spikes. Every chunk it returns carries its own embedding.
type Semantic struct {
	embedder rag.Embedder
	cfg      SemanticConfig
}

// NewSemantic constructs a Semantic chunker. Returns an error if embedder
// is nil.
func NewSemantic(embedder rag.Embedder, cfg SemanticConfig) (*Semantic, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chunking: semantic chunker requires an embedder")
	}
	if cfg.TokenLimit <= 0 {
		cfg.TokenLimit = DefaultTokenLimit
	}
	switch {
	case cfg.BufferSize == 0:
		cfg.BufferSize = DefaultBufferSize
	case cfg.BufferSize < 0:
		cfg.BufferSize = 0
	}
	if cfg.ThresholdPercentile <= 0 || cfg.ThresholdPercentile > 100 {
		cfg.ThresholdPercentile = DefaultThresholdPercentile
	}
	return &Semantic{embedder: embedder, cfg: cfg}, nil
}

// Name implements rag.Chunker.
func (*Semantic) Name() string { return StrategySemantic }

// Chunk implements rag.Chunker. Embedding failures are returned wrapped in
// rag.ErrDependencyFailure.
func (s *Semantic) Chunk(ctx context.Context, text string) ([]rag.Chunk, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	groups := [][]string{sentences}
	if len(sentences) > 1 {
		windows := combineSentences(sentences, s.cfg.BufferSize)
		vectors, err := s.embed(ctx, windows)
		if err != nil {
			return nil, err
		}
		groups = splitAtBreakpoints(sentences, vectors, s.cfg.ThresholdPercentile)
	}

	var contents []string
	for _, g := range groups {
		contents = append(contents, packSentences(g, s.cfg.TokenLimit)...)
	}

	vectors, err := s.embed(ctx, contents)
	if err != nil {
		return nil, err
	}

	chunks := make([]rag.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = rag.Chunk{Content: c, Number: i + 1, Embedding: vectors[i]}
	}
	return chunks, nil
}

func (s *Semantic) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, rag.WrapError(rag.ErrDependencyFailure, "semantic chunking", err)
	}
	if len(vectors) != len(texts) {
		return nil, rag.WrapError(rag.ErrDependencyFailure, "semantic chunking",
			fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(texts)))
	}
	return vectors, nil
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace,
// and at blank lines.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(lineBreaks.Replace(text))
	for i, r := range runes {
		end := -1
		switch {
		case (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])):
			end = i + 1
		case r == '\n' && i+1 < len(runes) && runes[i+1] == '\n':
			end = i
		}
		if end < 0 {
			continue
		}
		if s := strings.Join(strings.Fields(string(runes[start:end])), " "); s != "" {
			out = append(out, s)
		}
		start = end
	}
	if s := strings.Join(strings.Fields(string(runes[start:])), " "); s != "" {
		out = append(out, s)
	}
	return out
}

// combineSentences joins each sentence with buffer neighbours on each side.
func combineSentences(sentences []string, buffer int) []string {
	out := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-buffer)
		hi := min(len(sentences), i+buffer+1)
		out[i] = strings.Join(sentences[lo:hi], " ")
	}
	return out
}

// splitAtBreakpoints groups sentences, starting a new group after sentence
// i whenever the distance between windows i and i+1 exceeds the percentile.
func splitAtBreakpoints(sentences []string, vectors [][]float32, percentile float64) [][]string {
	distances := make([]float64, len(vectors)-1)
	for i := range distances {
		distances[i] = 1 - cosine(vectors[i], vectors[i+1])
	}
	threshold := percentileOf(distances, percentile)

	var (
		groups [][]string
		start  int
	)
	for i, d := range distances {
		if d > threshold {
			groups = append(groups, sentences[start:i+1])
			start = i + 1
		}
	}
	return append(groups, sentences[start:])
}

// packSentences joins sentences greedily into pieces within tokenLimit.
// A single sentence over the limit is split on word boundaries.
func packSentences(sentences []string, tokenLimit int) []string {
	var (
		out []string
		cur string
	)
	for _, s := range sentences {
		if budget.Estimate(s) > tokenLimit {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			out = append(out, splitWords(s, tokenLimit)...)
			continue
		}
		next := s
		if cur != "" {
			next = cur + " " + s
		}
		if budget.Estimate(next) > tokenLimit {
			out = append(out, cur)
			next = s
		}
		cur = next
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func splitWords(s string, tokenLimit int) []string {
	var (
		out []string
		cur string
	)
	for _, w := range strings.Fields(s) {
		next := w
		if cur != "" {
			next = cur + " " + w
		}
		if cur != "" && budget.Estimate(next) > tokenLimit {
			out = append(out, cur)
			next = w
		}
		cur = next
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// percentileOf returns the p-th percentile of values using linear
// interpolation between closest ranks.
func percentileOf(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
