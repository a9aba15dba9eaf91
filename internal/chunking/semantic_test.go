package chunking

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/54b3r/ragkit/internal/budget"
	"github.com/54b3r/ragkit/internal/rag"
)

// topicEmbedder maps text onto counts of "Cat" and "Car".
type topicEmbedder struct {
	calls int
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(strings.Count(t, "Cat")), float32(strings.Count(t, "Car"))}
	}
	return out, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 1}
	}
	return out, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}

func Test_Semantic_BreaksOnTopicShift(t *testing.T) {
	t.Parallel()
	emb := &topicEmbedder{}
	s, err := NewSemantic(emb, SemanticConfig{})
	if err != nil {
		t.Fatal(err)
	}

	text := "Cats purr. Cats nap. Cats climb. Cars honk. Cars race. Cars park."
	chunks, err := s.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	want := []string{"Cats purr. Cats nap. Cats climb.", "Cars honk. Cars race. Cars park."}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d: %+v", len(chunks), len(want), chunks)
	}
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
		if c.Number != i+1 {
			t.Errorf("chunk %d number = %d", i, c.Number)
		}
		if len(c.Embedding) != 2 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
	if emb.calls != 2 {
		t.Errorf("embedder calls = %d, want 2 (windows + chunks)", emb.calls)
	}
}

func Test_Semantic_EnforcesTokenLimit(t *testing.T) {
	t.Parallel()
	s, err := NewSemantic(constEmbedder{}, SemanticConfig{TokenLimit: 5})
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("Alpha beta. ", 6)
	chunks, err := s.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for _, c := range chunks {
		if budget.Estimate(c.Content) > 5 {
			t.Errorf("chunk %q exceeds token limit", c.Content)
		}
	}
}

func Test_Semantic_SplitsOversizedSentence(t *testing.T) {
	t.Parallel()
	s, err := NewSemantic(constEmbedder{}, SemanticConfig{TokenLimit: 3})
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := s.Chunk(context.Background(), "one two three four five six seven eight nine ten")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("want the sentence split, got %d chunk(s)", len(chunks))
	}
	var words []string
	for _, c := range chunks {
		words = append(words, c.Content)
	}
	if got := strings.Join(words, " "); got != "one two three four five six seven eight nine ten" {
		t.Errorf("words lost or reordered: %q", got)
	}
}

func Test_Semantic_EmptyInput(t *testing.T) {
	t.Parallel()
	emb := &topicEmbedder{}
	s, _ := NewSemantic(emb, SemanticConfig{})
	chunks, err := s.Chunk(context.Background(), "  \n ")
	if err != nil || len(chunks) != 0 {
		t.Errorf("Chunk(blank) = %d chunks, err %v", len(chunks), err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for blank input", emb.calls)
	}
}

func Test_Semantic_EmbedderFailureIsDependencyFailure(t *testing.T) {
	t.Parallel()
	s, _ := NewSemantic(failingEmbedder{}, SemanticConfig{})
	_, err := s.Chunk(context.Background(), "One. Two.")
	if !errors.Is(err, rag.ErrDependencyFailure) {
		t.Errorf("err = %v, want ErrDependencyFailure", err)
	}
}

func Test_NewSemantic_RequiresEmbedder(t *testing.T) {
	t.Parallel()
	if _, err := NewSemantic(nil, SemanticConfig{}); err == nil {
		t.Error("expected error for nil embedder")
	}
}

func Test_SplitSentences(t *testing.T) {
	t.Parallel()
	got := splitSentences("Hello there! Is it 3.5 now?  Yes.\n\nNew para without stop\nstill going")
	want := []string{"Hello there!", "Is it 3.5 now?", "Yes.", "New para without stop still going"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func Test_PercentileOf(t *testing.T) {
	t.Parallel()
	if got := percentileOf([]float64{4, 1, 3, 2, 5}, 50); got != 3 {
		t.Errorf("median = %v, want 3", got)
	}
	if got := percentileOf([]float64{0, 10}, 95); math.Abs(got-9.5) > 1e-9 {
		t.Errorf("p95 = %v, want 9.5", got)
	}
}
