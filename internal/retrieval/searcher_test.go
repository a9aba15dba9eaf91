package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
)

// stubIndex returns a fixed ranking and records the requested limits.
type stubIndex struct {
	name    string
	results []rag.SearchResult
	err     error

	mu     sync.Mutex
	limits []int
	ids    [][]string
}

func (x *stubIndex) Name() string { return x.name }

func (x *stubIndex) Add(context.Context, string, string, []rag.Chunk) error { return nil }

func (x *stubIndex) Query(_ context.Context, _, _ string, maxResults int, sourceIDs []string) ([]rag.SearchResult, error) {
	x.mu.Lock()
	x.limits = append(x.limits, maxResults)
	x.ids = append(x.ids, sourceIDs)
	x.mu.Unlock()
	if x.err != nil {
		return nil, x.err
	}
	return x.results[:min(maxResults, len(x.results))], nil
}

func ranking(file string, n int) []rag.SearchResult {
	id := rag.NewIdentity(file)
	out := make([]rag.SearchResult, n)
	for i := range n {
		out[i] = id.Result(i+1, fmt.Sprintf("%s chunk %d", file, i+1), float64(n-i))
	}
	return out
}

func newSearcher(t *testing.T, lexical, vector *stubIndex) *Searcher {
	t.Helper()
	s, err := New(Config{Lexical: lexical, Vector: vector})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func Test_New_RequiresIndexes(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Vector: &stubIndex{}}); err == nil {
		t.Error("missing lexical index accepted")
	}
	if _, err := New(Config{Lexical: &stubIndex{}}); err == nil {
		t.Error("missing vector index accepted")
	}
}

func Test_Search_DispatchesByMode(t *testing.T) {
	t.Parallel()

	lexical := &stubIndex{name: "bm25", results: ranking("a.txt", 3)}
	vector := &stubIndex{name: "vector", results: ranking("b.txt", 3)}
	s := newSearcher(t, lexical, vector)
	ctx := context.Background()

	got, err := s.Search(ctx, "idx", "q", rag.ModeBM25, 2, []string{"a"})
	if err != nil {
		t.Fatalf("bm25: %v", err)
	}
	if len(got) != 2 || got[0].SourceFile != "a.txt" {
		t.Errorf("bm25 results = %+v", got)
	}
	if len(vector.limits) != 0 {
		t.Error("bm25 search queried the vector index")
	}
	if len(lexical.ids[0]) != 1 || lexical.ids[0][0] != "a" {
		t.Errorf("source ids not forwarded: %v", lexical.ids)
	}

	got, err = s.Search(ctx, "idx", "q", rag.SearchMode("VECTOR"), 1, nil)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if len(got) != 1 || got[0].SourceFile != "b.txt" {
		t.Errorf("vector results = %+v", got)
	}
}

func Test_Search_HybridCandidateCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		max  int
		want int
	}{
		{1, 20},
		{10, 20},
		{11, 22},
		{25, 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.max), func(t *testing.T) {
			t.Parallel()
			lexical := &stubIndex{results: ranking("a.txt", 30)}
			vector := &stubIndex{results: ranking("b.txt", 30)}
			s := newSearcher(t, lexical, vector)

			got, err := s.Search(context.Background(), "idx", "q", rag.ModeHybrid, tt.max, nil)
			if err != nil {
				t.Fatalf("hybrid: %v", err)
			}
			if lexical.limits[0] != tt.want || vector.limits[0] != tt.want {
				t.Errorf("candidates = %d/%d, want %d", lexical.limits[0], vector.limits[0], tt.want)
			}
			if len(got) != tt.max {
				t.Errorf("results = %d, want %d", len(got), tt.max)
			}
		})
	}
}

func Test_Search_HybridFusesSharedDocuments(t *testing.T) {
	t.Parallel()

	shared := ranking("s.txt", 1)[0]
	lexical := &stubIndex{results: append(ranking("a.txt", 1), shared)}
	vector := &stubIndex{results: append(ranking("b.txt", 1), shared)}
	s := newSearcher(t, lexical, vector)

	got, err := s.Search(context.Background(), "idx", "q", rag.ModeHybrid, 3, nil)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("results = %d, want 3", len(got))
	}
	if got[0].DocumentID != shared.DocumentID {
		t.Errorf("first = %q, want the document found by both indexes", got[0].DocumentID)
	}
	want := 2.0 / 62.0
	if diff := got[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("fused score = %v, want %v", got[0].Score, want)
	}
}

func Test_Search_Errors(t *testing.T) {
	t.Parallel()

	missing := rag.NotFoundf("index not found")

	tests := []struct {
		name    string
		lexical error
		vector  error
		mode    rag.SearchMode
		wantIs  error
	}{
		{"unknown mode", nil, nil, "fuzzy", rag.ErrInvalidArgument},
		{"bm25 missing index", missing, nil, rag.ModeBM25, rag.ErrNotFound},
		{"vector failure", nil, rag.ErrDependencyFailure, rag.ModeVector, rag.ErrDependencyFailure},
		{"hybrid propagates", nil, missing, rag.ModeHybrid, rag.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newSearcher(t,
				&stubIndex{results: ranking("a.txt", 2), err: tt.lexical},
				&stubIndex{results: ranking("b.txt", 2), err: tt.vector},
			)
			_, err := s.Search(context.Background(), "idx", "q", tt.mode, 5, nil)
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func Test_Search_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(Config{
		Lexical: &stubIndex{results: ranking("a.txt", 1)},
		Vector:  &stubIndex{err: errors.New("down")},
		Metrics: metrics.New(reg),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, _ = s.Search(context.Background(), "idx", "q", rag.ModeBM25, 1, nil)
	_, _ = s.Search(context.Background(), "idx", "q", rag.ModeVector, 1, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	seen := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "ragkit_search_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, l := range m.GetLabel() {
				key += l.GetName() + "=" + l.GetValue() + ";"
			}
			seen[key] = m.GetCounter().GetValue()
		}
	}
	if seen["mode=bm25;outcome=ok;"] != 1 || seen["mode=vector;outcome=error;"] != 1 {
		t.Errorf("search counters = %v", seen)
	}
}
