package retrieval

import (
	"context"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/54b3r/ragkit/internal/chunking"
	"github.com/54b3r/ragkit/internal/ingestion"
	"github.com/54b3r/ragkit/internal/lexical"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/vector"
)

// bagOfWords embeds text as hashed word counts, so texts sharing words are
// close and texts without shared words are orthogonal.
type bagOfWords struct {
	dims int
}

func (b bagOfWords) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, b.dims)
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			v[h.Sum32()%uint32(b.dims)]++
		}
		out[i] = v
	}
	return out, nil
}

// realStack wires the SQLite-backed indexes, the pipeline and a Searcher.
func realStack(t *testing.T) (*ingestion.Pipeline, *Searcher) {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	emb := bagOfWords{dims: 256}

	lex := lexical.New(lexical.Config{Logger: log})
	vec, err := vector.New(vector.Config{Embedder: emb, Logger: log})
	if err != nil {
		t.Fatalf("vector.New: %v", err)
	}
	semantic, err := chunking.NewSemantic(emb, chunking.SemanticConfig{})
	if err != nil {
		t.Fatalf("NewSemantic: %v", err)
	}

	p, err := ingestion.NewPipeline(&ingestion.Config{
		Lexical:  lex,
		Vector:   vec,
		Chunkers: chunking.NewSelector(semantic),
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	s, err := New(Config{Lexical: lex, Vector: vec, Logger: log})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, s
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func Test_Integration_FolderRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	docs := t.TempDir()
	indexPath := filepath.Join(t.TempDir(), "index")
	writeFiles(t, docs, map[string]string{
		"guide.md":  "# Guide\n\nThe guide covers indexing.\n\n## Search\n\nQueries run in three modes.",
		"doc1.txt":  "Alpha paragraph about retrieval.\n\nBeta paragraph about ranking.",
		"doc2.txt":  "Gamma paragraph about retrieval.\n\nDelta paragraph about fusion.",
		"data.json": `{"note": "xylophone orchestration"}`,
	})

	p, s := realStack(t)
	report, err := p.IngestFolder(ctx, indexPath, docs, "", nil)
	if err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	if report.Files != 3 || report.Ingested != 3 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 3 files ingested", report)
	}

	for id, term := range map[string]string{"guide": "modes", "doc1": "alpha", "doc2": "gamma"} {
		got, err := s.Search(ctx, indexPath, term, rag.ModeBM25, 5, []string{id})
		if err != nil {
			t.Fatalf("Search(%q): %v", term, err)
		}
		if len(got) == 0 {
			t.Errorf("no bm25 results for %q in %s", term, id)
		}
	}

	for _, mode := range rag.Modes {
		got, err := s.Search(ctx, indexPath, "xylophone", mode, 5, nil)
		if err != nil {
			t.Fatalf("%s Search: %v", mode, err)
		}
		if mode == rag.ModeBM25 && len(got) != 0 {
			t.Errorf("bm25 returned %d results for a term only in the unsupported file", len(got))
		}
		for _, r := range got {
			if r.SourceFile == "data.json" || strings.Contains(r.Content, "xylophone") {
				t.Errorf("%s returned content of the unsupported file: %+v", mode, r)
			}
		}
	}
}

func Test_Integration_SourceIDFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	docs := t.TempDir()
	indexPath := filepath.Join(t.TempDir(), "index")
	writeFiles(t, docs, map[string]string{
		"doc1.txt": "Retrieval with filters.\n\nMore retrieval notes for the first document.",
		"doc2.txt": "Retrieval in the second document.\n\nAnother retrieval paragraph.",
	})

	p, s := realStack(t)
	for _, name := range []string{"doc1.txt", "doc2.txt"} {
		if _, err := p.IngestFile(ctx, indexPath, filepath.Join(docs, name), ""); err != nil {
			t.Fatalf("IngestFile(%s): %v", name, err)
		}
	}

	for _, mode := range rag.Modes {
		t.Run(string(mode), func(t *testing.T) {
			got, err := s.Search(ctx, indexPath, "retrieval", mode, 10, []string{"doc1"})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) == 0 {
				t.Fatal("no results for doc1")
			}
			for _, r := range got {
				if r.SourceID != "doc1" {
					t.Errorf("result from %q, want only doc1", r.SourceID)
				}
			}

			limited, err := s.Search(ctx, indexPath, "retrieval", mode, 1, nil)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(limited) > 1 {
				t.Errorf("got %d results, want at most 1", len(limited))
			}
		})
	}
}

func Test_Integration_LexicalFox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	docs := t.TempDir()
	indexPath := filepath.Join(t.TempDir(), "index")
	writeFiles(t, docs, map[string]string{
		"animals.txt": "The quick brown fox jumps over the lazy dog.\n\nCats sleep most of the day.\n\nBirds sing at dawn.",
	})

	p, s := realStack(t)
	if _, err := p.IngestFile(ctx, indexPath, filepath.Join(docs, "animals.txt"), ""); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	got, err := s.Search(ctx, indexPath, "fox", rag.ModeBM25, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0].Content, "fox") || got[0].ChunkNumber != 1 {
		t.Errorf("fox results = %+v, want the first paragraph only", got)
	}

	got, err = s.Search(ctx, indexPath, "elephant", rag.ModeBM25, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("elephant returned %d results, want none", len(got))
	}
}
