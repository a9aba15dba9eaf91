package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragkit/internal/chunking"
	"github.com/54b3r/ragkit/internal/events"
	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
)

type addCall struct {
	index  string
	source string
	chunks []rag.Chunk
}

// recordingIndex is a rag.Index that records Add calls into a shared log.
type recordingIndex struct {
	name   string
	mu     *sync.Mutex
	calls  *[]addCall
	failOn string
}

func (x *recordingIndex) Name() string { return x.name }

func (x *recordingIndex) Add(_ context.Context, indexPath, sourcePath string, chunks []rag.Chunk) error {
	if x.failOn != "" && strings.HasSuffix(sourcePath, x.failOn) {
		return errors.New(x.name + " unavailable")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	*x.calls = append(*x.calls, addCall{index: x.name, source: sourcePath, chunks: chunks})
	return nil
}

func (x *recordingIndex) Query(context.Context, string, string, int, []string) ([]rag.SearchResult, error) {
	return nil, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DocumentIngested
	err    error
}

func (p *recordingPublisher) PublishDocumentIngested(_ context.Context, e events.DocumentIngested) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() {}

type fixture struct {
	pipeline  *Pipeline
	calls     *[]addCall
	publisher *recordingPublisher
	registry  *prometheus.Registry
}

func newFixture(t *testing.T, concurrency int, failVectorOn string) *fixture {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []addCall
	)
	pub := &recordingPublisher{}
	reg := prometheus.NewRegistry()
	p, err := NewPipeline(&Config{
		Lexical:     &recordingIndex{name: "bm25", mu: &mu, calls: &calls},
		Vector:      &recordingIndex{name: "vector", mu: &mu, calls: &calls, failOn: failVectorOn},
		Chunkers:    chunking.NewSelector(nil),
		Publisher:   pub,
		Metrics:     metrics.New(reg),
		Concurrency: concurrency,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return &fixture{pipeline: p, calls: &calls, publisher: pub, registry: reg}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func Test_NewPipeline_Validation(t *testing.T) {
	t.Parallel()

	idx := &recordingIndex{name: "x", mu: &sync.Mutex{}, calls: &[]addCall{}}
	sel := chunking.NewSelector(nil)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config must not be nil"},
		{"no lexical", &Config{Vector: idx, Chunkers: sel}, "lexical index"},
		{"no vector", &Config{Lexical: idx, Chunkers: sel}, "vector index"},
		{"no chunkers", &Config{Lexical: idx, Vector: idx}, "chunker selector"},
		{"ok", &Config{Lexical: idx, Vector: idx, Chunkers: sel}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewPipeline(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func Test_IngestFile_WritesLexicalThenVector(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	path := writeFile(t, filepath.Join(t.TempDir(), "notes.txt"), "first paragraph\n\n   \n\nsecond paragraph")

	n, err := f.pipeline.IngestFile(context.Background(), "idx", path, "")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunks = %d, want 2", n)
	}

	calls := *f.calls
	if len(calls) != 2 || calls[0].index != "bm25" || calls[1].index != "vector" {
		t.Fatalf("calls = %+v, want bm25 then vector", calls)
	}
	for _, c := range calls[0].chunks {
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("whitespace chunk reached the index: %+v", c)
		}
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	if e := f.publisher.events[0]; e.SourceID != "notes" || e.Chunks != 2 || e.IndexPath != "idx" {
		t.Errorf("event = %+v", e)
	}
}

func Test_IngestFile_ExplicitStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	path := writeFile(t, filepath.Join(t.TempDir(), "doc.txt"), "# Title\nbody\n\n# Other\nmore")

	n, err := f.pipeline.IngestFile(context.Background(), "idx", path, "markdown")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 2 {
		t.Errorf("markdown strategy produced %d chunks, want 2", n)
	}

	_, err = f.pipeline.IngestFile(context.Background(), "idx", path, "semantic")
	if !errors.Is(err, rag.ErrInvalidOperation) {
		t.Errorf("semantic without embedder: error = %v, want ErrInvalidOperation", err)
	}

	_, err = f.pipeline.IngestFile(context.Background(), "idx", path, "sentences")
	if !errors.Is(err, rag.ErrInvalidArgument) {
		t.Errorf("unknown strategy: error = %v, want ErrInvalidArgument", err)
	}
}

func Test_IngestFile_UnknownExtensionReadsRaw(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	path := writeFile(t, filepath.Join(t.TempDir(), "main.go"), "package main")

	n, err := f.pipeline.IngestFile(context.Background(), "idx", path, "")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 1 {
		t.Errorf("chunks = %d, want 1", n)
	}
}

func Test_IngestFile_Missing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	_, err := f.pipeline.IngestFile(context.Background(), "idx", filepath.Join(t.TempDir(), "nope.txt"), "")
	if !errors.Is(err, rag.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func Test_IngestFile_VectorFailureReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "bad.txt")
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.txt"), "content")

	_, err := f.pipeline.IngestFile(context.Background(), "idx", path, "")
	if err == nil || !strings.Contains(err.Error(), "vector unavailable") {
		t.Fatalf("error = %v, want vector failure", err)
	}
	// The lexical write is not rolled back.
	if calls := *f.calls; len(calls) != 1 || calls[0].index != "bm25" {
		t.Errorf("calls = %+v, want the lexical write only", calls)
	}
	if len(f.publisher.events) != 0 {
		t.Error("failed document must not be announced")
	}
}

func Test_IngestFile_PublishFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	f.publisher.err = errors.New("broker down")
	path := writeFile(t, filepath.Join(t.TempDir(), "a.txt"), "content")

	if _, err := f.pipeline.IngestFile(context.Background(), "idx", path, ""); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
}

func Test_IngestFolder(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 4} {
		t.Run("concurrency", func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "a.md"), "# A\nalpha")
			writeFile(t, filepath.Join(dir, "nested", "b.txt"), "beta\n\ngamma")
			writeFile(t, filepath.Join(dir, "empty.txt"), "   \n\n ")
			writeFile(t, filepath.Join(dir, "bad.txt"), "broken")
			writeFile(t, filepath.Join(dir, "image.png"), "not text")

			f := newFixture(t, concurrency, "bad.txt")
			var lines []string
			report, err := f.pipeline.IngestFolder(context.Background(), "idx", dir, "", func(msg string) {
				lines = append(lines, msg)
			})
			if err != nil {
				t.Fatalf("IngestFolder: %v", err)
			}

			want := Report{Files: 4, Ingested: 2, Skipped: 1, Failed: 1, Chunks: 3}
			if report != want {
				t.Errorf("report = %+v, want %+v", report, want)
			}

			out := strings.Join(lines, "\n")
			for _, s := range []string{
				"Found 4 supported files to ingest",
				"Skipped (no content): empty.txt",
				"Error ingesting bad.txt",
				"Completed ingestion of 4 files",
			} {
				if !strings.Contains(out, s) {
					t.Errorf("progress missing %q:\n%s", s, out)
				}
			}
			if strings.Contains(out, "image.png") {
				t.Error("unsupported file was ingested")
			}

			if got := len(f.publisher.events); got != 2 {
				t.Errorf("published %d events, want 2", got)
			}
		})
	}
}

func Test_IngestFolder_NoSupportedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "image.png"), "x")

	f := newFixture(t, 1, "")
	var lines []string
	report, err := f.pipeline.IngestFolder(context.Background(), "idx", dir, "", func(msg string) {
		lines = append(lines, msg)
	})
	if err != nil {
		t.Fatalf("IngestFolder: %v", err)
	}
	if report.Files != 0 || len(*f.calls) != 0 {
		t.Errorf("report = %+v, calls = %d", report, len(*f.calls))
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "No supported files found") ||
		!strings.Contains(lines[1], ".md") {
		t.Errorf("progress = %q", lines)
	}
}

func Test_IngestFolder_Missing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, "")
	_, err := f.pipeline.IngestFolder(context.Background(), "idx", filepath.Join(t.TempDir(), "gone"), "", nil)
	if !errors.Is(err, rag.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
