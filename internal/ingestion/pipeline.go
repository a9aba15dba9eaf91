// Package ingestion implements the document ingestion pipeline.
// It reads source files, chunks their content, and writes every chunk to
// the lexical index and then the vector index under one index directory.
// This pipeline is invoked by the `ragkit ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragkit/internal/chunking"
	"github.com/54b3r/ragkit/internal/events"
	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/reader"
)

// Config holds the collaborators and tuning of a Pipeline.
type Config struct {
	// Lexical receives chunks first. Required.
	Lexical rag.Index

	// Vector receives chunks after the lexical index. Required.
	Vector rag.Index

	// Chunkers picks the chunker per file or per strategy name. Required.
	Chunkers *chunking.Selector

	// Readers decodes supported file types. Default: reader.Default().
	Readers *reader.Factory

	// Publisher announces ingested documents. Default: events.Noop.
	Publisher events.Publisher

	// Metrics counts ingested files and chunks. Optional.
	Metrics *metrics.Metrics

	// Concurrency is the number of files ingested at once by IngestFolder.
	// Values below 2 ingest sequentially.
	Concurrency int

	// Logger is used for per-file diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Report summarises one folder ingestion.
type Report struct {
	// Files is the number of supported files found.
	Files int `json:"files"`

	// Ingested counts files written to both indexes.
	Ingested int `json:"ingested"`

	// Skipped counts files that produced no non-empty chunks.
	Skipped int `json:"skipped"`

	// Failed counts files whose ingestion returned an error.
	Failed int `json:"failed"`

	// Chunks is the total number of chunks written.
	Chunks int `json:"chunks"`
}

// Pipeline orchestrates the read → chunk → index flow for single files
// and folders.
type Pipeline struct {
	lexical     rag.Index
	vector      rag.Index
	chunkers    *chunking.Selector
	readers     *reader.Factory
	publisher   events.Publisher
	metrics     *metrics.Metrics
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs a Pipeline from cfg.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ingestion: config must not be nil")
	}
	if cfg.Lexical == nil {
		return nil, fmt.Errorf("ingestion: lexical index must not be nil")
	}
	if cfg.Vector == nil {
		return nil, fmt.Errorf("ingestion: vector index must not be nil")
	}
	if cfg.Chunkers == nil {
		return nil, fmt.Errorf("ingestion: chunker selector must not be nil")
	}

	p := &Pipeline{
		lexical:     cfg.Lexical,
		vector:      cfg.Vector,
		chunkers:    cfg.Chunkers,
		readers:     cfg.Readers,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		log:         cfg.Logger,
		now:         time.Now,
	}
	if p.readers == nil {
		p.readers = reader.Default()
	}
	if p.publisher == nil {
		p.publisher = events.Noop{}
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p, nil
}

// IngestFile indexes the file at path. strategy names a chunker; empty
// selects one from the file extension. Files without a registered reader
// are read as plain text. Returns the number of chunks written.
//
// The lexical index is written before the vector index. A failure in
// either is returned and nothing already written is rolled back.
func (p *Pipeline) IngestFile(ctx context.Context, indexPath, path, strategy string) (int, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, rag.NotFoundf("content file not found: %s", path)
	}

	chunks, err := p.chunkFile(ctx, path, strategy, false)
	if err != nil {
		p.metrics.ObserveIngest(0, err)
		return 0, err
	}

	err = p.write(ctx, indexPath, path, chunks)
	p.metrics.ObserveIngest(len(chunks), err)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IngestFolder indexes every supported file below folder, recursively.
// A failing file is logged, counted in the report, and does not stop the
// batch. progress, if non-nil, receives one human-readable line per event;
// calls are serialised.
func (p *Pipeline) IngestFolder(ctx context.Context, indexPath, folder, strategy string, progress func(msg string)) (Report, error) {
	var report Report

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return report, rag.NotFoundf("folder not found: %s", folder)
	}

	files, err := p.supportedFiles(folder)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	say := func(format string, args ...any) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		progress(fmt.Sprintf(format, args...))
	}

	if len(files) == 0 {
		exts := strings.Join(p.readers.Extensions(), ", ")
		p.log.Info("No supported files found",
			slog.String("folder", folder),
			slog.String("supported_extensions", exts),
		)
		say("No supported files found in %s", folder)
		say("Supported extensions: %s", exts)
		return report, nil
	}

	report.Files = len(files)
	say("Found %d supported files to ingest", len(files))

	ingestOne := func(ctx context.Context, path string) {
		name := filepath.Base(path)
		say("Ingesting: %s", name)

		n, err := p.ingestSupported(ctx, indexPath, path, strategy)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed++
			p.log.Warn("ingest file failed", slog.String("path", path), slog.Any("error", err))
			if progress != nil {
				progress(fmt.Sprintf("  Error ingesting %s: %v", name, err))
			}
		case n == 0:
			report.Skipped++
			if progress != nil {
				progress(fmt.Sprintf("  Skipped (no content): %s", name))
			}
		default:
			report.Ingested++
			report.Chunks += n
			if progress != nil {
				progress(fmt.Sprintf("  Indexed %d chunks from %s", n, name))
			}
		}
	}

	if p.concurrency < 2 {
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			ingestOne(ctx, path)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for _, path := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				ingestOne(gctx, path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	say("Completed ingestion of %d files", report.Files)
	return report, nil
}

// ingestSupported is the per-file step of IngestFolder. Files without
// content are skipped rather than written.
func (p *Pipeline) ingestSupported(ctx context.Context, indexPath, path, strategy string) (int, error) {
	chunks, err := p.chunkFile(ctx, path, strategy, true)
	if err != nil {
		p.metrics.ObserveIngest(0, err)
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	err = p.write(ctx, indexPath, path, chunks)
	p.metrics.ObserveIngest(len(chunks), err)
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// chunkFile reads path and returns its non-empty chunks. strict requires
// a registered reader; otherwise unknown extensions fall back to raw text.
func (p *Pipeline) chunkFile(ctx context.Context, path, strategy string, strict bool) ([]rag.Chunk, error) {
	var (
		text string
		err  error
	)
	if strict || p.readers.CanRead(path) {
		text, err = p.readers.Read(ctx, path)
	} else {
		text, err = reader.ReadRaw(path)
	}
	if err != nil {
		return nil, err
	}

	chunker, err := p.chunkers.Resolve(path, strategy)
	if err != nil {
		return nil, err
	}

	chunks, err := chunker.Chunk(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ingestion: chunk %s with %s: %w", path, chunker.Name(), err)
	}
	return nonEmpty(chunks), nil
}

// write sends chunks to both indexes and announces the document.
func (p *Pipeline) write(ctx context.Context, indexPath, path string, chunks []rag.Chunk) error {
	if err := p.lexical.Add(ctx, indexPath, path, chunks); err != nil {
		return fmt.Errorf("ingestion: %s index %s: %w", p.lexical.Name(), path, err)
	}
	if err := p.vector.Add(ctx, indexPath, path, chunks); err != nil {
		return fmt.Errorf("ingestion: %s index %s: %w", p.vector.Name(), path, err)
	}

	p.log.Debug("document indexed",
		slog.String("path", path),
		slog.Int("chunks", len(chunks)),
	)

	event := events.NewDocumentIngested(indexPath, path, len(chunks), p.now())
	if err := p.publisher.PublishDocumentIngested(ctx, event); err != nil {
		p.log.Warn("publish document event failed",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
	return nil
}

// supportedFiles lists the readable files below folder in lexical order.
func (p *Pipeline) supportedFiles(folder string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && p.readers.CanRead(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walk %s: %w", folder, err)
	}
	return files, nil
}

func nonEmpty(chunks []rag.Chunk) []rag.Chunk {
	out := chunks[:0:0]
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) != "" {
			out = append(out, c)
		}
	}
	return out
}
