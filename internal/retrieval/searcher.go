// Package retrieval answers queries against an index directory in one of
// three modes: lexical BM25, vector similarity, or a hybrid of both fused
// with Reciprocal Rank Fusion.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragkit/internal/fusion"
	"github.com/54b3r/ragkit/internal/metrics"
	"github.com/54b3r/ragkit/internal/rag"
)

// MinHybridCandidates is the smallest candidate list requested from each
// index before fusion.
const MinHybridCandidates = 20

// Config holds the collaborators of a Searcher.
type Config struct {
	// Lexical answers bm25 queries. Required.
	Lexical rag.Index

	// Vector answers vector queries. Required.
	Vector rag.Index

	// Fusion merges hybrid candidate lists. Zero value uses RRF with K=60.
	Fusion fusion.RRF

	// Metrics records request counts and latency. Optional.
	Metrics *metrics.Metrics

	// Logger is used for debug output. Default: slog.Default().
	Logger *slog.Logger
}

// Searcher dispatches a query to the index selected by the search mode.
// It is safe for concurrent use.
type Searcher struct {
	lexical rag.Index
	vector  rag.Index
	fusion  fusion.RRF
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New constructs a Searcher.
func New(cfg Config) (*Searcher, error) {
	if cfg.Lexical == nil {
		return nil, fmt.Errorf("retrieval: lexical index must not be nil")
	}
	if cfg.Vector == nil {
		return nil, fmt.Errorf("retrieval: vector index must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Searcher{
		lexical: cfg.Lexical,
		vector:  cfg.Vector,
		fusion:  cfg.Fusion,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}, nil
}

// Search returns up to maxResults results for query, best first.
// A non-empty sourceIDs restricts results to those source ids.
// Index errors are returned unchanged.
func (s *Searcher) Search(
	ctx context.Context,
	indexPath, query string,
	mode rag.SearchMode,
	maxResults int,
	sourceIDs []string,
) (results []rag.SearchResult, err error) {
	mode, err = rag.ParseSearchMode(string(mode))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveSearch(string(mode), err, time.Since(start))
	}()

	switch mode {
	case rag.ModeBM25:
		return s.lexical.Query(ctx, indexPath, query, maxResults, sourceIDs)
	case rag.ModeVector:
		return s.vector.Query(ctx, indexPath, query, maxResults, sourceIDs)
	default:
		return s.hybrid(ctx, indexPath, query, maxResults, sourceIDs)
	}
}

// hybrid queries both indexes concurrently and fuses their rankings.
func (s *Searcher) hybrid(ctx context.Context, indexPath, query string, maxResults int, sourceIDs []string) ([]rag.SearchResult, error) {
	candidates := max(2*maxResults, MinHybridCandidates)

	var lexical, vector []rag.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexical, err = s.lexical.Query(gctx, indexPath, query, candidates, sourceIDs)
		return err
	})
	g.Go(func() error {
		var err error
		vector, err = s.vector.Query(gctx, indexPath, query, candidates, sourceIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := s.fusion.Fuse(lexical, vector, maxResults)
	s.log.Debug("hybrid search fused",
		slog.Int("lexical", len(lexical)),
		slog.Int("vector", len(vector)),
		slog.Int("results", len(fused)),
	)
	return fused, nil
}
