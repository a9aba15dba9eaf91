package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragkit/internal/rag"
)

// DefaultBatchSize is the number of chunks embedded per embedder call.
const DefaultBatchSize = 64

// Config holds the collaborators of an Index.
type Config struct {
	// Opener resolves the store for an index path. Default: SQLiteOpener.
	Opener Opener

	// Embedder embeds chunks at write time and queries at read time.
	// Required.
	Embedder rag.Embedder

	// BatchSize caps the number of texts per Embed call.
	// Default: DefaultBatchSize.
	BatchSize int

	// Logger is used for debug output. Default: slog.Default().
	Logger *slog.Logger
}

// Index is the vector adapter. It implements rag.Index.
type Index struct {
	opener    Opener
	embedder  rag.Embedder
	batchSize int
	log       *slog.Logger
}

// New constructs an Index. Returns an error if no embedder is configured.
func New(cfg Config) (*Index, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("vector: embedder must not be nil")
	}
	if cfg.Opener == nil {
		cfg.Opener = SQLiteOpener{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Index{
		opener:    cfg.Opener,
		embedder:  cfg.Embedder,
		batchSize: cfg.BatchSize,
		log:       cfg.Logger,
	}, nil
}

// Name implements rag.Index.
func (*Index) Name() string { return string(rag.ModeVector) }

// Add implements rag.Index. Chunks that already carry an embedding are
// stored as-is; the rest are embedded in batches.
func (x *Index) Add(ctx context.Context, indexPath, sourcePath string, chunks []rag.Chunk) error {
	vectors, err := x.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	id := rag.NewIdentity(sourcePath)
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			Key:         id.RecordKey(c.Number),
			Content:     c.Content,
			SourceFile:  id.SourceFile,
			SourcePath:  id.SourcePath,
			SourceID:    id.SourceID,
			ChunkNumber: c.Number,
			DocumentID:  id.DocumentID(c.Number),
			Embedding:   vectors[i],
		}
	}

	store, err := x.opener.Open(ctx, indexPath, true)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Replace(ctx, sourcePath, records); err != nil {
		return err
	}
	x.log.Debug("vector: stored chunks",
		slog.String("index_path", indexPath),
		slog.String("source", sourcePath),
		slog.Int("chunks", len(records)),
	)
	return nil
}

func (x *Index) embedChunks(ctx context.Context, chunks []rag.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	var pending []int
	for i, c := range chunks {
		if len(c.Embedding) > 0 {
			vectors[i] = c.Embedding
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += x.batchSize {
		batch := pending[start:min(start+x.batchSize, len(pending))]
		texts := make([]string, len(batch))
		for j, i := range batch {
			texts[j] = chunks[i].Content
		}
		out, err := x.embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		for j, i := range batch {
			vectors[i] = out[j]
		}
	}
	return vectors, nil
}

func (x *Index) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, rag.WrapError(rag.ErrDependencyFailure, "vector: embed", err)
	}
	if len(out) != len(texts) {
		return nil, rag.WrapError(rag.ErrDependencyFailure, "vector: embed",
			fmt.Errorf("embedder returned %d vectors for %d inputs", len(out), len(texts)))
	}
	return out, nil
}

// Query implements rag.Index. Distances are converted to similarity as
// 1 - distance, so higher is better for every store.
func (x *Index) Query(ctx context.Context, indexPath, query string, maxResults int, sourceIDs []string) ([]rag.SearchResult, error) {
	store, err := x.opener.Open(ctx, indexPath, false)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if maxResults <= 0 {
		return nil, nil
	}

	vectors, err := x.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := store.Search(ctx, vectors[0], maxResults, sourceIDs)
	if err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = rag.SearchResult{
			Score:       1 - h.Distance,
			Content:     h.Content,
			SourceFile:  h.SourceFile,
			SourcePath:  h.SourcePath,
			SourceID:    h.SourceID,
			ChunkNumber: h.ChunkNumber,
			DocumentID:  h.DocumentID,
		}
	}
	return results, nil
}
