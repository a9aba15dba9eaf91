// Package rag defines the shared data model and capability interfaces of the
// retrieval pipeline: chunks, search results, document identity, the index
// contract implemented by the lexical and vector adapters, and the embedding
// and chat collaborators they depend on.
// Concrete implementations live in sibling packages so the orchestration
// layer never depends on a specific backend.
package rag

import (
	"context"
)

// Index is the contract shared by the lexical and vector adapters.
// Both adapters derive document identifiers through Identity so fused
// results from either index refer to the same chunk.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Name identifies the adapter in logs and metrics ("bm25", "vector").
	Name() string

	// Add indexes the chunks of one source document under indexPath.
	// The index is created if it does not exist yet.
	Add(ctx context.Context, indexPath, sourcePath string, chunks []Chunk) error

	// Query returns up to maxResults results ordered by descending score.
	// A non-empty sourceIDs restricts results to those source ids.
	// Returns an error wrapping ErrNotFound if no index exists at indexPath.
	Query(ctx context.Context, indexPath, query string, maxResults int, sourceIDs []string) ([]SearchResult, error)
}

// Chunker splits document text into ordered, numbered chunks.
type Chunker interface {
	// Name returns the strategy name ("markdown", "paragraph", "semantic").
	Name() string

	// Chunk returns the non-empty chunks of text in source order, numbered
	// from 1. Empty or whitespace-only input yields no chunks.
	Chunk(ctx context.Context, text string) ([]Chunk, error)
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer sends a single prompt to a chat model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
