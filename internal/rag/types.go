package rag

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Chunk is one contiguous piece of a source document.
type Chunk struct {
	// Content is the trimmed chunk text. Never empty once indexed.
	Content string

	// Number is the 1-based position of the chunk within its document.
	Number int

	// Embedding is set by chunkers that compute vectors while chunking.
	// The vector adapter embeds chunks that arrive without one.
	Embedding []float32

	// HeaderText is the heading that opens a markdown chunk, if any.
	HeaderText string

	// HeaderLevel is the number of '#' markers of HeaderText (0 for none).
	HeaderLevel int

	// StartLine and EndLine are 1-based line numbers in the source text.
	// Only the markdown chunker sets them.
	StartLine int
	EndLine   int
}

// SearchResult is a single ranked hit returned by an index or by fusion.
type SearchResult struct {
	Score       float64 `json:"score"`
	Content     string  `json:"content"`
	SourceFile  string  `json:"sourceFile"`
	SourcePath  string  `json:"sourcePath"`
	SourceID    string  `json:"sourceId"`
	ChunkNumber int     `json:"chunkNumber"`
	DocumentID  string  `json:"documentId"`
}

// SearchMode selects which index answers a query.
type SearchMode string

const (
	ModeBM25   SearchMode = "bm25"
	ModeVector SearchMode = "vector"
	ModeHybrid SearchMode = "hybrid"
)

// Modes lists every supported search mode in evaluation order.
var Modes = []SearchMode{ModeBM25, ModeVector, ModeHybrid}

// ParseSearchMode maps a user-supplied mode name onto a SearchMode.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseSearchMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBM25, ModeVector, ModeHybrid:
		return m, nil
	default:
		return "", WrapError(ErrInvalidArgument, "parse search mode",
			fmt.Errorf("unsupported search mode %q (use bm25, vector or hybrid)", s))
	}
}

// Identity carries the identifiers derived from a document's path.
// It is the only place document and record keys are built.
type Identity struct {
	// SourceFile is the file name including its extension.
	SourceFile string

	// SourcePath is the path exactly as it was given for ingestion.
	SourcePath string

	// SourceID is the file name without its extension.
	SourceID string
}

// NewIdentity derives the identity of the document at path.
func NewIdentity(path string) Identity {
	file := filepath.Base(path)
	return Identity{
		SourceFile: file,
		SourcePath: path,
		SourceID:   strings.TrimSuffix(file, filepath.Ext(file)),
	}
}

// DocumentID returns "{SourceFile}_{n}", the identifier fusion keys on.
func (id Identity) DocumentID(n int) string {
	return fmt.Sprintf("%s_%d", id.SourceFile, n)
}

// RecordKey returns "{SourceID}_{n}", the vector store record key.
func (id Identity) RecordKey(n int) string {
	return fmt.Sprintf("%s_%d", id.SourceID, n)
}

// Result builds the SearchResult for chunk n of this document.
func (id Identity) Result(n int, content string, score float64) SearchResult {
	return SearchResult{
		Score:       score,
		Content:     content,
		SourceFile:  id.SourceFile,
		SourcePath:  id.SourcePath,
		SourceID:    id.SourceID,
		ChunkNumber: n,
		DocumentID:  id.DocumentID(n),
	}
}
