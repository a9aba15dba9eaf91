package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// DefaultMaxResults is used when the caller does not set maxResults.
const DefaultMaxResults = 5

// resultSeparator divides documents in the tool output.
var resultSeparator = "\n" + strings.Repeat("-", 60) + "\n\n"

// SearchTool searches one index directory. The directory and the searcher
// are fixed at construction.
type SearchTool struct {
	indexPath string
	searcher  Searcher
}

// Outcome is the text of a tool call and whether it reports a failure.
type Outcome struct {
	Text    string
	IsError bool
}

// NewSearchTool constructs a SearchTool over indexPath.
func NewSearchTool(indexPath string, searcher Searcher) *SearchTool {
	return &SearchTool{indexPath: indexPath, searcher: searcher}
}

// Name returns the tool name registered with agents and MCP clients.
func (t *SearchTool) Name() string { return "search" }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Performs BM25, vector or hybrid similarity search against the document index " +
		"and returns the most relevant chunks with their source file and paragraph number."
}

// Run performs one search and formats the result for a tool caller.
// maxResults <= 0 uses DefaultMaxResults and an empty mode means bm25.
func (t *SearchTool) Run(ctx context.Context, query string, maxResults int, sourceIDs []string, mode string) Outcome {
	if strings.TrimSpace(query) == "" {
		return Outcome{Text: "Query is required", IsError: true}
	}
	if info, err := os.Stat(t.indexPath); err != nil || !info.IsDir() {
		return Outcome{Text: fmt.Sprintf("Index directory '%s' not found.", t.indexPath), IsError: true}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if mode == "" {
		mode = string(rag.ModeBM25)
	}

	m, err := rag.ParseSearchMode(mode)
	if err != nil {
		return Outcome{Text: fmt.Sprintf("Search failed: %v", err), IsError: true}
	}
	results, err := t.searcher.Search(ctx, t.indexPath, query, m, maxResults, sourceIDs)
	if err != nil {
		return Outcome{Text: fmt.Sprintf("Search failed: %v", err), IsError: true}
	}
	return Outcome{Text: FormatResults(results)}
}

// FormatResults renders results in the tool's text format.
func FormatResults(results []rag.SearchResult) string {
	if len(results) == 0 {
		return "No relevant documents found for the query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant document(s):\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "Document %d (Score: %.4f)\n", i+1, r.Score)
		fmt.Fprintf(&b, "Source: %s (Paragraph %d)\n", r.SourceFile, r.ChunkNumber)
		fmt.Fprintf(&b, "Source ID: %s\n", r.SourceID)
		fmt.Fprintf(&b, "Content: %s\n", r.Content)
		if i < len(results)-1 {
			b.WriteString(resultSeparator)
		}
	}
	return b.String()
}
