// Package tools exposes index search as an MCP tool. SearchTool holds the
// search and result formatting; NewMCPServer serves it over stdio.
package tools

import (
	"context"

	"github.com/54b3r/ragkit/internal/rag"
)

// Searcher is the retrieval capability the search tool needs.
type Searcher interface {
	Search(ctx context.Context, indexPath, query string, mode rag.SearchMode, maxResults int, sourceIDs []string) ([]rag.SearchResult, error)
}
