package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/rag"
)

// NewQueryCmd constructs the `ragkit query` command.
func NewQueryCmd() *cobra.Command {
	var indexPath string
	var query string
	var maxResults int
	var sourceIDs []string
	var mode string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search the index",
		Long: `Search the index in bm25, vector or hybrid mode and print the results,
best first.

bm25 queries accept quoted phrases, AND/OR/NOT, grouping with parentheses
and prefix* terms; bare terms are joined with AND (LEXICAL_DEFAULT_OPERATOR
switches to OR).

Examples:
  ragkit query --index-path ./index --query "connection pooling"
  ragkit query --index-path ./index --query "retry policy" --search-mode hybrid --max-results 5
  ragkit query --index-path ./index --query timeout --sourceIds readme,guide`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			parsed, err := rag.ParseSearchMode(mode)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			s, err := buildStack(log, stackOptions{requireEmbedder: parsed != rag.ModeBM25})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer s.Close()

			results, err := s.searcher.Search(ctx, indexPath, query, parsed, maxResults, splitList(sourceIDs))
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			return printResults(cmd.OutOrStdout(), results, parsed)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory to search")
	cmd.Flags().StringVar(&query, "query", "", "Query text")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "Maximum number of results")
	cmd.Flags().StringSliceVar(&sourceIDs, "sourceIds", nil, "Restrict results to these source ids (comma-separated or repeated)")
	cmd.Flags().StringVar(&mode, "search-mode", string(rag.ModeBM25), "Search mode: bm25, vector, hybrid")
	_ = cmd.MarkFlagRequired("index-path")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

// printResults writes results in the query command's text layout.
func printResults(w io.Writer, results []rag.SearchResult, mode rag.SearchMode) error {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("No results found.\n")
	} else {
		fmt.Fprintf(&b, "Found %d result(s) using %s search:\n\n", len(results), mode)
		for i, r := range results {
			fmt.Fprintf(&b, "Result %d (Score: %.4f)\n", i+1, r.Score)
			fmt.Fprintf(&b, "Source: %s (Paragraph %d)\n", r.SourceFile, r.ChunkNumber)
			fmt.Fprintf(&b, "Content: %s\n", r.Content)
			if i < len(results)-1 {
				b.WriteString(strings.Repeat("-", 60) + "\n")
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
