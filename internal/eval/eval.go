// Package eval judges retrieval quality with a chat model. A Generator
// derives question/answer pairs from documents, a Validator asks the model
// whether retrieved content answers a question, and a Runner drives every
// pair through each search mode and summarises accuracy.
package eval

import (
	"context"

	"github.com/54b3r/ragkit/internal/rag"
)

// Pair is one evaluation question with the answer the document supports.
type Pair struct {
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expectedAnswer"`
}

// Judgment is the validator's verdict on one retrieval.
type Judgment struct {
	IsCorrect   bool
	Explanation string
}

// ModeResult records the verdict for one search mode.
type ModeResult struct {
	IsCorrect        bool
	Explanation      string
	RetrievedContent string
}

// Result holds the verdicts of every evaluated mode for one pair.
type Result struct {
	Question       string
	ExpectedAnswer string
	ModeResults    map[rag.SearchMode]ModeResult
}

// ModeSummary is the accuracy of one mode over a run.
type ModeSummary struct {
	Mode     rag.SearchMode
	Correct  int
	Accuracy float64
}

// Summary aggregates a run.
type Summary struct {
	TotalQueries int
	Modes        []ModeSummary
}

// Report is the outcome of Runner.Run.
type Report struct {
	Results []Result
	Summary Summary
}

// Searcher answers a query in one search mode.
type Searcher interface {
	Search(ctx context.Context, indexPath, query string, mode rag.SearchMode, maxResults int, sourceIDs []string) ([]rag.SearchResult, error)
}

// Summarize computes per-mode correct counts and accuracy over results.
// Modes are reported in the given order.
func Summarize(results []Result, modes []rag.SearchMode) Summary {
	s := Summary{TotalQueries: len(results)}
	for _, mode := range modes {
		ms := ModeSummary{Mode: mode}
		for _, r := range results {
			if r.ModeResults[mode].IsCorrect {
				ms.Correct++
			}
		}
		if len(results) > 0 {
			ms.Accuracy = float64(ms.Correct) / float64(len(results))
		}
		s.Modes = append(s.Modes, ms)
	}
	return s
}
