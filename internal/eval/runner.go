package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// Runner evaluates pairs against an index in each requested search mode.
type Runner struct {
	searcher  Searcher
	validator *Validator
	log       *slog.Logger

	// Progress, when set, receives one "Evaluating: ..." line per pair and
	// one "  mode: ✓" or "  mode: ✗" line per verdict.
	Progress io.Writer
}

// NewRunner returns a Runner.
func NewRunner(searcher Searcher, validator *Validator, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{searcher: searcher, validator: validator, log: log}
}

// Run searches every pair's question in every mode, joins the retrieved
// contents with blank lines, and has the validator judge them. An empty
// modes slice evaluates all modes. The first search or chat failure aborts
// the run.
func (r *Runner) Run(ctx context.Context, indexPath string, pairs []Pair, modes []rag.SearchMode, maxResults int) (*Report, error) {
	if len(pairs) == 0 {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "run evals", errors.New("no evaluation queries found"))
	}
	if len(modes) == 0 {
		modes = rag.Modes
	}

	results := make([]Result, 0, len(pairs))
	for i, pair := range pairs {
		r.printf("Evaluating: %s\n", pair.Question)

		res := Result{
			Question:       pair.Question,
			ExpectedAnswer: pair.ExpectedAnswer,
			ModeResults:    make(map[rag.SearchMode]ModeResult, len(modes)),
		}
		for _, mode := range modes {
			hits, err := r.searcher.Search(ctx, indexPath, pair.Question, mode, maxResults, nil)
			if err != nil {
				return nil, dependencyError(fmt.Sprintf("run evals: search %s", mode), err)
			}
			retrieved := joinContents(hits)

			j, err := r.validator.Validate(ctx, pair.Question, pair.ExpectedAnswer, retrieved)
			if err != nil {
				return nil, err
			}
			res.ModeResults[mode] = ModeResult{
				IsCorrect:        j.IsCorrect,
				Explanation:      j.Explanation,
				RetrievedContent: retrieved,
			}

			mark := "✗"
			if j.IsCorrect {
				mark = "✓"
			}
			r.printf("  %s: %s\n", mode, mark)
			r.log.Debug("eval verdict",
				slog.Int("pair", i+1),
				slog.String("mode", string(mode)),
				slog.Int("hits", len(hits)),
				slog.Bool("correct", j.IsCorrect),
			)
		}
		results = append(results, res)
	}

	return &Report{Results: results, Summary: Summarize(results, modes)}, nil
}

func (r *Runner) printf(format string, args ...any) {
	if r.Progress != nil {
		fmt.Fprintf(r.Progress, format, args...)
	}
}

func joinContents(hits []rag.SearchResult) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, "\n\n")
}

// dependencyError keeps an existing error kind and otherwise marks err as
// an ErrDependencyFailure.
func dependencyError(op string, err error) error {
	for _, kind := range []error{rag.ErrNotFound, rag.ErrInvalidArgument, rag.ErrInvalidOperation, rag.ErrDependencyFailure} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return rag.WrapError(rag.ErrDependencyFailure, op, err)
}
