package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/eval"
	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/rag"
	"github.com/54b3r/ragkit/internal/reader"
	"github.com/54b3r/ragkit/internal/store"
	"github.com/54b3r/ragkit/internal/tracing"
)

// NewEvalCmd constructs the `ragkit eval` command and its generate and
// history subcommands.
func NewEvalCmd() *cobra.Command {
	var indexPath string
	var evalsPath string
	var modeValues []string
	var maxResults int

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure retrieval accuracy per search mode with an LLM judge",
		Long: `Run every question of an evals file through each search mode and ask the
chat model whether the retrieved content answers it.

The evals file is a JSON array of {"question", "expectedAnswer"} objects,
by default {index-path}/evals.json (see 'ragkit eval generate'). Detailed
results are written to {index-path}/eval-results.json and the summary is
appended to the run history ('ragkit eval history').

Examples:
  ragkit eval --index-path ./index
  ragkit eval --index-path ./index --modes bm25,hybrid --max-results 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			if evalsPath == "" {
				evalsPath = eval.EvalsPath(indexPath)
			}
			pairs, err := eval.LoadPairs(evalsPath)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			modes, err := parseModes(modeValues)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			s, err := buildStack(log, stackOptions{requireEmbedder: needsEmbedder(modes)})
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			defer s.Close()

			flush := tracing.Setup(log)
			defer flush()

			completer, err := buildCompleter(ctx, log)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			runner := eval.NewRunner(s.searcher, eval.NewValidator(completer), log)
			runner.Progress = out
			report, err := runner.Run(ctx, indexPath, pairs, modes, maxResults)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			summary, err := json.MarshalIndent(report.Summary, "", "  ")
			if err != nil {
				return fmt.Errorf("eval: encode summary: %w", err)
			}
			fmt.Fprintf(out, "\nEvaluation Summary:\n%s\n", summary)

			resultsPath := eval.ResultsPath(indexPath)
			if err := eval.SaveResults(resultsPath, report.Results); err != nil {
				return fmt.Errorf("eval: %w", err)
			}
			fmt.Fprintf(out, "Detailed results saved to: %s\n", resultsPath)

			if err := recordRun(cmd, indexPath, evalsPath, maxResults, report.Summary); err != nil {
				log.Warn("eval: failed to record run history", slog.Any("error", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory to evaluate")
	cmd.Flags().StringVar(&evalsPath, "evals-path", "", "Evals file (default: {index-path}/evals.json)")
	cmd.Flags().StringSliceVar(&modeValues, "modes", nil, "Search modes to evaluate (default: bm25,vector,hybrid)")
	cmd.Flags().IntVar(&maxResults, "max-results", 5, "Results retrieved per question")
	_ = cmd.MarkFlagRequired("index-path")

	cmd.AddCommand(newEvalGenerateCmd(), newEvalHistoryCmd())
	return cmd
}

// needsEmbedder reports whether any mode embeds the query.
func needsEmbedder(modes []rag.SearchMode) bool {
	for _, m := range modes {
		if m != rag.ModeBM25 {
			return true
		}
	}
	return false
}

// recordRun appends the summary to the index's run history.
func recordRun(cmd *cobra.Command, indexPath, evalsPath string, maxResults int, summary eval.Summary) error {
	st, err := store.Open(store.PathFor(indexPath))
	if err != nil {
		return err
	}
	defer st.Close()

	run := store.Run{
		RanAt:        time.Now().UTC(),
		EvalsPath:    evalsPath,
		TotalQueries: summary.TotalQueries,
		MaxResults:   maxResults,
	}
	for _, m := range summary.Modes {
		run.Modes = append(run.Modes, store.ModeAccuracy{
			Mode:     string(m.Mode),
			Correct:  m.Correct,
			Accuracy: m.Accuracy,
		})
	}
	_, err = st.Record(cmd.Context(), run)
	return err
}

func newEvalGenerateCmd() *cobra.Command {
	var indexPath string
	var contentPath string
	var count int
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate question/answer pairs from documents",
		Long: `Ask the chat model for --count question/answer pairs per document and write
them as an evals file. --content-path may be a file or a folder; folders
contribute every supported file.

Examples:
  ragkit eval generate --index-path ./index --content-path ./docs
  ragkit eval generate --index-path ./index --content-path guide.md --count 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			readers := reader.Default()
			files, err := contentFiles(readers, contentPath)
			if err != nil {
				return fmt.Errorf("eval generate: %w", err)
			}

			flush := tracing.Setup(log)
			defer flush()

			completer, err := buildCompleter(ctx, log)
			if err != nil {
				return fmt.Errorf("eval generate: %w", err)
			}
			gen := eval.NewGenerator(completer, log)

			var pairs []eval.Pair
			for _, f := range files {
				text, err := readContent(ctx, readers, f)
				if err != nil {
					return fmt.Errorf("eval generate: %w", err)
				}
				fmt.Fprintf(out, "Generating questions from: %s\n", filepath.Base(f))
				generated, err := gen.Generate(ctx, text, count)
				if err != nil {
					return fmt.Errorf("eval generate: %s: %w", f, err)
				}
				pairs = append(pairs, generated...)
			}

			if output == "" {
				output = eval.EvalsPath(indexPath)
			}
			if err := eval.SavePairs(output, pairs); err != nil {
				return fmt.Errorf("eval generate: %w", err)
			}
			fmt.Fprintf(out, "Generated %d evaluation pairs from %d file(s), saved to: %s\n", len(pairs), len(files), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory the evals belong to")
	cmd.Flags().StringVar(&contentPath, "content-path", "", "File or folder to generate questions from")
	cmd.Flags().IntVar(&count, "count", 10, "Pairs generated per file")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: {index-path}/evals.json)")
	_ = cmd.MarkFlagRequired("index-path")
	_ = cmd.MarkFlagRequired("content-path")

	return cmd
}

// contentFiles returns path itself for a file, or every file under a
// folder that has a reader.
func contentFiles(readers *reader.Factory, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, rag.NotFoundf("content path '%s' not found", path)
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && readers.CanRead(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "eval generate",
			fmt.Errorf("no supported files found in %s", path))
	}
	return files, nil
}

// readContent reads a file through its reader, or as raw text when no
// reader handles the extension.
func readContent(ctx context.Context, readers *reader.Factory, path string) (string, error) {
	if readers.CanRead(path) {
		return readers.Read(ctx, path)
	}
	return reader.ReadRaw(path)
}

func newEvalHistoryCmd() *cobra.Command {
	var indexPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past evaluation runs of an index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDir(indexPath, "Index directory"); err != nil {
				return fmt.Errorf("eval history: %w", err)
			}
			path := store.PathFor(indexPath)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No evaluation runs recorded.")
				return nil
			}

			st, err := store.Open(path)
			if err != nil {
				return fmt.Errorf("eval history: %w", err)
			}
			defer st.Close()

			runs, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("eval history: %w", err)
			}
			return printHistory(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list, newest first")
	_ = cmd.MarkFlagRequired("index-path")

	return cmd
}

// printHistory writes one block per run.
func printHistory(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No evaluation runs recorded.")
		return err
	}
	for _, r := range runs {
		if _, err := fmt.Fprintf(w, "Run %d at %s (%d queries, max results %d, evals: %s)\n",
			r.ID, r.RanAt.UTC().Format(time.RFC3339), r.TotalQueries, r.MaxResults, r.EvalsPath); err != nil {
			return err
		}
		for _, m := range r.Modes {
			if _, err := fmt.Fprintf(w, "  %s: %d/%d (%.1f%%)\n", m.Mode, m.Correct, r.TotalQueries, m.Accuracy*100); err != nil {
				return err
			}
		}
	}
	return nil
}
