package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/54b3r/ragkit/internal/rag"
)

// File names kept alongside an index.
const (
	EvalsFile   = "evals.json"
	ResultsFile = "eval-results.json"
)

// EvalsPath returns the default evals file of an index.
func EvalsPath(indexPath string) string { return filepath.Join(indexPath, EvalsFile) }

// ResultsPath returns the detailed results file of an index.
func ResultsPath(indexPath string) string { return filepath.Join(indexPath, ResultsFile) }

// LoadPairs reads a JSON array of pairs. A missing file is ErrNotFound; an
// unparseable or empty list is ErrInvalidOperation.
func LoadPairs(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, rag.NotFoundf("evals file not found: %s", path)
		}
		return nil, fmt.Errorf("eval: read %s: %w", path, err)
	}

	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "load evals", fmt.Errorf("parse %s: %w", path, err))
	}
	if len(pairs) == 0 {
		return nil, rag.WrapError(rag.ErrInvalidOperation, "load evals", errors.New("no evaluation queries found"))
	}
	return pairs, nil
}

// SavePairs writes pairs as an indented JSON array, creating parent
// directories.
func SavePairs(path string, pairs []Pair) error {
	if pairs == nil {
		pairs = []Pair{}
	}
	return writeJSON(path, pairs)
}

// SaveResults writes the detailed per-pair results.
func SaveResults(path string, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	return writeJSON(path, results)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("eval: encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("eval: create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("eval: write %s: %w", path, err)
	}
	return nil
}
