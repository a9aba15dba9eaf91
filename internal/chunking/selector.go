package chunking

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// Strategy names accepted by ForStrategy.
const (
	StrategySemantic  = "semantic"
	StrategyMarkdown  = "markdown"
	StrategyParagraph = "paragraph"
)

// Selector chooses the chunker for a file, by extension or by explicit
// strategy name.
type Selector struct {
	markdown  rag.Chunker
	paragraph rag.Chunker
	semantic  rag.Chunker
}

// NewSelector builds a Selector. semantic may be nil when no embedder is
// configured; requesting the semantic strategy then fails.
func NewSelector(semantic rag.Chunker) *Selector {
	return &Selector{
		markdown:  NewMarkdown(),
		paragraph: NewParagraph(),
		semantic:  semantic,
	}
}

// Select returns the markdown chunker for .md and .markdown files and the
// paragraph chunker for everything else. It never fails.
func (s *Selector) Select(path string) rag.Chunker {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return s.markdown
	default:
		return s.paragraph
	}
}

// ForStrategy returns the chunker named by strategy (case-insensitive).
func (s *Selector) ForStrategy(strategy string) (rag.Chunker, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyMarkdown:
		return s.markdown, nil
	case StrategyParagraph:
		return s.paragraph, nil
	case StrategySemantic:
		if s.semantic == nil {
			return nil, rag.WrapError(rag.ErrInvalidOperation, "select chunker",
				fmt.Errorf("semantic chunking requires an embedding provider"))
		}
		return s.semantic, nil
	default:
		return nil, rag.WrapError(rag.ErrInvalidArgument, "select chunker",
			fmt.Errorf("unsupported chunking strategy %q (use semantic, markdown or paragraph)", strategy))
	}
}

// Resolve returns ForStrategy(strategy) when strategy is set and
// Select(path) otherwise.
func (s *Selector) Resolve(path, strategy string) (rag.Chunker, error) {
	if strategy == "" {
		return s.Select(path), nil
	}
	return s.ForStrategy(strategy)
}
