package chunking

import (
	"errors"
	"testing"

	"github.com/54b3r/ragkit/internal/rag"
)

func Test_Selector_Select(t *testing.T) {
	t.Parallel()
	s := NewSelector(nil)

	tests := map[string]string{
		"notes.md":         StrategyMarkdown,
		"NOTES.MD":         StrategyMarkdown,
		"guide.markdown":   StrategyMarkdown,
		"plain.txt":        StrategyParagraph,
		"report.pdf":       StrategyParagraph,
		"Makefile":         StrategyParagraph,
		"archive.md.bak":   StrategyParagraph,
		"dir.md/file.text": StrategyParagraph,
	}
	for path, want := range tests {
		if got := s.Select(path).Name(); got != want {
			t.Errorf("Select(%q) = %s, want %s", path, got, want)
		}
	}
}

func Test_Selector_ForStrategy(t *testing.T) {
	t.Parallel()
	sem, err := NewSemantic(constEmbedder{}, SemanticConfig{})
	if err != nil {
		t.Fatal(err)
	}
	s := NewSelector(sem)

	for _, name := range []string{"semantic", "Markdown", "PARAGRAPH"} {
		if _, err := s.ForStrategy(name); err != nil {
			t.Errorf("ForStrategy(%q): %v", name, err)
		}
	}

	_, err = s.ForStrategy("sentences")
	if !errors.Is(err, rag.ErrInvalidArgument) {
		t.Errorf("ForStrategy(sentences) err = %v, want ErrInvalidArgument", err)
	}
}

func Test_Selector_SemanticWithoutEmbedder(t *testing.T) {
	t.Parallel()
	_, err := NewSelector(nil).ForStrategy(StrategySemantic)
	if !errors.Is(err, rag.ErrInvalidOperation) {
		t.Errorf("err = %v, want ErrInvalidOperation", err)
	}
}

func Test_Selector_Resolve(t *testing.T) {
	t.Parallel()
	s := NewSelector(nil)
	c, err := s.Resolve("a.md", "")
	if err != nil || c.Name() != StrategyMarkdown {
		t.Errorf("Resolve(a.md, \"\") = %v, %v", c, err)
	}
	c, err = s.Resolve("a.md", "paragraph")
	if err != nil || c.Name() != StrategyParagraph {
		t.Errorf("Resolve(a.md, paragraph) = %v, %v", c, err)
	}
}
