package chunking

import (
	"context"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// paragraphBreaks are the blank-line separators, in match priority order.
// A mixed pair such as "\n\r" is not a paragraph break.
var paragraphBreaks = []string{"\r\n\r\n", "\n\n", "\r\r"}

// Paragraph chunks text on blank lines. Text without any blank line is
// split on single line breaks instead.
type Paragraph struct{}

// NewParagraph returns the paragraph chunker.
func NewParagraph() *Paragraph { return &Paragraph{} }

// Name implements rag.Chunker.
func (*Paragraph) Name() string { return StrategyParagraph }

// Chunk implements rag.Chunker. It never fails.
func (*Paragraph) Chunk(_ context.Context, text string) ([]rag.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	paragraphs := nonEmptyTrimmed(splitAny(text, paragraphBreaks...))
	if len(paragraphs) == 1 {
		paragraphs = nonEmptyTrimmed(splitLines(text))
	}

	chunks := make([]rag.Chunk, len(paragraphs))
	for i, p := range paragraphs {
		chunks[i] = rag.Chunk{Content: p, Number: i + 1}
	}
	return chunks, nil
}
