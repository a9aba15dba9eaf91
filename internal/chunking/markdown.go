package chunking

import (
	"context"
	"regexp"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// headerPattern matches an ATX heading with one to six markers.
var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Markdown chunks text by headings. Each heading starts a new chunk that
// runs until the next heading; text before the first heading becomes a
// chunk with no header.
type Markdown struct{}

// NewMarkdown returns the header-based chunker.
func NewMarkdown() *Markdown { return &Markdown{} }

// Name implements rag.Chunker.
func (*Markdown) Name() string { return StrategyMarkdown }

// Chunk implements rag.Chunker. It never fails.
func (m *Markdown) Chunk(_ context.Context, text string) ([]rag.Chunk, error) {
	return m.split(text), nil
}

func (*Markdown) split(text string) []rag.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks []rag.Chunk
		buf    strings.Builder
		header string
		level  int
		start  = 1
	)

	flush := func(end int) {
		content := strings.TrimSpace(buf.String())
		if content == "" {
			return
		}
		chunks = append(chunks, rag.Chunk{
			Content:     content,
			Number:      len(chunks) + 1,
			HeaderText:  header,
			HeaderLevel: level,
			StartLine:   start,
			EndLine:     end,
		})
	}

	lines := splitLines(text)
	for i, line := range lines {
		lineNo := i + 1
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush(lineNo - 1)
			buf.Reset()
			header = strings.TrimSpace(m[2])
			level = len(m[1])
			start = lineNo
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush(len(lines))

	return chunks
}
