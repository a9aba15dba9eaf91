package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/ragkit/internal/rag"
)

// PDF extracts the plain text layer of .pdf files.
type PDF struct{}

// Extensions implements Reader.
func (PDF) Extensions() []string { return []string{".pdf"} }

// Read implements Reader. Scanned PDFs without a text layer yield "".
func (PDF) Read(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", rag.NotFoundf("file not found: %s", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("reader: open pdf %s: %w", path, err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reader: extract pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("reader: read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}
