// Package reader extracts plain text from supported document formats and
// maps file extensions onto the reader that handles them.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// Reader extracts text from one family of file formats.
type Reader interface {
	// Extensions lists the lower-case extensions handled, including the dot.
	Extensions() []string

	// Read returns the text content of the file at path.
	Read(ctx context.Context, path string) (string, error)
}

var (
	// ErrNoExtension is returned for paths without a file extension.
	ErrNoExtension = errors.New("file has no extension")

	// ErrUnsupportedExtension is returned when no reader handles an extension.
	ErrUnsupportedExtension = errors.New("no file reader available for extension")
)

// Factory maps extensions (case-insensitively) onto readers.
type Factory struct {
	byExt map[string]Reader
}

// NewFactory registers readers; a later reader wins for a repeated extension.
func NewFactory(readers ...Reader) *Factory {
	f := &Factory{byExt: make(map[string]Reader)}
	for _, r := range readers {
		for _, ext := range r.Extensions() {
			f.byExt[strings.ToLower(ext)] = r
		}
	}
	return f
}

// Default returns a factory with every built-in reader.
func Default() *Factory {
	return NewFactory(PlainText{}, Markdown{}, PDF{}, Spreadsheet{})
}

// For returns the reader for path.
func (f *Factory) For(path string) (Reader, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, rag.WrapError(rag.ErrInvalidArgument, "select reader",
			fmt.Errorf("%w: %s", ErrNoExtension, path))
	}
	r, ok := f.byExt[strings.ToLower(ext)]
	if !ok {
		return nil, rag.WrapError(rag.ErrInvalidArgument, "select reader",
			fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext))
	}
	return r, nil
}

// CanRead reports whether a reader is registered for path's extension.
func (f *Factory) CanRead(path string) bool {
	_, err := f.For(path)
	return err == nil
}

// Extensions returns the registered extensions in sorted order.
func (f *Factory) Extensions() []string {
	out := make([]string, 0, len(f.byExt))
	for ext := range f.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Read reads path with its registered reader.
func (f *Factory) Read(ctx context.Context, path string) (string, error) {
	r, err := f.For(path)
	if err != nil {
		return "", err
	}
	return r.Read(ctx, path)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readText loads a text file, dropping a leading UTF-8 byte order mark.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", rag.NotFoundf("file not found: %s", path)
		}
		return "", fmt.Errorf("reader: read %s: %w", path, err)
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// ReadRaw reads any file as text. It serves single-file ingestion of
// extensions without a registered reader.
func ReadRaw(path string) (string, error) {
	return readText(path)
}

// PlainText reads .txt files.
type PlainText struct{}

// Extensions implements Reader.
func (PlainText) Extensions() []string { return []string{".txt"} }

// Read implements Reader.
func (PlainText) Read(_ context.Context, path string) (string, error) { return readText(path) }

// Markdown reads .md and .markdown files verbatim; structure is left to
// the markdown chunker.
type Markdown struct{}

// Extensions implements Reader.
func (Markdown) Extensions() []string { return []string{".md", ".markdown"} }

// Read implements Reader.
func (Markdown) Read(_ context.Context, path string) (string, error) { return readText(path) }
