package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/54b3r/ragkit/internal/rag"
)

// Spreadsheet renders .xlsx workbooks as text: one paragraph per sheet,
// a "# {sheet}" heading line followed by tab-separated rows.
type Spreadsheet struct{}

// Extensions implements Reader.
func (Spreadsheet) Extensions() []string { return []string{".xlsx"} }

// Read implements Reader.
func (Spreadsheet) Read(_ context.Context, path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", rag.NotFoundf("file not found: %s", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("reader: open workbook %s: %w", path, err)
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reader: read sheet %q of %s: %w", sheet, path, err)
		}
		var b strings.Builder
		b.WriteString("# " + sheet)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			b.WriteByte('\n')
			b.WriteString(line)
		}
		sheets = append(sheets, b.String())
	}
	return strings.Join(sheets, "\n\n"), nil
}
