package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/54b3r/ragkit/internal/rag"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func Test_Factory_For(t *testing.T) {
	t.Parallel()
	f := Default()

	for _, p := range []string{"a.txt", "B.TXT", "c.md", "d.Markdown", "e.pdf", "f.xlsx"} {
		if !f.CanRead(p) {
			t.Errorf("CanRead(%q) = false, want true", p)
		}
	}

	_, err := f.For("Makefile")
	if !errors.Is(err, ErrNoExtension) || !errors.Is(err, rag.ErrInvalidArgument) {
		t.Errorf("For(Makefile) err = %v, want ErrNoExtension", err)
	}
	if !strings.Contains(err.Error(), "Makefile") {
		t.Errorf("error %q should name the path", err)
	}

	_, err = f.For("data.json")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("For(data.json) err = %v, want ErrUnsupportedExtension", err)
	}
	if !strings.Contains(err.Error(), ".json") {
		t.Errorf("error %q should name the extension", err)
	}
	if f.CanRead("data.json") {
		t.Error("CanRead(data.json) = true")
	}
}

func Test_Factory_Extensions(t *testing.T) {
	t.Parallel()
	got := strings.Join(Default().Extensions(), ",")
	if got != ".markdown,.md,.pdf,.txt,.xlsx" {
		t.Errorf("Extensions = %s", got)
	}
}

func Test_PlainText_StripsBOM(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "bom.txt", "\xEF\xBB\xBFhello")
	got, err := Default().Read(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Read = %q, want hello", got)
	}
}

func Test_PlainText_Missing(t *testing.T) {
	t.Parallel()
	_, err := PlainText{}.Read(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	if !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func Test_Spreadsheet_Read(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	wb := excelize.NewFile()
	if err := wb.SetSheetRow("Sheet1", "A1", &[]any{"region", "revenue"}); err != nil {
		t.Fatal(err)
	}
	if err := wb.SetSheetRow("Sheet1", "A2", &[]any{"emea", 42}); err != nil {
		t.Fatal(err)
	}
	if err := wb.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = wb.Close()

	got, err := Spreadsheet{}.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := "# Sheet1\nregion\trevenue\nemea\t42"
	if got != want {
		t.Errorf("Read = %q, want %q", got, want)
	}
}

func Test_PDF_Missing(t *testing.T) {
	t.Parallel()
	_, err := PDF{}.Read(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, rag.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func Test_PDF_RejectsGarbage(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "bad.pdf", "not a pdf")
	if _, err := (PDF{}).Read(context.Background(), p); err == nil {
		t.Error("expected error for invalid pdf")
	}
}
