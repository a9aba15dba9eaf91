package chunking

import (
	"context"
	"reflect"
	"testing"
)

func Test_Paragraph_Chunk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", " \n\n \t", nil},
		{"blank lines", "First para.\n\nSecond para.\r\n\r\nThird para.", []string{"First para.", "Second para.", "Third para."}},
		{"carriage returns", "one\r\rtwo", []string{"one", "two"}},
		{"single block falls back to lines", "line one\nline two\r\nline three", []string{"line one", "line two", "line three"}},
		{"single line", "  just one  ", []string{"just one"}},
		{"extra blank lines", "a\n\n\n\n  \n\nb", []string{"a", "b"}},
		{"mixed newline pair is not a break", "x\n\ny\n\rz", []string{"x", "y\n\rz"}},
		{"crlf pair wins over lf pair", "a\r\n\r\nb\n\nc", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks, err := NewParagraph().Chunk(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Chunk: %v", err)
			}
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			for i, c := range chunks {
				if c.Content != tt.want[i] {
					t.Errorf("chunk %d content = %q, want %q", i, c.Content, tt.want[i])
				}
				if c.Number != i+1 {
					t.Errorf("chunk %d number = %d, want %d", i, c.Number, i+1)
				}
			}
		})
	}
}

func Test_Paragraph_Chunk_Deterministic(t *testing.T) {
	t.Parallel()

	text := "The quick brown fox.\n\nJumps over\r\n\r\nthe lazy dog.\r\rEnd."
	first, err := NewParagraph().Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	second, err := NewParagraph().Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("got %d chunks, want 4", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("chunking the same text twice differs:\n first: %+v\nsecond: %+v", first, second)
	}
}

func Test_splitAny(t *testing.T) {
	t.Parallel()

	got := splitAny("a--b==c", "--", "==")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitAny = %q, want %q", got, want)
	}
	if got := splitAny("abc", "--"); !reflect.DeepEqual(got, []string{"abc"}) {
		t.Errorf("splitAny without separator = %q", got)
	}
}
