// Package chunking splits document text into numbered chunks.
// Three strategies are provided: markdown (header-based), paragraph and
// semantic (embedding-distance based). Selector picks one per file.
package chunking

import (
	"strings"
)

// lineBreaks normalises "\r\n" and "\r" to "\n".
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines splits text on any of "\r\n", "\n" or "\r", keeping empty lines.
func splitLines(text string) []string {
	return strings.Split(lineBreaks.Replace(text), "\n")
}

// splitAny splits text at every occurrence of any separator. At each
// position the separators are tried in order and the first match wins.
func splitAny(text string, seps ...string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); {
		matched := false
		for _, sep := range seps {
			if strings.HasPrefix(text[i:], sep) {
				parts = append(parts, text[start:i])
				i += len(sep)
				start = i
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return append(parts, text[start:])
}

// nonEmptyTrimmed trims every part and drops the blank ones.
func nonEmptyTrimmed(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
