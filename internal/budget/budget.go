// Package budget estimates token counts for chunk sizing and prompt limits.
// Embedding and chat backends use different tokenizers, so this package
// uses a conservative character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for document content
	// embedded in a single evaluation-generation prompt.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Truncate returns the longest prefix of s whose estimate fits within
// maxTokens, cut back to the last whitespace so words are not split.
// The second return value reports whether s was shortened.
func Truncate(s string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || Estimate(s) <= maxTokens {
		return s, false
	}
	limit := maxTokens * charsPerToken
	if limit > len(s) {
		limit = len(s)
	}
	cut := limit
	for i := limit - 1; i > limit/2; i-- {
		if s[i] == ' ' || s[i] == '\n' || s[i] == '\t' {
			cut = i
			break
		}
	}
	// Never split a multi-byte rune.
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut], true
}
