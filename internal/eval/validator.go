package eval

import (
	"context"
	"strings"

	"github.com/54b3r/ragkit/internal/rag"
)

// Validator asks a chat model whether retrieved content answers a question.
type Validator struct {
	completer rag.Completer
}

// NewValidator returns a Validator that talks to completer.
func NewValidator(completer rag.Completer) *Validator {
	return &Validator{completer: completer}
}

// Validate judges retrieved against the expected answer. The verdict is
// correct when the reply contains "yes" anywhere, case-insensitively; the
// full reply is the explanation. Only a failed chat call is an error.
func (v *Validator) Validate(ctx context.Context, question, expected, retrieved string) (Judgment, error) {
	reply, err := v.completer.Complete(ctx, ValidatePrompt(question, expected, retrieved))
	if err != nil {
		return Judgment{}, rag.WrapError(rag.ErrDependencyFailure, "validate answer", err)
	}
	return Judgment{
		IsCorrect:   strings.Contains(strings.ToLower(reply), "yes"),
		Explanation: reply,
	}, nil
}
