package rag

import (
	"errors"
	"fmt"
)

// Error kinds shared by every component. Callers test them with errors.Is.
var (
	// ErrNotFound reports a missing index, file, folder or evals file.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument reports an unknown search mode, chunking strategy
	// or unsupported file extension.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation reports a request that cannot proceed in the
	// current state, such as an empty evals file or an unparseable
	// generation response.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDependencyFailure reports a failed embedding, chat or storage call.
	ErrDependencyFailure = errors.New("dependency failure")
)

// WrapError annotates err with an operation name and an error kind.
// Both kind and err remain reachable through errors.Is and errors.As.
func WrapError(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}

// NotFoundf builds an ErrNotFound error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
