// Package apperr defines the error taxonomy shared by every marketplace
// component. The four categories map one-to-one onto the outcomes the HTTP
// layer exposes: validation (400), not found (404), conflict (409) and
// unavailable (500). Nothing outside these four is ever surfaced to a caller.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals that an optimistic transaction lost the race to a
	// concurrent writer, or that its outcome is ambiguous (e.g. the request
	// was cancelled mid-commit). Callers may retry after a fresh read; the
	// coordinator itself never retries.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable signals that the backing store is unreachable or
	// returned an unexpected fault.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError reports caller-supplied input that is structurally or
// semantically invalid. It is always surfaced, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
