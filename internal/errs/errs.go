// Package errs defines the error kinds shared across the engine.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a query has no data to answer with.
var ErrNotFound = errors.New("not found")

// ValidationError rejects caller input before any state changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError records a failed durable write. The in-memory change it
// accompanies stays applied.
type PersistenceError struct {
	Op     string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
