package fieldio

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
	ErrGridMismatch     = errors.New("tensor shape does not match grid")
	ErrWriterClosed     = errors.New("writer is closed")
)

// FieldError reports a problem with one stored field.
type FieldError struct {
	Path    string
	Field   string
	Details string
	Err     error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: field %q: %v: %s", e.Path, e.Field, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: field %q: %v", e.Path, e.Field, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *FieldError) Unwrap() error { return e.Err }
