package common

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by services, storage backends and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrDanglingReference = errors.New("dangling reference")
	ErrNegativeBalance   = errors.New("negative balance")
	ErrPartialFailure    = errors.New("partial failure")
	ErrConflict          = errors.New("version conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrLoanClosed        = errors.New("loan is closed")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// AlreadyExists wraps ErrAlreadyExists for a duplicate insert.
func AlreadyExists(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrAlreadyExists)
}

// Conflict wraps ErrConflict for a failed compare-and-swap.
func Conflict(kind, id string, expected, actual int) error {
	return fmt.Errorf("%s %q: expected version %d, found %d: %w", kind, id, expected, actual, ErrConflict)
}

// IsPermanent reports whether err will fail identically on retry.
// Storage writes are only retried for errors outside this set.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrNegativeBalance),
		errors.Is(err, ErrLoanClosed):
		return true
	}
	return false
}
