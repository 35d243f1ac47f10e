package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error classes. Every error returned by the service layer wraps exactly one of these.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
)

// ErrNoBillableEntries is returned when an invoice would have no entries
var ErrNoBillableEntries = fmt.Errorf("no billable entries: %w", ErrPrecondition)

// ValidationError collects field-level validation failures
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a failure for a field. The first message for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no fields failed
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a single-field validation error
func Invalid(field, msg string) error {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}

// NotFound returns an ErrNotFound for the given entity
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// Preconditionf returns an ErrPrecondition with a formatted message
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPrecondition)
}

// Forbiddenf returns an ErrForbidden with a formatted message
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrForbidden)
}
