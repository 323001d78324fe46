package domain

import (
	"errors"
	"net/http"
	"strings"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ConflictError is returned when a submitted version does not match the
// persisted one, or when a concurrent transaction won the race at commit.
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // document, locale or geometry
	ResourceID   string // id of the conflicting row (locales use "<doc>/<lang>")
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FieldError is one problem found in a request body.
type FieldError struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ValidationError collects every problem found in a submission so callers
// can fix them in one round trip.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError builds a validation error for a single field.
func NewValidationError(name, description string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Name: name, Description: description}}}
}

// Add appends a field error.
func (e *ValidationError) Add(name, description string) {
	e.Fields = append(e.Fields, FieldError{Name: name, Description: description})
}

// Merge appends the fields of another validation error. Nil is ignored.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

// HasErrors reports whether at least one field error was collected.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when nothing was collected, so callers can write
// `return verr.OrNil()` without returning a typed nil.
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Name+": "+f.Description)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StatusCode implements the HTTPError interface
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// Is allows errors.Is() to match against ErrValidation
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
