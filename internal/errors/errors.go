package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrReadOnly        = errors.New("read-only access")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUsageLimit      = errors.New("usage limit reached")
	ErrUnavailable     = errors.New("source unavailable")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeInternal    ErrorType = "internal"
)

// SourceError is a structured error for a failed access-source lookup.
type SourceError struct {
	Type      ErrorType
	Source    string // Access source that failed (e.g., "subscription")
	Op        string // Operation that failed (e.g., "list_add_ons")
	UserID    string
	Err       error
	Timestamp time.Time
}

func (e *SourceError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("%s %s failed for user %s: %v", e.Source, e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *SourceError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrUnavailable:
		return e.Type == ErrorTypeUnavailable
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	}

	return errors.Is(e.Err, target)
}

// NewSourceError creates a new SourceError
func NewSourceError(errorType ErrorType, source, op, userID string, err error) *SourceError {
	return &SourceError{
		Type:      errorType,
		Source:    source,
		Op:        op,
		UserID:    userID,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WrapUnavailable wraps a backend read failure for an access source.
func WrapUnavailable(source, op, userID string, err error) error {
	if err == nil {
		return nil
	}
	return NewSourceError(ErrorTypeUnavailable, source, op, userID, err)
}

// IsCallerError reports whether err was caused by the caller rather than the
// backend, so it can be surfaced verbatim.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrReadOnly) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUsageLimit) ||
		errors.Is(err, ErrNotFound)
}
