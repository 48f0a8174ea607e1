package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes registry errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates input rejected before any state change.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates the target record does not exist or is already deleted.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeStorage indicates a transaction, lock or I/O failure. The
	// operation had no partial effect and may be retried as a whole.
	ErrCodeStorage ErrorCode = "STORAGE"
)

// Error is the typed error surfaced by the registry service.
type Error struct {
	Code    ErrorCode
	Message string

	// Field names the offending input field (validation errors only).
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Field: field, Message: message}
}

// NewNotFoundError creates a not-found error for a registration id.
func NewNotFoundError(id int64) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("registration %d not found", id)}
}

// NewStorageError wraps a storage failure with the operation that hit it.
func NewStorageError(op string, err error) *Error {
	return &Error{Code: ErrCodeStorage, Message: op, Err: err}
}

// IsValidation returns true if err is (or wraps) a validation error.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsNotFound returns true if err is (or wraps) a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsStorage returns true if err is (or wraps) a storage error.
func IsStorage(err error) bool {
	return hasCode(err, ErrCodeStorage)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
