package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Parse and validation error codes
const (
	ErrNoJSONFound     ErrorCode = "NO_JSON_FOUND"
	ErrJSONSyntax      ErrorCode = "JSON_SYNTAX"
	ErrFieldValidation ErrorCode = "FIELD_VALIDATION"
	ErrSchemaExhausted ErrorCode = "SCHEMA_CORRECTION_EXHAUSTED"
	ErrUnsafePatch     ErrorCode = "UNSAFE_PATCH"
)

// Backend error codes
const (
	ErrBackend        ErrorCode = "BACKEND"
	ErrBackendTimeout ErrorCode = "BACKEND_TIMEOUT"
	ErrCanceled       ErrorCode = "CANCELED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
)

// Infrastructure error codes
const (
	ErrCheckpoint    ErrorCode = "CHECKPOINT"
	ErrConfig        ErrorCode = "CONFIG"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode    `json:"code"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
	Fields    []FieldError `json:"fields,omitempty"`
	Rounds    int          `json:"rounds,omitempty"`
	Cause     error        `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithFields attaches the field errors that produced this error.
func (e *Error) WithFields(fields []FieldError) *Error {
	e.Fields = fields
	return e
}

// WithRounds records how many correction rounds were attempted.
func (e *Error) WithRounds(rounds int) *Error {
	e.Rounds = rounds
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsParseClass reports whether err is an extraction or JSON syntax failure.
// The step executor retries these only when the step opts in.
func IsParseClass(err error) bool {
	switch GetErrorCode(err) {
	case ErrNoJSONFound, ErrJSONSyntax:
		return true
	}
	return false
}

// IsTerminal reports whether err must never be retried by the step executor.
func IsTerminal(err error) bool {
	switch GetErrorCode(err) {
	case ErrSchemaExhausted, ErrCanceled:
		return true
	}
	return false
}
