// Package errors provides coded domain errors shared by the watcher, the browser and the API.
//
// Usage:
//
//	// In components - return typed errors
//	if c.state.Active() {
//	    return errors.AlreadyRunningf("already watching %s", c.target)
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotRunning) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotADirectory    Code = "NOT_A_DIRECTORY"
	CodeValidation       Code = "VALIDATION"
	CodeAlreadyRunning   Code = "ALREADY_RUNNING"
	CodeNotRunning       Code = "NOT_RUNNING"
	CodeSetupFailed      Code = "SETUP_FAILED"
	CodeInternal         Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotADirectory, CodeValidation:
		return http.StatusBadRequest
	case CodeAlreadyRunning, CodeNotRunning:
		return http.StatusConflict
	case CodeSetupFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrNotADirectory    = &Error{Code: CodeNotADirectory, Message: "not a directory"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation error"}
	ErrAlreadyRunning   = &Error{Code: CodeAlreadyRunning, Message: "a watch is already running"}
	ErrNotRunning       = &Error{Code: CodeNotRunning, Message: "no watch is running"}
	ErrSetupFailed      = &Error{Code: CodeSetupFailed, Message: "watch setup failed"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// PermissionDeniedf creates a permission denied error with formatted message.
func PermissionDeniedf(format string, args ...any) *Error {
	return &Error{Code: CodePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// NotADirectoryf creates a not a directory error with formatted message.
func NotADirectoryf(format string, args ...any) *Error {
	return &Error{Code: CodeNotADirectory, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// AlreadyRunningf creates an already running error with formatted message.
func AlreadyRunningf(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyRunning, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
