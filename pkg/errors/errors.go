// Package errors provides structured error types for stackseed.
//
// Every failure the bootstrap pipeline can surface carries a machine-readable
// code so the CLI can report it and tests can assert on it:
//   - INVALID_*: command-line or feed input that failed validation
//   - *_NOT_FOUND / FEED_NOT_CACHED: a feed could not be loaded
//   - RESOLUTION_FAILED, VERSION_CONFLICT: the solve or merge step failed
//   - MATERIALIZATION_FAILED: a version-control subprocess failed
//   - WORKSPACE_EXISTS, INTERNAL_ERROR: preconditions violated before any
//     destructive action
//
// # Usage
//
//	err := errors.New(errors.ErrCodeVersionConflict, "%s: %s != %s", uri, a, b)
//	if errors.Is(err, errors.ErrCodeVersionConflict) {
//	    // ...
//	}
//
//	err := errors.Wrap(errors.ErrCodeMaterialization, cause, "checkout %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidFeed  Code = "INVALID_FEED"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Feed loading errors
	ErrCodeFeedNotFound  Code = "FEED_NOT_FOUND"
	ErrCodeFeedNotCached Code = "FEED_NOT_CACHED"
	ErrCodeNetwork       Code = "NETWORK_ERROR"

	// Pipeline errors
	ErrCodeResolution      Code = "RESOLUTION_FAILED"
	ErrCodeVersionConflict Code = "VERSION_CONFLICT"
	ErrCodeMaterialization Code = "MATERIALIZATION_FAILED"

	// Precondition errors
	ErrCodeWorkspaceExists Code = "WORKSPACE_EXISTS"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the chain holds no *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message (and cause) without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
