// Package errors provides structured error types for pydeb.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the conversion pipeline
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes map onto the conversion pipeline's failure taxonomy:
//   - CONFIG_INVALID: a conversion rule was rejected at configuration time
//   - RESOLUTION_FAILED: the dependency closure cannot be satisfied
//   - BUILD_FAILED / CONVERSION_FAILED: a single package's build or custom
//     conversion command failed
//   - ARCHIVE_FAILED: writing or inspecting a package archive failed
//   - NOT_FOUND / NETWORK_ERROR: registry lookup failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "name prefix cannot be empty")
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeBuild, origErr, "build of %s failed", pkg)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the conversion pipeline's failure taxonomy.
const (
	// Configuration errors (detected eagerly, before any conversion work)
	ErrCodeConfig Code = "CONFIG_INVALID"

	// Dependency resolution errors (fatal, no package is converted)
	ErrCodeResolution Code = "RESOLUTION_FAILED"

	// Per-package conversion errors
	ErrCodeBuild      Code = "BUILD_FAILED"
	ErrCodeConversion Code = "CONVERSION_FAILED"
	ErrCodeArchive    Code = "ARCHIVE_FAILED"

	// Registry / transport errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"

	// Unexpected internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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
// If cause is already an *Error with the same code, it is returned unchanged
// so the original package/step context is not buried under a generic message.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	var e *Error
	if errors.As(cause, &e) && e.Code == code {
		return e
	}
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
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
