// Package errors provides structured error types for the classpath resolver.
//
// Every failure the resolver surfaces carries a machine-readable [Code] so that
// callers can tell a malformed coordinate from an unreachable repository without
// string matching:
//
//   - PARSE_ERROR: malformed coordinate, exclusion or repository token
//   - VERSION_RESOLUTION: no repository offers a version satisfying a range
//   - REPOSITORY_UNAVAILABLE: transient network or timeout failure
//   - DOWNLOAD_ERROR: an artifact was located but could not be fetched
//   - CACHE_DIRECTORY: the local repository directory could not be created
//   - POM_PARSE: malformed project descriptor
//   - CYCLE: a parent chain revisits one of its ancestors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeParse, "illegal coordinate %q", s)
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // Handle malformed input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDownload, origErr, "fetch %s", coords)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeParse        Code = "PARSE_ERROR"
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resolution errors
	ErrCodeVersionResolution Code = "VERSION_RESOLUTION"
	ErrCodeNotFound          Code = "NOT_FOUND"
	ErrCodePOMParse          Code = "POM_PARSE"
	ErrCodeCycle             Code = "CYCLE"

	// Repository and network errors
	ErrCodeRepositoryUnavailable Code = "REPOSITORY_UNAVAILABLE"
	ErrCodeDownload              Code = "DOWNLOAD_ERROR"
	ErrCodeChecksum              Code = "CHECKSUM_MISMATCH"
	ErrCodeOffline               Code = "OFFLINE"

	// Local storage errors
	ErrCodeCacheDirectory Code = "CACHE_DIRECTORY"

	// Internal errors
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
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code,
// including errors aggregated with errors.Join.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Code == code {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if Is(inner, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return Is(x.Unwrap(), code)
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
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
