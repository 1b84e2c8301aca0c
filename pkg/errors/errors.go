// Package errors provides structured error types for depglobe.
//
// This package defines error codes and types that enable:
//   - Consistent handling of directory, geocoder and storage failures
//   - Machine-readable error codes for programmatic handling
//   - A rate-limit signal carrying the metadata needed to back off
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND: Resource not found
//   - NETWORK_ERROR, TIMEOUT, RATE_LIMITED: Network-related errors
//   - INTERNAL_ERROR: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid account name: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTimeout, origErr, "geocode %q", query)
//
// # Rate Limits
//
// Directory and geocoder clients report exhausted quotas as a
// [RateLimitedError]. The backoff controller unwraps it with errors.As and
// computes how long to sleep from RetryAfter or Reset.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidAccount  Code = "INVALID_ACCOUNT"
	ErrCodeInvalidRepo     Code = "INVALID_REPO"
	ErrCodeInvalidArtifact Code = "INVALID_ARTIFACT"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Authentication errors
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

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

// Is reports whether any *Error in err's chain has the given error code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
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

// RateLimitedError signals that a remote API refused a request because a
// quota window is exhausted. At most one of RetryAfter and Reset is usually
// set; RetryAfter wins when both are.
type RateLimitedError struct {
	RetryAfter time.Duration // Explicit wait requested by the server
	Reset      time.Time     // When the current quota window resets
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	msg := "rate limited"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("%s (retry after %s)", msg, e.RetryAfter)
	case !e.Reset.IsZero():
		return fmt.Sprintf("%s (resets at %s)", msg, e.Reset.UTC().Format(time.RFC3339))
	}
	return msg
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}

// AsRateLimited returns the first *RateLimitedError in err's chain.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
