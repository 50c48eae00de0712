// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// IsCallerError reports whether err is a configuration or insufficient-data
// error, i.e. a mistake in the request rather than a failure of the system.
// Only the outermost *Error decides.
func IsCallerError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrConfigInvalid.Code, ErrConfigMissing.Code, ErrUnknownStrategy.Code,
		ErrInsufficientData.Code, ErrNoData.Code:
		return true
	}
	return false
}

// Predefined errors
var (
	// Configuration errors
	ErrConfigInvalid   = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing   = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
	ErrUnknownStrategy = &Error{Code: "UNKNOWN_STRATEGY", Message: "unknown strategy"}

	// Data errors
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}
	ErrNotFound         = &Error{Code: "NOT_FOUND", Message: "resource not found"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Storage errors
	ErrCacheFailed   = &Error{Code: "CACHE_FAILED", Message: "price cache failed"}
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive failed"}
)
