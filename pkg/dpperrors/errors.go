// Package dpperrors defines the typed error values shared across the record
// engine. Components return these instead of transport codes so the HTTP
// boundary owns the status mapping and callers can branch on Code rather than
// string-matching messages.
package dpperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an engine error.
type Code string

const (
	// CodeValidation marks caller input that is missing, empty, or malformed.
	CodeValidation Code = "validation_error"
	// CodeNotFound marks a reference to a record id that does not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidTransition marks a lifecycle move not permitted from the
	// record's current stage.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeStorage wraps backing-store failures. Never retried internally.
	CodeStorage Code = "storage_error"
	// CodeUnauthorized marks a rejected caller at the boundary.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal covers everything that should not happen.
	CodeInternal Code = "internal_error"
)

// Error is a code-carrying error value.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New returns an error carrying the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// produced outside this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps an error code to the response status used by the API
// boundary: validation 400, unauthorized 401, not found 404, invalid
// transition 409, everything else 500.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition:
		return http.StatusConflict
	case CodeStorage, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
