package output

import (
	"encoding/json"
	"errors"
	"fmt"
)

const loginHint = "Run: staybook auth login"

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error

	// Details carries the server's field-level errors, when it sent any.
	Details json.RawMessage

	// SessionEnded is set when a 401 could not be recovered by refreshing
	// and the stored session was cleared.
	SessionEnded bool
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, identifier),
		HTTPStatus: 404,
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:       CodeAuth,
		Message:    msg,
		Hint:       loginHint,
		HTTPStatus: 401,
	}
}

// ErrSessionEnded wraps the 401 that ended the session.
func ErrSessionEnded(original *Error) *Error {
	e := *original
	e.Code = CodeAuth
	e.Hint = "Session expired. " + loginHint
	e.SessionEnded = true
	return &e
}

func ErrForbidden(msg string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: 403,
	}
}

func ErrConflict(msg string) *Error {
	return &Error{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: 409,
	}
}

func ErrValidation(status int, msg string, details json.RawMessage) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: status,
		Details:    details,
	}
}

func ErrRateLimit(retryAfter int) *Error {
	hint := "Try again later"
	if retryAfter > 0 {
		hint = fmt.Sprintf("Try again in %d seconds", retryAfter)
	}
	return &Error{
		Code:       CodeRateLimit,
		Message:    "Rate limited",
		Hint:       hint,
		HTTPStatus: 429,
		Retryable:  true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrTimeout(cause error) *Error {
	return &Error{
		Code:      CodeTimeout,
		Message:   "Request timed out",
		Hint:      "Check the server is reachable or raise --timeout",
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  status >= 500,
	}
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsSessionEnded reports whether err ended the stored session.
func IsSessionEnded(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.SessionEnded
}
