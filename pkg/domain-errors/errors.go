// Package domainerrors provides coded domain errors for the portal gateway.
//
// Services return these so transport layers can translate outcomes into HTTP
// statuses and user-facing messages without string matching. Infrastructure
// facts (not found, expired, unavailable) live in pkg/platform/sentinel;
// stores return those and services translate them into coded errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure in the authentication flow.
type Code string

const (
	// Directory client outcomes.
	CodeInvalidCredentials   Code = "invalid_credentials"
	CodePrincipalNotFound    Code = "principal_not_found"
	CodeInvalidDepartment    Code = "invalid_department"
	CodeUnauthorized         Code = "unauthorized"
	CodeDirectoryUnavailable Code = "directory_unavailable"

	// Second factor outcomes.
	CodeMalformedCode Code = "malformed_code"
	CodeNotEnrolled   Code = "not_enrolled"
	CodeInvalidCode   Code = "invalid_code"

	// Session outcomes.
	CodeSessionExpired  Code = "session_expired"
	CodeNoSession       Code = "no_session"
	CodeWrongDepartment Code = "wrong_department"

	// Everything else.
	CodeRateLimited  Code = "rate_limited"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal"
)

// Error carries a code plus a short user-safe message. Internal detail stays
// in the wrapped cause and is never rendered to the end user.
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

// New constructs a coded error with a user-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted user-safe message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the user-safe message from err. Uncoded errors map to a
// generic message so internal details never leak.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "unexpected error, please try again later"
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ToHTTPStatus maps a code onto the closest HTTP status for transport layers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidCredentials, CodePrincipalNotFound, CodeNotEnrolled,
		CodeInvalidCode, CodeSessionExpired, CodeNoSession:
		return http.StatusUnauthorized
	case CodeUnauthorized, CodeWrongDepartment:
		return http.StatusForbidden
	case CodeInvalidDepartment, CodeMalformedCode, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeDirectoryUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
