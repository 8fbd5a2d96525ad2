package kverr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error category exposed to clients.
type Kind string

const (
	KindAuthMissing       Kind = "auth_missing"
	KindAuthMismatch      Kind = "auth_mismatch"
	KindNamespaceNotFound Kind = "namespace_not_found"
	KindKeyNotFound       Kind = "key_not_found"
	KindValidation        Kind = "validation"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// StatusKeyNotFound is the soft-absence status for a missing key inside an
// existing namespace. It is deliberately distinct from 404, which always
// means the namespace itself does not exist, so clients can tell "wrong
// handle" from "already deleted".
const StatusKeyNotFound = 244

// Error is a standardized application error. Code and Message are safe to
// serialize; Err carries internal detail for logging only.
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// AuthMissing creates a 401 error for requests without credentials.
func AuthMissing() *Error {
	return New(http.StatusUnauthorized, KindAuthMissing, "authorization required", nil)
}

// AuthMismatch creates a 403 error for requests with wrong credentials.
func AuthMismatch() *Error {
	return New(http.StatusForbidden, KindAuthMismatch, "invalid write token", nil)
}

// NamespaceNotFound creates a 404 error.
func NamespaceNotFound() *Error {
	return New(http.StatusNotFound, KindNamespaceNotFound, "namespace not found", nil)
}

// KeyNotFound creates a soft-absence error for a missing key in an existing
// namespace.
func KeyNotFound() *Error {
	return New(StatusKeyNotFound, KindKeyNotFound, "key not found", nil)
}

// Validation creates a 400 error with a caller-facing reason.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message, nil)
}

// QuotaExceeded creates a 413 error for writes that would exceed the
// namespace size quota.
func QuotaExceeded(message string) *Error {
	return New(http.StatusRequestEntityTooLarge, KindQuotaExceeded, message, nil)
}

// RateLimited creates a 429 error.
func RateLimited(message string) *Error {
	return New(http.StatusTooManyRequests, KindRateLimited, message, nil)
}

// Internal creates a 500 error. The wrapped error is logged, never sent to
// the client.
func Internal(err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, "internal server error", err)
}

// From converts any error to an *Error, wrapping unexpected failures as
// internal so no diagnostic detail leaks to the caller.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
