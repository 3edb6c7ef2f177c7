// Package apierror defines the uniform error shape returned to clients.
// Every stage of the admission pipeline surfaces failures as an *Error;
// unknown errors are wrapped so no internal detail leaks to the client.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a client-facing error with an HTTP status and a stable code.
type Error struct {
	// Status is the HTTP status code for the response.
	Status int `json:"-"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Details carries structured context, e.g. per-field validation
	// messages or version requirements.
	Details any `json:"details,omitempty"`

	// cause is the wrapped internal error, never serialized.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped internal error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// WithDetails returns a copy of the error carrying the given details.
func (e *Error) WithDetails(details any) *Error {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// New creates an error with the given status, code and message.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Unauthorized creates a 401 error.
func Unauthorized(code, message string) *Error {
	return New(http.StatusUnauthorized, code, message)
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *Error {
	return New(http.StatusForbidden, code, message)
}

// BadRequest creates a 400 error.
func BadRequest(code, message string) *Error {
	return New(http.StatusBadRequest, code, message)
}

// NotFound creates a 404 error.
func NotFound(code, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(code, message string) *Error {
	return New(http.StatusTooManyRequests, code, message)
}

// Internal creates a 500 error.
func Internal(message string) *Error {
	return New(http.StatusInternalServerError, "INTERNAL", message)
}

// FromError normalizes any error to an *Error. Structured errors pass
// through unchanged; everything else becomes an opaque 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error").WithCause(err)
}

// Envelope is the JSON body written for every failed request.
type Envelope struct {
	Error *Error `json:"error"`
}

// NewEnvelope wraps an error in the response envelope.
func NewEnvelope(err *Error) *Envelope {
	return &Envelope{Error: err}
}
