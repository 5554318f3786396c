// Package apperror defines the operational error type returned by handlers
// and services, and the normalisation of lower level failures into it.
package apperror

import (
	"errors"
	"net/http"
	"runtime/debug"
)

const (
	StatusFail  = "fail"
	StatusError = "error"
)

// AppError is an error with an HTTP status. Operational errors carry a
// message that is safe to show to clients.
type AppError struct {
	StatusCode  int
	Status      string
	Message     string
	Operational bool
	Err         error
	Stack       string
}

func (e *AppError) Error() string {
	if e.Err != nil && !e.Operational {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func statusFor(code int) string {
	if code >= 400 && code < 500 {
		return StatusFail
	}
	return StatusError
}

func New(code int, message string) *AppError {
	return &AppError{
		StatusCode:  code,
		Status:      statusFor(code),
		Message:     message,
		Operational: true,
		Stack:       string(debug.Stack()),
	}
}

// Wrap keeps err as the cause of an operational error.
func Wrap(err error, code int, message string) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

func BadRequest(message string) *AppError   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *AppError { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *AppError    { return New(http.StatusForbidden, message) }
func NotFound(message string) *AppError     { return New(http.StatusNotFound, message) }

func TooManyRequests(message string) *AppError {
	return New(http.StatusTooManyRequests, message)
}

// Internal is an operational 500: the failure is known and its message may
// be shown, the cause is kept for logs.
func Internal(message string, cause error) *AppError {
	return Wrap(cause, http.StatusInternalServerError, message)
}

func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
