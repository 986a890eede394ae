package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Fields  []string  `json:"fields,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrCapacityExceeded, ErrPrecondition, ErrConflict:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrCapacityExceeded
	ErrPrecondition
	ErrConflict
)

var kinds = map[ErrorCode]string{
	ErrNotFound:         "not_found",
	ErrBadRequest:       "bad_request",
	ErrUnauthorized:     "unauthorized",
	ErrForbidden:        "forbidden",
	ErrInternal:         "internal",
	ErrValidation:       "validation",
	ErrCapacityExceeded: "capacity_exceeded",
	ErrPrecondition:     "precondition",
	ErrConflict:         "conflict",
}

func newError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kinds[code],
		Message: message,
		Err:     err,
	}
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource), err)
}

func NewBadRequest(message string, err error) *AppError {
	return newError(ErrBadRequest, message, err)
}

func NewInternal(err error) *AppError {
	return newError(ErrInternal, "internal server error", err)
}

// NewValidation reports missing or invalid input fields. The record the
// operation targeted is left untouched.
func NewValidation(message string, fields ...string) *AppError {
	e := newError(ErrValidation, message, nil)
	e.Fields = fields
	return e
}

// MissingFields is a ValidationError listing every absent required field.
func MissingFields(fields ...string) *AppError {
	return NewValidation("missing required fields: "+strings.Join(fields, ", "), fields...)
}

func NewCapacityExceeded(ceiling int) *AppError {
	return newError(ErrCapacityExceeded, fmt.Sprintf("no slots left in the current shift (limit %d)", ceiling), nil)
}

func NewPrecondition(message string) *AppError {
	return newError(ErrPrecondition, message, nil)
}

func NewConflict(resource string) *AppError {
	return newError(ErrConflict, fmt.Sprintf("%s was modified concurrently", resource), nil)
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return newError(ErrUnauthorized, "unauthorized", err)
}

func Forbidden(message string) *AppError {
	return newError(ErrForbidden, message, nil)
}

// As returns the AppError wrapped anywhere in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
