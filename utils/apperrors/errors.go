package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindGateway      Kind = "GATEWAY_ERROR"
	KindInternal     Kind = "INTERNAL_ERROR"
	KindForbidden    Kind = "FORBIDDEN"
	KindUnauthorized Kind = "UNAUTHORIZED"
)

// Error is the application error carried from services to handlers
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, nil, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, nil, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, nil, format, args...)
}

// Gateway wraps an upstream payment processor failure
func Gateway(err error, format string, args ...interface{}) *Error {
	return newError(KindGateway, err, format, args...)
}

// Internal wraps an unexpected failure
func Internal(err error, format string, args ...interface{}) *Error {
	return newError(KindInternal, err, format, args...)
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-safe message of err
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
