package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the callers of the domain packages.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// Error is the typed error returned by the store, graph, thread and service packages.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports that a referenced entity does not exist.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// BadRequest reports invalid operation arguments (missing ids, self edges, bad enums).
func BadRequest(format string, args ...any) *Error {
	return newError(KindBadRequest, format, args...)
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// Unauthorized reports bad credentials.
func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

// Forbidden reports an operation on an entity the caller does not own.
func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, format, args...)
}

// Internal wraps an infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool     { return err != nil && KindOf(err) == KindNotFound }
func IsBadRequest(err error) bool   { return err != nil && KindOf(err) == KindBadRequest }
func IsConflict(err error) bool     { return err != nil && KindOf(err) == KindConflict }
func IsUnauthorized(err error) bool { return err != nil && KindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return err != nil && KindOf(err) == KindForbidden }
