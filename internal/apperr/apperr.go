package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound         Kind = "not_found"
	InvalidState     Kind = "invalid_state"
	InvalidOperation Kind = "invalid_operation"
	Conflict         Kind = "conflict"
	Dependency       Kind = "dependency"
	Validation       Kind = "validation"
	Unauthorized     Kind = "unauthorized"
)

// Error is the caller-facing failure returned by every service.
// Code distinguishes errors that share a kind, e.g. the two conflicts of a
// connection request.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
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

// Is matches on kind and, when the target sets one, on code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap classifies err as a dependency failure unless it already is an *Error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: Dependency, Code: "dependency", Message: message, Err: err}
}

// KindOf returns the kind of err, or Dependency for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Dependency
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Code: "not_found", Message: fmt.Sprintf(format, args...)}
}

func Invalid(message string) *Error {
	return &Error{Kind: Validation, Code: "validation", Message: message}
}

func Unauthorizedf(format string, args ...any) *Error {
	return &Error{Kind: Unauthorized, Code: "unauthorized", Message: fmt.Sprintf(format, args...)}
}

// Kind sentinels for errors.Is checks that do not care about the code.
var (
	ErrNotFound         = &Error{Kind: NotFound}
	ErrInvalidState     = &Error{Kind: InvalidState}
	ErrInvalidOperation = &Error{Kind: InvalidOperation}
	ErrConflict         = &Error{Kind: Conflict}
	ErrDependency       = &Error{Kind: Dependency}
	ErrValidation       = &Error{Kind: Validation}
	ErrUnauthorized     = &Error{Kind: Unauthorized}
)
