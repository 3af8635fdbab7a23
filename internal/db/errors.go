package db

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable category of a store error.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInactive       Kind = "inactive"
	KindAlreadyStopped Kind = "already_stopped"
	KindPersistence    Kind = "persistence"
	KindValidation     Kind = "validation"
)

// Error is returned by every store operation that fails for a domain reason.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a KindValidation error. It is exported for request
// handlers that reject input before reaching a store.
func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

var (
	ErrNotFound       = newError(KindNotFound, "not found", nil)
	ErrInactive       = newError(KindInactive, "inactive", nil)
	ErrAlreadyStopped = newError(KindAlreadyStopped, "already stopped", nil)
	ErrPersistence    = newError(KindPersistence, "persistence failure", nil)
	ErrValidation     = newError(KindValidation, "invalid input", nil)
)

// KindOf returns the kind of err, or "" if err is not a store error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
