// Package apperr defines the error kinds returned across the service boundary.
//
// Callers match kinds with errors.Is. Store failures are translated with
// FromStore so that driver detail never reaches a client, while the original
// cause stays reachable through the unwrap chain for logging.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidItem       = errors.New("invalid item")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrUnavailable       = errors.New("unavailable")
)

var kinds = []error{
	ErrNotFound, ErrForbidden, ErrUnauthenticated, ErrInvalidInput,
	ErrInvalidItem, ErrInvalidTransition, ErrConflict, ErrUnavailable,
}

// New wraps kind with a formatted message: "<kind>: <message>".
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Is reports whether err already carries one of the taxonomy kinds.
func Is(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

type storeError struct {
	kind  error
	msg   string
	cause error
}

func (e *storeError) Error() string   { return e.kind.Error() + ": " + e.msg }
func (e *storeError) Unwrap() []error { return []error{e.kind, e.cause} }

// FromStore maps a raw storage error onto the taxonomy. Errors that already
// carry a kind pass through unchanged.
func FromStore(err error) error {
	if err == nil || Is(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &storeError{kind: ErrUnavailable, msg: "store timeout", cause: err}
	}
	return &storeError{kind: ErrUnavailable, msg: "store failure", cause: err}
}

// Cause returns the underlying storage error hidden by FromStore, or err itself.
func Cause(err error) error {
	var se *storeError
	if errors.As(err, &se) {
		return se.cause
	}
	return err
}
