// Package apperr defines the error taxonomy shared by the store and the engine.
//
// Every error returned by an engine operation matches exactly one of the kind
// sentinels through errors.Is, so the calling layer can map it to its own
// response format without inspecting messages.
package apperr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type Kind int

const (
	KindStorage Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindConstraint
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConstraint:
		return "constraint"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "storage"
	}
}

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrConstraint   = errors.New("constraint violation")
	ErrInvalidState = errors.New("invalid state")
	ErrStorage      = errors.New("storage error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindConstraint:
		return ErrConstraint
	case KindInvalidState:
		return ErrInvalidState
	default:
		return ErrStorage
	}
}

// Error is the concrete error carried through the engine.
type Error struct {
	Kind    Kind
	Entity  string
	ID      string
	Message string

	// Retryable is only meaningful for storage errors.
	Retryable bool

	cause error
}

func (e *Error) Error() string {
	var target string
	switch {
	case e.Entity != "" && e.ID != "":
		target = fmt.Sprintf(" %s %q", e.Entity, e.ID)
	case e.Entity != "":
		target = " " + e.Entity
	}

	msg := e.Kind.String() + target
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// WithCause attaches the underlying driver error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func newError(kind Kind, entity, id, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Entity: entity, ID: id, Message: msg}
}

func Validation(entity, id, format string, args ...any) *Error {
	return newError(KindValidation, entity, id, format, args...)
}

func NotFound(entity, id, format string, args ...any) *Error {
	return newError(KindNotFound, entity, id, format, args...)
}

func Conflict(entity, id, format string, args ...any) *Error {
	return newError(KindConflict, entity, id, format, args...)
}

func Constraint(entity, id, format string, args ...any) *Error {
	return newError(KindConstraint, entity, id, format, args...)
}

func InvalidState(entity, id, format string, args ...any) *Error {
	return newError(KindInvalidState, entity, id, format, args...)
}

// Storage wraps a substrate failure. The cause keeps a stack trace.
func Storage(err error, op string, retryable bool) *Error {
	return &Error{
		Kind:      KindStorage,
		Message:   op,
		Retryable: retryable,
		cause:     pkgerrors.WithStack(err),
	}
}

// KindOf reports the kind of err. Errors that did not originate here are
// treated as storage errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsRetryable reports whether err is a storage failure the caller may retry
// (serialization failure, deadlock, lock timeout).
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindStorage && e.Retryable
	}
	return false
}

// Outcome labels err for logs and metrics.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
