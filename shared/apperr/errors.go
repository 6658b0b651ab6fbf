package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. Every kind except Internal is safe to
// show to the client.
type Kind string

const (
	KindValidation         Kind = "Validation"
	KindNotFound           Kind = "NotFound"
	KindInvalidSchedule    Kind = "InvalidSchedule"
	KindScheduleConflict   Kind = "ScheduleConflict"
	KindDuplicateName      Kind = "DuplicateName"
	KindSessionInPast      Kind = "SessionInPast"
	KindSessionNotOpen     Kind = "SessionNotOpen"
	KindAlreadyBooked      Kind = "AlreadyBooked"
	KindSessionFull        Kind = "SessionFull"
	KindUnauthorized       Kind = "Unauthorized"
	KindForbidden          Kind = "Forbidden"
	KindAlreadyCancelled   Kind = "AlreadyCancelled"
	KindCancellationClosed Kind = "CancellationClosed"
	KindBusy               Kind = "Busy"
	KindInternal           Kind = "Internal"
)

// Error is the error type returned by the store and booking packages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Internal wraps a persistence or I/O fault.
func Internal(err error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, err, format, args...)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a client should retry the request unchanged.
func Retryable(err error) bool {
	return Is(err, KindBusy)
}

// PublicMessage returns the message that may be sent to the client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}
