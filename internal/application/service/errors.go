package service

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide how to react.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindGate       Kind = "gate"
	KindTransport  Kind = "transport"
	KindInternal   Kind = "internal"
)

// Error is a classified failure with a message safe to show to users.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel Errors by kind and reason, so wrapped sentinels
// compare equal through errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason && t.Op == "" && t.Err == nil
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// wrap attaches an operation and cause to a sentinel.
func wrap(sentinel *Error, op string, cause error) error {
	return &Error{Kind: sentinel.Kind, Op: op, Reason: sentinel.Reason, Err: cause}
}

// transportErr marks an I/O failure as retryable.
func transportErr(op string, cause error) error {
	return &Error{Kind: KindTransport, Op: op, Reason: "temporarily unavailable, please retry", Err: cause}
}

func validationErr(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrTaskNotFound      = newError(KindNotFound, "task not found")
	ErrDocumentNotFound  = newError(KindNotFound, "document not found")
	ErrProjectNotFound   = newError(KindNotFound, "project not found")
	ErrTaskNotPersisted  = newError(KindValidation, "task has not been saved yet")
	ErrUnknownSlot       = newError(KindValidation, "document type is not required by this tag")
	ErrEmptyFile         = newError(KindValidation, "file is empty")
	ErrNoClientContact   = newError(KindConflict, "no client contact on file")
	ErrReminderInFlight  = newError(KindConflict, "a reminder for this document is already being sent")
	ErrSlotSatisfied     = newError(KindConflict, "document has already been uploaded")
	ErrNoDocument        = newError(KindConflict, "upload the document before verifying it")
	ErrRatingRequired    = newError(KindGate, "a rating is required to complete a verification task")
	ErrRatingOutOfRange  = newError(KindValidation, "rating must be between 0 and 10")
	ErrRatingAlreadySet  = newError(KindConflict, "rating has already been recorded")
	ErrInvalidTransition = newError(KindConflict, "status change is not allowed")
)

// KindOf returns the classification of err, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Reason returns a human-readable message for err, falling back to a
// generic one for unclassified errors.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "something went wrong, please try again"
}

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}
