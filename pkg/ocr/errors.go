package ocr

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so callers can decide how to surface them.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindConcurrency Kind = "concurrency"
	KindRecognition Kind = "recognition"
	KindPreprocess  Kind = "preprocess"
)

// Error is a classified pipeline error. Reason is a short stable code
// ("too-large", "busy", "empty-result") that ends up in user-facing messages.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and reason so wrapped instances compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Reason == "" || e.Reason == t.Reason)
}

var (
	ErrNotAnImage  = &Error{Kind: KindValidation, Reason: "not-an-image"}
	ErrTooLarge    = &Error{Kind: KindValidation, Reason: "too-large"}
	ErrNoImage     = &Error{Kind: KindValidation, Reason: "no-image"}
	ErrBusy        = &Error{Kind: KindConcurrency, Reason: "busy"}
	ErrEmptyResult = &Error{Kind: KindRecognition, Reason: "empty-result"}
	ErrTerminated  = &Error{Kind: KindRecognition, Reason: "terminated"}
)

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// IsKind reports whether err carries a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Reason returns the short reason code of a pipeline error, or the plain
// error text for anything else.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}
