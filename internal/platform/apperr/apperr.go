// Package apperr defines the error taxonomy shared by the identity core.
// Callers branch on Kind (via errors.Is against the sentinels or KindOf)
// rather than on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a response code.
type Kind string

const (
	KindInvalidFormat       Kind = "invalid_format"
	KindExpired             Kind = "expired"
	KindMalformed           Kind = "malformed"
	KindNotFound            Kind = "not_found"
	KindTimeout             Kind = "timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is a classified error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details string) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: e.Details, Cause: cause}
}

// Sentinels, one per kind. Compare with errors.Is.
var (
	ErrInvalidFormat       = New(KindInvalidFormat, "invalid email format")
	ErrExpired             = New(KindExpired, "token expired")
	ErrMalformed           = New(KindMalformed, "token malformed")
	ErrNotFound            = New(KindNotFound, "not found")
	ErrTimeout             = New(KindTimeout, "lookup timed out")
	ErrUpstreamUnavailable = New(KindUpstreamUnavailable, "upstream unavailable")
)

// KindOf returns the Kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
