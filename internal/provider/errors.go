package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies adapter failures. Only these four kinds ever escape
// the adapter layer; provider wire errors are wrapped, never leaked raw.
type ErrorKind int

const (
	// KindUnavailable means the provider is missing credentials or does not
	// support the requested input method. Never retried; routing moves to the
	// next fallback immediately.
	KindUnavailable ErrorKind = iota
	// KindTimeout means the call lost the timeout race. Retried up to the
	// configured maximum.
	KindTimeout
	// KindMalformedResponse means the reply could not be parsed. Adapters
	// normally substitute a low-confidence default instead of surfacing this;
	// when it does surface it is never retried.
	KindMalformedResponse
	// KindRejected means the provider actively refused the call (API error,
	// transport failure). Retried.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindMalformedResponse:
		return "malformed_response"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by any provider adapter.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a typed provider failure.
func NewError(kind ErrorKind, providerName string, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Err: err}
}

// KindOf returns the error kind, or KindRejected for untyped errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindRejected
}

// IsUnavailable reports whether err is a capability or credential mismatch.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// Retryable reports whether a failed call is worth repeating against the
// same provider. Unavailable and malformed-response failures are not:
// neither a missing credential nor a structurally different reply shape is
// fixed by calling again.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindMalformedResponse:
		return false
	}
	return true
}
