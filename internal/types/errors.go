package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a coordinator failure. The kind drives both the
// retry decision and the HTTP status the boundary surfaces.
type ErrorKind string

const (
	// KindAuth means the provider rejected the credential. Not a quota
	// signal; never retried.
	KindAuth ErrorKind = "auth_error"
	// KindRateLimit means quota is exhausted, locally or server-confirmed.
	KindRateLimit ErrorKind = "rate_limit_error"
	// KindProviderUnavailable covers transport failures, timeouts and 5xx.
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	// KindValidation means the endpoint or params were malformed. Rejected
	// before any quota is touched.
	KindValidation ErrorKind = "validation_error"
	// KindUnknown is anything not classifiable. Logged and surfaced.
	KindUnknown ErrorKind = "unknown_error"
)

// Error is the taxonomy error carried by coordinator results.
type Error struct {
	Kind       ErrorKind
	Provider   ProviderID
	RetryAfter time.Duration
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a taxonomy error.
func NewError(kind ErrorKind, provider ProviderID, msg string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: msg, Cause: cause}
}

// KindOf extracts the taxonomy kind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
