// Package apierr defines the transport-agnostic error kinds used across the
// store, conflict detector, resolver, and command lifecycle, generalized
// from the teacher's use of gRPC status codes to a plain Go error type that
// any transport (HTTP today) can map to its own status vocabulary.
package apierr

import "fmt"

// Kind classifies an error for callers that need to react differently
// (map to an HTTP status, decide whether to retry, etc.) without parsing
// message strings.
type Kind string

const (
	InvalidInput         Kind = "invalid_input"
	NotFound             Kind = "not_found"
	Unauthorized         Kind = "unauthorized"
	RateLimited          Kind = "rate_limited"
	Conflict             Kind = "conflict"
	PersistenceFailure   Kind = "persistence_failure"
	ExternalUnavailable  Kind = "external_unavailable"
	Internal             Kind = "internal"
)

// Error is the error type returned by every exported operation in this
// module that can fail in a caller-distinguishable way.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error carrying cause as the unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Internal, the safe default for an
// unclassified failure.
func KindOf(err error) Kind {
	var ae *Error
	if asError(err, &ae) {
		return ae.Kind
	}
	return Internal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
