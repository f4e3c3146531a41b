package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

// Transport error kinds.
const (
	// NetworkUnreachable covers connection failures and timeouts.
	NetworkUnreachable Kind = iota

	// NonSuccessStatus is any non-2xx HTTP response.
	NonSuccessStatus

	// MalformedResponse is a response body that is not the JSON shape the
	// resource API promises.
	MalformedResponse
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NetworkUnreachable:
		return "network_unreachable"
	case NonSuccessStatus:
		return "non_success_status"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is a typed transport failure from one round trip.
type Error struct {
	Kind Kind

	// StatusCode is set for NonSuccessStatus.
	StatusCode int

	// Message is the server's error message when the body carried one,
	// otherwise a description of the failure. Surfaced to the user on
	// rollback, so it should be concrete rather than generic.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a transport error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// unreachable builds a NetworkUnreachable error.
func unreachable(cause error) *Error {
	return &Error{Kind: NetworkUnreachable, Message: cause.Error(), Cause: cause}
}

// malformed builds a MalformedResponse error.
func malformed(msg string, cause error) *Error {
	return &Error{Kind: MalformedResponse, Message: msg, Cause: cause}
}
