package identity

import "errors"

var (
	// ErrServiceUnavailable marks a transient transport failure: the identity
	// service could not be reached or answered with a server error. Callers
	// treat this as "unknown", not "invalid", and keep their last-known state.
	ErrServiceUnavailable = errors.New("identity service unavailable")

	// ErrInvalidGrant marks a definitive rejection of the presented
	// credentials, code, or refresh token.
	ErrInvalidGrant = errors.New("invalid grant")
)
