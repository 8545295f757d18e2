// Package identity is the HTTP boundary to the external identity service.
// The service is the sole source of truth for session validity; this package
// never verifies tokens itself.
package identity

import (
	"context"

	"github.com/evently/authsession/session"
)

// API is the subset of identity-service operations the session subsystem
// depends on. Consumers take this interface so tests can substitute fakes.
type API interface {
	// ExchangeCredentials performs a password credential exchange.
	ExchangeCredentials(ctx context.Context, email, password string) (*session.Session, error)
	// ExchangeCode trades a single-use exchange code for a session.
	ExchangeCode(ctx context.Context, code string) (*session.Session, error)
	// Refresh mints a new access token from a refresh token. The refresh
	// token may be rotated in the returned session.
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
	// FetchUser returns the user projection for an access token.
	FetchUser(ctx context.Context, accessToken string) (*session.User, error)
	// SignOut revokes the session server-side. Best effort.
	SignOut(ctx context.Context, accessToken string) error
}
