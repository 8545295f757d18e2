package session

import (
	"time"
)

// Application-level roles carried in the user's roleHint. These are distinct
// from any transport-level role the identity service may attach to tokens.
const (
	RoleOrganizer   = "organizer"
	RoleParticipant = "participant"
)

// User is a read-only projection of identity data owned by the identity
// service. Nothing in this module mutates these fields directly; updates go
// through the service's own update operation.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	RoleHint    string `json:"role_hint"`
	DisplayName string `json:"display_name"`
}

// Session is the authoritative identity record: the current access/refresh
// token pair, the absolute access-token expiry, and the user it belongs to.
//
// A Session is either fully present or absent (nil). A partial session, such
// as an access token without a refresh token, must never be treated as valid;
// callers check Valid before adopting one.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
	User         User   `json:"user"`
}

// Valid reports whether the session is structurally complete: both tokens,
// an expiry, and a user identity.
func (s *Session) Valid() bool {
	if s == nil {
		return false
	}
	return s.AccessToken != "" && s.RefreshToken != "" && s.ExpiresAt > 0 && s.User.ID != ""
}

// Expired reports whether the access token has expired as of now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return now.Unix() >= s.ExpiresAt
}

// ExpiresWithin reports whether the access token expires within d of now.
// Used to decide whether a hydrated session should be refreshed eagerly.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil {
		return true
	}
	return now.Add(d).Unix() >= s.ExpiresAt
}

// Clone returns a copy so callers can hand sessions to listeners without
// sharing the stored instance.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
