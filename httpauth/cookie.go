package httpauth

import (
	"encoding/base64"
	"net/http"

	"github.com/pkg/errors"

	"github.com/evently/authsession/session"
)

// DefaultCookieName carries the persisted token record on the cookie channel.
const DefaultCookieName = "evently_session"

// cookieMaxAge bounds the cookie to the refresh-token horizon.
const cookieMaxAge = 30 * 24 * 60 * 60 // seconds

// cookieCodec round-trips a persisted token record through one cookie.
type cookieCodec struct {
	name string
}

func (c cookieCodec) encode(sess *session.Session) (*http.Cookie, error) {
	record, err := session.EncodeRecord(sess)
	if err != nil {
		return nil, errors.Wrap(err, "[cookieCodec.encode]")
	}
	return &http.Cookie{
		Name:     c.name,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(record)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   cookieMaxAge,
	}, nil
}

// decode reads the session out of the request's cookie jar. Absence and
// malformed values both decode to nil; a bad cookie is the same as no cookie.
func (c cookieCodec) decode(r *http.Request) *session.Session {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	sess, err := session.DecodeRecord(string(raw))
	if err != nil {
		return nil
	}
	return sess
}

func (c cookieCodec) clearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
}

// secureFor mirrors the request scheme onto the cookie's Secure flag.
func secureFor(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
