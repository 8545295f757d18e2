package httpauth

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/session"
)

// ErrReadOnly is returned when a write operation is invoked on a scope built
// for a rendering context.
var ErrReadOnly = errors.New("session scope cannot write cookies")

// Scope is a single-shot, request-scoped view of the session. Scopes built
// by ReadScope never touch response headers; scopes built by WriteScope may
// install and revoke session cookies.
type Scope struct {
	f        *Factory
	r        *http.Request
	w        http.ResponseWriter
	canWrite bool
}

// ReadScope builds a read-only scope. r may be nil in contexts with no
// request at all (static rendering); everything then resolves to no session.
func (f *Factory) ReadScope(r *http.Request) *Scope {
	return &Scope{f: f, r: r}
}

// WriteScope builds a read-write scope for a server action or route handler.
func (f *Factory) WriteScope(w http.ResponseWriter, r *http.Request) *Scope {
	return &Scope{f: f, r: r, w: w, canWrite: true}
}

// CanWriteCookies reports the scope's capability.
func (s *Scope) CanWriteCookies() bool {
	return s.canWrite
}

// Session resolves the caller's session from the cookie channel. Absence is
// a normal (nil, nil) return: missing cookie, malformed record, or no
// request context at all. An expired-but-refreshable record is refreshed
// against the identity service; the freshly fetched session wins and is
// re-persisted when this scope is allowed to write.
func (s *Scope) Session(ctx context.Context) (*session.Session, error) {
	if s.r == nil {
		return nil, nil
	}
	sess := s.f.codec.decode(s.r)
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(timeNow()) {
		return sess, nil
	}

	fresh, err := s.f.svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrServiceUnavailable) {
			// Unknown, not invalid: serve the last-known session and let the
			// caller decide whether near-expiry is usable.
			s.f.log.Debug().Err(err).Msg("session refresh unreachable, serving stale session")
			return sess, nil
		}
		s.f.log.Info().Err(err).Msg("session refresh rejected, treating as signed out")
		if s.canWrite {
			s.clearCookie()
		}
		return nil, nil
	}

	if s.canWrite {
		s.installCookie(fresh)
	}
	return fresh, nil
}

// SignIn performs the credential exchange and installs the session cookie.
// The exchange error propagates; a cookie-write hiccup does not, because the
// exchange already succeeded and must not be rolled back.
func (s *Scope) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if !s.canWrite {
		return nil, errors.Wrap(ErrReadOnly, "[Scope.SignIn]")
	}
	sess, err := s.f.svc.ExchangeCredentials(ctx, email, password)
	if err != nil {
		return nil, errors.Wrap(err, "[Scope.SignIn]")
	}
	s.installCookie(sess)
	return sess, nil
}

// InstallSession writes an existing session to the cookie channel.
func (s *Scope) InstallSession(sess *session.Session) error {
	if !s.canWrite {
		return errors.Wrap(ErrReadOnly, "[Scope.InstallSession]")
	}
	s.installCookie(sess)
	return nil
}

// ClearSession deletes the session cookie.
func (s *Scope) ClearSession() error {
	if !s.canWrite {
		return errors.Wrap(ErrReadOnly, "[Scope.ClearSession]")
	}
	s.clearCookie()
	return nil
}

// SignOut revokes the current session server-side (best effort) and clears
// the cookie. Being already signed out is not an error.
func (s *Scope) SignOut(ctx context.Context) error {
	if !s.canWrite {
		return errors.Wrap(ErrReadOnly, "[Scope.SignOut]")
	}
	if sess := s.f.codec.decode(s.r); sess != nil {
		if err := s.f.svc.SignOut(ctx, sess.AccessToken); err != nil {
			s.f.log.Debug().Err(err).Msg("server-side revocation failed, clearing cookie anyway")
		}
	}
	s.clearCookie()
	return nil
}

func (s *Scope) installCookie(sess *session.Session) {
	cookie, err := s.f.codec.encode(sess)
	if err != nil {
		// Logged and swallowed: the action's primary effect already happened.
		s.f.log.Warn().Err(err).Msg("could not encode session cookie")
		return
	}
	cookie.Secure = secureFor(s.r)
	http.SetCookie(s.w, cookie)
}

func (s *Scope) clearCookie() {
	cookie := s.f.codec.clearCookie()
	cookie.Secure = secureFor(s.r)
	http.SetCookie(s.w, cookie)
}

// timeNow is swapped in tests.
var timeNow = time.Now
