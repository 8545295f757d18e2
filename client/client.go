// Package client implements the long-lived session client: the single source
// of truth for identity in a long-running interactive process. One instance
// is constructed by the composition root and shared; multiple instances would
// independently refresh tokens and race each other through refresh-token
// rotation.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/session"
	"github.com/evently/authsession/tokenstore"
)

// DefaultStorageKey is the token-store key the persisted record lives under.
const DefaultStorageKey = "authsession.token"

const defaultRefreshSkew = 60 * time.Second

// ErrSignedOut is returned by operations that require an active session.
var ErrSignedOut = errors.New("no active session")

// Client owns the working session, its persistence, and change notification.
// All state is mutex-guarded; callbacks are invoked outside the lock.
type Client struct {
	svc          identity.API
	store        *tokenstore.Store
	storageKey   string
	log          zerolog.Logger
	now          func() time.Time
	autoValidate bool
	refreshSkew  time.Duration

	mu          sync.Mutex
	sess        *session.Session
	resolved    bool
	initialized bool
	listeners   map[string]func(Change)
}

// Option configures a Client.
type Option func(*Client)

// WithStorageKey overrides the token-store key.
func WithStorageKey(key string) Option {
	return func(c *Client) { c.storageKey = key }
}

// WithNow sets the clock (primarily for testing).
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithBackgroundValidation controls whether Initialize validates a hydrated
// session against the identity service asynchronously. Defaults to true;
// tests turn it off and call Validate directly.
func WithBackgroundValidation(enabled bool) Option {
	return func(c *Client) { c.autoValidate = enabled }
}

// WithRefreshSkew sets how close to expiry a hydrated session is refreshed
// eagerly instead of validated.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Client) { c.refreshSkew = d }
}

// New builds a session client. store may be nil when the process has no
// storage at all; persistence then silently becomes a no-op.
func New(svc identity.API, store *tokenstore.Store, log zerolog.Logger, options ...Option) (*Client, error) {
	if svc == nil {
		return nil, errors.New("[client.New] identity API is required")
	}
	c := &Client{
		svc:          svc,
		store:        store,
		storageKey:   DefaultStorageKey,
		log:          log,
		now:          time.Now,
		autoValidate: true,
		refreshSkew:  defaultRefreshSkew,
		listeners:    make(map[string]func(Change)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Initialize hydrates the working session from the token store before any
// network call completes, resolves exactly once, then (by default) validates
// the adopted session against the identity service in the background.
//
// A persisted record that fails structural validation is deleted once and
// never retried. Initialize is a no-op after the first call.
func (c *Client) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.mu.Unlock()

	var adopted *session.Session
	if record := c.store.Get(c.storageKey); record != "" {
		sess, err := session.DecodeRecord(record)
		if err != nil {
			c.store.Remove(c.storageKey)
			c.log.Warn().Err(err).Msg("discarded invalid persisted token record")
		} else {
			adopted = sess
		}
	}

	c.mu.Lock()
	c.sess = adopted
	c.resolved = true
	c.mu.Unlock()

	c.emit(Change{Event: EventInitialResolved, Session: adopted.Clone()})

	if adopted != nil && c.autoValidate {
		go c.Validate(context.WithoutCancel(ctx))
	}
}

// Validate checks the hydrated session against the identity service: a
// near-expiry session is refreshed, anything else is confirmed via a user
// fetch. Failures here are background failures; they are logged, and only a
// definitive rejection clears the session.
func (c *Client) Validate(ctx context.Context) {
	c.mu.Lock()
	sess := c.sess.Clone()
	c.mu.Unlock()
	if sess == nil {
		return
	}

	if sess.ExpiresWithin(c.now(), c.refreshSkew) {
		if _, err := c.Refresh(ctx); err != nil {
			c.log.Debug().Err(err).Msg("background refresh of hydrated session failed")
		}
		return
	}

	if _, err := c.svc.FetchUser(ctx, sess.AccessToken); err != nil {
		if errors.Is(err, identity.ErrInvalidGrant) {
			// The access token is dead; the refresh token may still work.
			if _, rerr := c.Refresh(ctx); rerr != nil {
				c.log.Warn().Err(rerr).Msg("hydrated session rejected by identity service")
			}
			return
		}
		// Transient: fail open, keep the last-known session.
		c.log.Debug().Err(err).Msg("background validation unreachable, keeping session")
	}
}

// Session returns the current session, possibly stale by up to one refresh
// cycle, or nil when signed out.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Resolved reports whether initial hydration has completed.
func (c *Client) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// OnChange registers a listener for session transitions and returns its
// unsubscribe handle. If hydration already resolved, the listener immediately
// receives a replay of the resolution so no subscriber observes zero events.
func (c *Client) OnChange(fn func(Change)) func() {
	id := uuid.NewString()

	c.mu.Lock()
	c.listeners[id] = fn
	var replay *Change
	if c.resolved {
		replay = &Change{Event: EventInitialResolved, Session: c.sess.Clone()}
	}
	c.mu.Unlock()

	if replay != nil {
		fn(*replay)
	}
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SignIn performs a credential exchange and installs the resulting session.
// Errors propagate to the caller; this is a user-initiated operation.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := c.svc.ExchangeCredentials(ctx, email, password)
	if err != nil {
		return nil, errors.Wrap(err, "[SignIn]")
	}
	c.install(sess, EventSignedIn)
	return sess.Clone(), nil
}

// AdoptSession installs an externally reconciled session (redirect landing
// flows). The session must be structurally valid; installation is atomic, so
// listeners never observe a partial session.
func (c *Client) AdoptSession(sess *session.Session) error {
	if !sess.Valid() {
		return errors.Wrap(session.ErrInvalidRecord, "[AdoptSession]")
	}
	c.install(sess.Clone(), EventSignedIn)
	return nil
}

// Refresh mints a new access token from the current refresh token. A
// transient failure keeps the last-known session in place and returns an
// error the caller can distinguish via identity.ErrServiceUnavailable; a
// definitive rejection clears the session.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	cur := c.sess.Clone()
	c.mu.Unlock()
	if cur == nil {
		return nil, ErrSignedOut
	}

	fresh, err := c.svc.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidGrant) {
			c.log.Warn().Err(err).Msg("refresh token rejected, signing out")
			c.clear()
			return nil, errors.Wrap(err, "[Refresh]")
		}
		// Timeout or unreachable service is "unknown", not "invalid".
		return nil, errors.Wrap(err, "[Refresh]")
	}

	c.mu.Lock()
	if c.sess == nil {
		// Signed out while the refresh was in flight; do not resurrect.
		c.mu.Unlock()
		return nil, ErrSignedOut
	}
	c.mu.Unlock()

	c.install(fresh, EventTokenRefreshed)
	return fresh.Clone(), nil
}

// SignOut clears the session and token store, revokes server-side best
// effort, and notifies listeners. Idempotent: calling it while signed out is
// a no-op and never errors.
func (c *Client) SignOut(ctx context.Context) {
	c.mu.Lock()
	cur := c.sess
	c.sess = nil
	c.resolved = true
	c.mu.Unlock()

	c.store.Remove(c.storageKey)

	if cur == nil {
		return
	}
	if err := c.svc.SignOut(ctx, cur.AccessToken); err != nil {
		c.log.Debug().Err(err).Msg("server-side sign-out failed, session cleared locally")
	}
	c.emit(Change{Event: EventSignedOut})
}

func (c *Client) install(sess *session.Session, event Event) {
	c.mu.Lock()
	c.sess = sess
	c.resolved = true
	c.mu.Unlock()

	if record, err := session.EncodeRecord(sess); err == nil {
		c.store.Set(c.storageKey, record)
	} else {
		c.log.Warn().Err(err).Msg("could not persist session record")
	}
	c.emit(Change{Event: event, Session: sess.Clone()})
}

func (c *Client) clear() {
	c.mu.Lock()
	wasSignedIn := c.sess != nil
	c.sess = nil
	c.mu.Unlock()

	c.store.Remove(c.storageKey)
	if wasSignedIn {
		c.emit(Change{Event: EventSignedOut})
	}
}

func (c *Client) emit(change Change) {
	c.mu.Lock()
	fns := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
