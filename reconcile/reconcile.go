// Package reconcile installs identity tokens that arrive out-of-band on the
// redirect landing route. The fallback chain is an explicit ordered list of
// strategies evaluated by a small driver; each strategy either fully yields a
// session or fully fails, so no partial state is ever observable.
package reconcile

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evently/authsession/client"
	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/rolegate"
	"github.com/evently/authsession/session"
	"github.com/evently/authsession/tokenstore"
)

// ErrNoSession is the terminal state after every strategy has failed. The
// landing surface shows it with a return-to-login affordance; redirecting
// automatically would loop against the protected route that sent us here.
var ErrNoSession = errors.New("no session could be established")

// Input carries everything the strategies may consult.
type Input struct {
	// Fragment is the raw URL fragment, with or without the leading '#'.
	// Fragments never reach a server, so this must be captured by the
	// landing surface itself.
	Fragment string
	// Query holds the landing URL's query parameters (?code=... delivery).
	Query url.Values

	Client     *client.Client
	Store      *tokenstore.Store
	StorageKey string
	Service    identity.API
	Routes     rolegate.RouteMap
	Log        zerolog.Logger
	Now        func() time.Time
}

func (in *Input) storageKey() string {
	if in.StorageKey != "" {
		return in.StorageKey
	}
	return client.DefaultStorageKey
}

func (in *Input) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Outcome is a successful reconciliation: the installed session and the
// post-auth destination derived from the user's roleHint.
type Outcome struct {
	Session     *session.Session
	Destination string
}

// Strategy is one reconciliation step. It returns (nil, nil) when it does
// not apply, an error when it applied but failed, and a session on success.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, in *Input) (*session.Session, error)
}

// DefaultChain is the ordered fallback chain: fragment tokens, an existing
// persisted record, then a query exchange code.
func DefaultChain() []Strategy {
	return []Strategy{
		{Name: "fragment_tokens", Run: fragmentTokens},
		{Name: "stored_record", Run: storedRecord},
		{Name: "code_exchange", Run: codeExchange},
	}
}

// Reconcile drives the default chain. Each strategy runs only if the
// previous one did not yield a valid session; step failures are logged and
// the chain continues.
func Reconcile(ctx context.Context, in *Input) (*Outcome, error) {
	return ReconcileWith(ctx, in, DefaultChain())
}

// ReconcileWith drives an explicit chain, mainly for tests that exercise
// individual strategies and orderings.
func ReconcileWith(ctx context.Context, in *Input, chain []Strategy) (*Outcome, error) {
	if in.Service == nil {
		return nil, errors.New("[ReconcileWith] identity service is required")
	}
	if in.Routes.Default == "" {
		in.Routes = rolegate.Routes
	}

	for _, strat := range chain {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "[ReconcileWith] canceled")
		}
		sess, err := strat.Run(ctx, in)
		if err != nil {
			in.Log.Warn().Err(err).Str("strategy", strat.Name).Msg("reconciliation step failed")
			continue
		}
		if sess == nil {
			continue
		}
		in.Log.Info().Str("strategy", strat.Name).Str("user", sess.User.ID).Msg("session reconciled")
		return &Outcome{
			Session:     sess,
			Destination: in.Routes.DestinationFor(sess.User.RoleHint),
		}, nil
	}
	return nil, ErrNoSession
}

// fragmentTokens builds a session from an access/refresh pair delivered in
// the URL fragment, resolving the user projection from the identity service.
func fragmentTokens(ctx context.Context, in *Input) (*session.Session, error) {
	pair, ok := parseFragmentTokens(in.Fragment, in.now())
	if !ok {
		return nil, nil
	}
	if pair.expiresAt == 0 {
		return nil, errors.New("[fragmentTokens] no usable expiry in fragment or token")
	}

	user, err := in.Service.FetchUser(ctx, pair.access)
	if err != nil {
		return nil, errors.Wrap(err, "[fragmentTokens] resolve user")
	}

	sess := &session.Session{
		AccessToken:  pair.access,
		RefreshToken: pair.refresh,
		ExpiresAt:    pair.expiresAt,
		User:         *user,
	}
	installSession(in, sess)

	// Redundant direct write: the client persists on adoption, but the page
	// may navigate away before that completes. Losing this record would
	// silently drop a fresh sign-in.
	if record, rerr := session.EncodeRecord(sess); rerr == nil {
		in.Store.Set(in.storageKey(), record)
	}
	return sess, nil
}

// storedRecord adopts a structurally valid persisted record, covering the
// case where another tab or a prior load already finished reconciliation.
func storedRecord(ctx context.Context, in *Input) (*session.Session, error) {
	record := in.Store.Get(in.storageKey())
	if record == "" {
		return nil, nil
	}
	sess, err := session.DecodeRecord(record)
	if err != nil {
		in.Store.Remove(in.storageKey())
		return nil, errors.Wrap(err, "[storedRecord] discarded invalid record")
	}
	installSession(in, sess)
	return sess, nil
}

// codeExchange trades a single-use exchange code from the query string for a
// session.
func codeExchange(ctx context.Context, in *Input) (*session.Session, error) {
	code := in.Query.Get("code")
	if code == "" {
		return nil, nil
	}
	sess, err := in.Service.ExchangeCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "[codeExchange]")
	}
	installSession(in, sess)
	return sess, nil
}

func installSession(in *Input, sess *session.Session) {
	if in.Client != nil {
		if err := in.Client.AdoptSession(sess); err != nil {
			in.Log.Warn().Err(err).Msg("session client rejected reconciled session")
		}
		return
	}
	if record, err := session.EncodeRecord(sess); err == nil {
		in.Store.Set(in.storageKey(), record)
	}
}
