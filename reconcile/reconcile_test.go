package reconcile_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evently/authsession/client"
	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/identity/identityfakes"
	"github.com/evently/authsession/reconcile"
	"github.com/evently/authsession/rolegate"
	"github.com/evently/authsession/session"
	"github.com/evently/authsession/tokenstore"
)

func organizer() session.User {
	return session.User{ID: "user-1", Email: "org@example.com", RoleHint: session.RoleOrganizer}
}

func sessionFor(access string, user session.User) *session.Session {
	return &session.Session{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         user,
	}
}

type fixture struct {
	svc    *identityfakes.FakeAPI
	store  *tokenstore.Store
	client *client.Client
	input  *reconcile.Input
}

func setup(t *testing.T) *fixture {
	t.Helper()
	svc := identityfakes.NewFakeAPI()
	store := tokenstore.New(nil, zerolog.Nop())
	c, err := client.New(svc, store, zerolog.Nop(), client.WithBackgroundValidation(false))
	require.NoError(t, err)
	c.Initialize(context.Background())

	return &fixture{
		svc:    svc,
		store:  store,
		client: c,
		input: &reconcile.Input{
			Query:   url.Values{},
			Client:  c,
			Store:   store,
			Service: svc,
			Routes:  rolegate.Routes,
			Log:     zerolog.Nop(),
		},
	}
}

func (f *fixture) seedRecord(t *testing.T, sess *session.Session) {
	t.Helper()
	record, err := session.EncodeRecord(sess)
	require.NoError(t, err)
	f.store.Set(client.DefaultStorageKey, record)
}

func (f *fixture) storedAccessToken(t *testing.T) string {
	t.Helper()
	sess, err := session.DecodeRecord(f.store.Get(client.DefaultStorageKey))
	require.NoError(t, err)
	return sess.AccessToken
}

func TestFragmentTokensWinOverStoredRecord(t *testing.T) {
	f := setup(t)
	f.seedRecord(t, sessionFor("stored", organizer()))
	f.input.Fragment = "#access_token=fragment&refresh_token=r1&expires_at=99999999999"
	f.svc.FetchUserFn = func(_ context.Context, access string) (*session.User, error) {
		require.Equal(t, "fragment", access)
		user := organizer()
		return &user, nil
	}

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, "fragment", outcome.Session.AccessToken)
	require.Equal(t, "/organizer", outcome.Destination)

	// Step 1 precedence: the store is overwritten to match the fragment.
	require.Equal(t, "fragment", f.storedAccessToken(t))
	require.Equal(t, "fragment", f.client.Session().AccessToken)
}

func TestStoredRecordAdoptedWhenNoFragment(t *testing.T) {
	f := setup(t)
	f.seedRecord(t, sessionFor("stored", organizer()))

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, "stored", outcome.Session.AccessToken)
	require.Equal(t, "/organizer", outcome.Destination)
	require.Equal(t, "stored", f.client.Session().AccessToken)
}

func TestInvalidStoredRecordIsDiscarded(t *testing.T) {
	f := setup(t)
	f.store.Set(client.DefaultStorageKey, `{"access_token":"a"}`)

	_, err := reconcile.Reconcile(context.Background(), f.input)
	require.ErrorIs(t, err, reconcile.ErrNoSession)
	require.Equal(t, "", f.store.Get(client.DefaultStorageKey))
}

func TestCodeExchangeFallback(t *testing.T) {
	f := setup(t)
	f.input.Query = url.Values{"code": {"one-time-code"}}
	participant := session.User{ID: "user-2", RoleHint: session.RoleParticipant}
	f.svc.ExchangeCodeFn = func(_ context.Context, code string) (*session.Session, error) {
		require.Equal(t, "one-time-code", code)
		return sessionFor("exchanged", participant), nil
	}

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, "exchanged", outcome.Session.AccessToken)
	require.Equal(t, "/events", outcome.Destination)
}

func TestExhaustedChainIsTerminal(t *testing.T) {
	f := setup(t)

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.ErrorIs(t, err, reconcile.ErrNoSession)
	require.Nil(t, outcome)
}

func TestFragmentStepFailureFallsThrough(t *testing.T) {
	f := setup(t)
	f.seedRecord(t, sessionFor("stored", organizer()))
	f.input.Fragment = "#access_token=fragment&refresh_token=r1&expires_at=99999999999"
	f.svc.FetchUserFn = func(context.Context, string) (*session.User, error) {
		return nil, identity.ErrServiceUnavailable
	}

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, "stored", outcome.Session.AccessToken)
}

func TestUnknownRoleRoutesToNeutralDefault(t *testing.T) {
	f := setup(t)
	f.seedRecord(t, sessionFor("stored", session.User{ID: "user-3", RoleHint: "auditor"}))

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, rolegate.Routes.Default, outcome.Destination)
}

func TestCancellationStopsTheChain(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reconcile.Reconcile(ctx, f.input)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWorksWithoutSessionClient(t *testing.T) {
	f := setup(t)
	f.input.Client = nil
	f.input.Fragment = "access_token=fragment&refresh_token=r1&expires_at=99999999999"
	f.svc.FetchUserFn = func(context.Context, string) (*session.User, error) {
		user := organizer()
		return &user, nil
	}

	outcome, err := reconcile.Reconcile(context.Background(), f.input)
	require.NoError(t, err)
	require.Equal(t, "fragment", outcome.Session.AccessToken)
	require.Equal(t, "fragment", f.storedAccessToken(t))
}
