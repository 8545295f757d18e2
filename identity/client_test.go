package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evently/authsession/identity"
)

func identityStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "public-key", r.Header.Get("apikey"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req struct {
			GrantType    string `json:"grant_type"`
			Email        string `json:"email"`
			Password     string `json:"password"`
			Code         string `json:"code"`
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch {
		case req.GrantType == "password" && req.Password == "correct":
		case req.GrantType == "authorization_code" && req.Code == "good-code":
		case req.GrantType == "refresh_token" && req.RefreshToken == "r1":
		default:
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "a1",
			"refresh_token": "r2",
			"expires_in":    3600,
			"user": map[string]interface{}{
				"id":    "user-1",
				"email": "jane@example.com",
				"user_metadata": map[string]interface{}{
					"role_hint":    "organizer",
					"display_name": "Jane",
				},
			},
		})
	})

	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "user-1",
			"email": "jane@example.com",
			"user_metadata": map[string]interface{}{
				"role_hint": "organizer",
			},
		})
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, baseURL string) *identity.Client {
	t.Helper()
	c, err := identity.NewClient(baseURL, "public-key", zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClientFailsFast(t *testing.T) {
	_, err := identity.NewClient("", "key", zerolog.Nop())
	require.Error(t, err)

	_, err = identity.NewClient("http://identity.local", "", zerolog.Nop())
	require.Error(t, err)
}

func TestExchangeCredentials(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	sess, err := c.ExchangeCredentials(context.Background(), "jane@example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, "a1", sess.AccessToken)
	require.Equal(t, "r2", sess.RefreshToken)
	require.Greater(t, sess.ExpiresAt, int64(0))
	require.Equal(t, "user-1", sess.User.ID)
	require.Equal(t, "organizer", sess.User.RoleHint)
	require.Equal(t, "Jane", sess.User.DisplayName)
}

func TestExchangeCredentialsRejected(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	_, err := c.ExchangeCredentials(context.Background(), "jane@example.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidGrant)
}

func TestExchangeCode(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	sess, err := c.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "a1", sess.AccessToken)
}

func TestRefresh(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	sess, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, "r2", sess.RefreshToken)
}

func TestFetchUserReadsMetadataBag(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	user, err := c.FetchUser(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "organizer", user.RoleHint)
}

func TestFetchUserRejected(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	_, err := c.FetchUser(context.Background(), "stale")
	require.ErrorIs(t, err, identity.ErrInvalidGrant)
}

func TestSignOut(t *testing.T) {
	server := identityStub(t)
	c := newClient(t, server.URL)

	require.NoError(t, c.SignOut(context.Background(), "a1"))
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	c := newClient(t, server.URL)

	_, err := c.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, identity.ErrServiceUnavailable)
}

func TestUnreachableServiceIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore
	c := newClient(t, server.URL)

	_, err := c.Refresh(context.Background(), "r1")
	require.ErrorIs(t, err, identity.ErrServiceUnavailable)
}

func TestIncompleteGrantIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Access token without a refresh token: a partial session must never
		// be treated as valid.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "a1",
			"expires_in":   3600,
			"user":         map[string]interface{}{"id": "user-1"},
		})
	}))
	t.Cleanup(server.Close)
	c := newClient(t, server.URL)

	_, err := c.ExchangeCredentials(context.Background(), "jane@example.com", "correct")
	require.ErrorIs(t, err, identity.ErrInvalidGrant)
}
