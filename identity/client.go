package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evently/authsession/session"
)

const defaultTimeout = 10 * time.Second

// Client talks to the identity service over HTTP. Construction fails fast
// when the service URL or public API key is missing; everything else is a
// per-call concern.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient returns a client bound to the identity service at serviceURL,
// authenticating with apiKey.
func NewClient(serviceURL, apiKey string, log zerolog.Logger, options ...Option) (*Client, error) {
	if serviceURL == "" {
		return nil, errors.New("[NewClient] identity service URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("[NewClient] identity service API key is required")
	}

	c := &Client{
		baseURL: serviceURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type userPayload struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         userPayload `json:"user"`
}

func (u userPayload) toUser() session.User {
	user := session.User{ID: u.ID, Email: u.Email}
	if hint, ok := u.Metadata["role_hint"].(string); ok {
		user.RoleHint = hint
	}
	if name, ok := u.Metadata["display_name"].(string); ok {
		user.DisplayName = name
	}
	return user
}

// ExchangeCredentials implements API.
func (c *Client) ExchangeCredentials(ctx context.Context, email, password string) (*session.Session, error) {
	return c.tokenGrant(ctx, tokenRequest{GrantType: "password", Email: email, Password: password})
}

// ExchangeCode implements API.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*session.Session, error) {
	return c.tokenGrant(ctx, tokenRequest{GrantType: "authorization_code", Code: code})
}

// Refresh implements API.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return c.tokenGrant(ctx, tokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
}

func (c *Client) tokenGrant(ctx context.Context, req tokenRequest) (*session.Session, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", "", req, &resp); err != nil {
		return nil, errors.Wrapf(err, "[tokenGrant] grant_type=%s", req.GrantType)
	}

	expiresAt := resp.ExpiresAt
	if expiresAt == 0 && resp.ExpiresIn > 0 {
		expiresAt = time.Now().Unix() + resp.ExpiresIn
	}

	sess := &session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         resp.User.toUser(),
	}
	if !sess.Valid() {
		return nil, errors.Wrapf(ErrInvalidGrant, "[tokenGrant] service returned an incomplete session for grant_type=%s", req.GrantType)
	}
	return sess, nil
}

// FetchUser implements API.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*session.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &payload); err != nil {
		return nil, errors.Wrap(err, "[FetchUser]")
	}
	if payload.ID == "" {
		return nil, errors.Wrap(ErrInvalidGrant, "[FetchUser] service returned no user")
	}
	user := payload.toUser()
	return &user, nil
}

// SignOut implements API.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil); err != nil {
		return errors.Wrap(err, "[SignOut]")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("identity request failed")
		return errors.Wrapf(ErrServiceUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode >= 500:
		return errors.Wrapf(ErrServiceUnavailable, "%s %s: status %d", method, path, resp.StatusCode)
	default:
		return errors.Wrapf(ErrInvalidGrant, "%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(ErrServiceUnavailable, "%s %s: decode response: %v", method, path, err)
	}
	return nil
}

var _ API = (*Client)(nil)
