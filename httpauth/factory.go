// Package httpauth constructs the short-lived, request-scoped views of the
// session used server-side. One factory hands out two capability levels: a
// read-only scope for rendering contexts where response headers may already
// be finalized, and a read-write scope for action contexts that install or
// revoke sessions. The capability difference is carried by the scope itself,
// not by convention.
package httpauth

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/evently/authsession/identity"
)

// Config is the factory's environment-supplied configuration. ServiceURL and
// PublicKey are required; their absence is genuine misconfiguration and fails
// construction loudly rather than silently rendering every caller logged out.
type Config struct {
	ServiceURL     string
	PublicKey      string
	ServiceRoleKey string
	CookieName     string
}

// Factory builds request-scoped session scopes. Stateless between requests;
// safe for concurrent use.
type Factory struct {
	cfg   Config
	svc   identity.API
	codec cookieCodec
	log   zerolog.Logger
}

// NewFactory validates configuration once and builds the shared identity
// client.
func NewFactory(cfg Config, log zerolog.Logger) (*Factory, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	svc, err := identity.NewClient(cfg.ServiceURL, cfg.PublicKey, log)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFactory]")
	}
	return &Factory{
		cfg:   cfg,
		svc:   svc,
		codec: cookieCodec{name: cfg.CookieName},
		log:   log,
	}, nil
}

// NewFactoryWithAPI wires an explicit identity API (tests).
func NewFactoryWithAPI(cfg Config, svc identity.API, log zerolog.Logger) (*Factory, error) {
	if svc == nil {
		return nil, errors.New("[NewFactoryWithAPI] identity API is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Factory{cfg: cfg, svc: svc, codec: cookieCodec{name: cfg.CookieName}, log: log}, nil
}

// ServiceClient returns an identity client authenticated with the service
// role key, for trusted server-side operations outside any user session.
func (f *Factory) ServiceClient() (identity.API, error) {
	if f.cfg.ServiceRoleKey == "" {
		return nil, errors.New("[ServiceClient] SERVICE_ROLE_KEY is not configured")
	}
	return identity.NewClient(f.cfg.ServiceURL, f.cfg.ServiceRoleKey, f.log)
}
