package main

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evently/authsession/client"
	"github.com/evently/authsession/httpauth"
	"github.com/evently/authsession/identity"
	"github.com/evently/authsession/internal/config"
	"github.com/evently/authsession/rolegate"
	"github.com/evently/authsession/session"
	"github.com/evently/authsession/tokenstore"
)

// app is the composition root: it owns the one session client instance, the
// token store, and the server-side scope factory.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	factory *httpauth.Factory
	svc     identity.API
	store   *tokenstore.Store
	session *client.Client
}

func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	factory, err := httpauth.NewFactory(httpauth.Config{
		ServiceURL:     cfg.ServiceURL,
		PublicKey:      cfg.PublicKey,
		ServiceRoleKey: cfg.ServiceRoleKey,
		CookieName:     cfg.CookieName,
	}, log)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] scope factory")
	}

	svc, err := identity.NewClient(cfg.ServiceURL, cfg.PublicKey, log)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] identity client")
	}

	store := tokenstore.New(newBackend(cfg, log), log)

	sessionClient, err := client.New(svc, store, log)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] session client")
	}
	sessionClient.Initialize(context.Background())

	return &app{
		cfg:     cfg,
		log:     log,
		factory: factory,
		svc:     svc,
		store:   store,
		session: sessionClient,
	}, nil
}

// newBackend prefers Redis when configured, falling back to local files. A
// backend that fails its probe degrades to in-memory inside the store.
func newBackend(cfg config.Config, log zerolog.Logger) tokenstore.Backend {
	if cfg.TokenRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.TokenRedisAddr})
		backend, err := tokenstore.NewRedisBackend(rdb, "authsession", 0)
		if err == nil {
			return backend
		}
		log.Warn().Err(err).Msg("redis token backend unavailable")
	}
	backend, err := tokenstore.NewFileBackend(cfg.TokenDir)
	if err != nil {
		log.Warn().Err(err).Msg("file token backend unavailable")
		return nil
	}
	return backend
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", a.indexHandler)
	mux.HandleFunc("GET /login", a.loginPageHandler)
	mux.HandleFunc("POST /login", a.loginHandler)
	mux.HandleFunc("POST /logout", a.logoutHandler)
	mux.HandleFunc("GET /auth/landing", a.landingPageHandler)
	mux.HandleFunc("POST /auth/landing", a.landingCompleteHandler)

	organizerOnly := rolegate.Middleware(a.factory, rolegate.Requirement{session.RoleOrganizer}, rolegate.Routes)
	anyUser := rolegate.Middleware(a.factory, nil, rolegate.Routes)

	mux.Handle("GET /organizer", organizerOnly(http.HandlerFunc(a.organizerHandler)))
	mux.Handle("GET /events", anyUser(http.HandlerFunc(a.eventsHandler)))
	mux.Handle("GET /home", anyUser(http.HandlerFunc(a.homeHandler)))

	return mux
}
