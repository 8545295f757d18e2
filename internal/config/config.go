// Package config reads the environment-supplied configuration once at
// startup. The identity service URL and public key have no sensible
// defaults; their absence fails loudly instead of letting every request
// silently render as logged out.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

const (
	serviceURLVar     = "SERVICE_URL"
	publicKeyVar      = "PUBLIC_KEY"
	serviceRoleKeyVar = "SERVICE_ROLE_KEY"
	cookieNameVar     = "COOKIE_NAME"
	portVar           = "PORT"
	envVar            = "ENV"
	tokenDirVar       = "TOKEN_DIR"
	tokenRedisVar     = "TOKEN_REDIS_ADDR"
	appNameVar        = "APP_NAME"
)

// Config holds everything the composition root needs.
type Config struct {
	AppName        string
	ServiceURL     string
	PublicKey      string
	ServiceRoleKey string
	CookieName     string
	Port           string
	Env            string
	TokenDir       string
	TokenRedisAddr string
}

// Load reads and validates the environment. SERVICE_URL and PUBLIC_KEY are
// required.
func Load() (Config, error) {
	cfg := Config{
		AppName:        GetEnv(appNameVar, "Evently Session"),
		ServiceURL:     os.Getenv(serviceURLVar),
		PublicKey:      os.Getenv(publicKeyVar),
		ServiceRoleKey: os.Getenv(serviceRoleKeyVar),
		CookieName:     GetEnv(cookieNameVar, ""),
		Port:           normalizePort(GetEnv(portVar, "8080")),
		Env:            GetEnv(envVar, "DEV"),
		TokenDir:       GetEnv(tokenDirVar, ".authsession"),
		TokenRedisAddr: GetEnv(tokenRedisVar, ""),
	}
	if cfg.ServiceURL == "" {
		return Config{}, errors.Errorf("[config.Load] %s is required", serviceURLVar)
	}
	if cfg.PublicKey == "" {
		return Config{}, errors.Errorf("[config.Load] %s is required", publicKeyVar)
	}
	return cfg, nil
}

// GetEnv returns the value of envVar, or defaultValue when unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func normalizePort(port string) string {
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}
