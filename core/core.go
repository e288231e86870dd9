package core

import (
	"log/slog"
	"time"
)

type Config struct {
	Secret string

	Adapter Adapter

	HTTP HTTPAdapter

	// Optional config
	SessionConfig      *SessionConfig
	VerificationConfig *VerificationConfig
	CacheConfig        *CacheConfig
	DisableCache       bool
	Notifier           VerificationNotifier
	Logger             *slog.Logger
	BasePath           string
}

// SessionConfig controls database session lifetime
type SessionConfig struct {
	MaxAge time.Duration
	// UpdateAge is how often the expiry is pushed forward. Zero extends on
	// every read.
	UpdateAge time.Duration
}

// VerificationConfig controls passwordless sign-in tokens
type VerificationConfig struct {
	MaxAge time.Duration
}

// CacheConfig configures the session read cache
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge:    30 * 24 * time.Hour,
		UpdateAge: 24 * time.Hour,
	}
}

type Auth struct {
	Handler  AuthHandler
	Adapter  Adapter
	Secret   string
	BasePath string
	Logger   *slog.Logger
}
