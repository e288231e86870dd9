package authstore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lborres/authstore/core"
	"github.com/lborres/authstore/pkg/cache"
	"github.com/lborres/authstore/pkg/observe"
	"github.com/lborres/authstore/services"
)

// interfaces
type (
	Adapter        = core.Adapter
	AccountReader  = core.AccountReader
	CascadePlanner = core.CascadePlanner

	HTTPAdapter          = core.HTTPAdapter
	AuthHandler          = core.AuthHandler
	VerificationNotifier = core.VerificationNotifier
)

// structs
type (
	Auth               = core.Auth
	Config             = core.Config
	SessionConfig      = core.SessionConfig
	VerificationConfig = core.VerificationConfig
	CacheConfig        = core.CacheConfig

	// AuthService is the concrete Auth.Handler built by New.
	AuthService = services.AuthService
	Profile     = services.Profile
)

type (
	User              = core.User
	Account           = core.Account
	AccountKey        = core.AccountKey
	Session           = core.Session
	SessionAndUser    = core.SessionAndUser
	VerificationToken = core.VerificationToken
	SignInResult      = core.SignInResult
	CacheStats        = cache.CacheStats
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache     = cache.NewInMemoryCache
	NewLogNotifier       = services.NewLogNotifier
	DefaultSessionConfig = core.DefaultSessionConfig
)

var (
	ErrConflict      = core.ErrConflict
	ErrInvalidInput  = core.ErrInvalidInput
	ErrMissingRecord = core.ErrMissingRecord
	ErrMalformed     = core.ErrMalformed
	ErrIntegrity     = core.ErrIntegrity
	ErrUnavailable   = core.ErrUnavailable
)

var (
	ErrMissingAuthHeader = core.ErrMissingAuthHeader
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrInvalidToken      = core.ErrInvalidToken
	ErrSessionExpired    = core.ErrSessionExpired
)

var (
	ErrVerificationFailed = core.ErrVerificationFailed
	ErrTokenExpired       = core.ErrTokenExpired
	ErrIdentifierRequired = core.ErrIdentifierRequired
	ErrAccountNotLinked   = core.ErrAccountNotLinked
	ErrAccountNotOwned    = core.ErrAccountNotOwned
)

var (
	ErrAdapterRequired     = core.ErrAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
	ErrNotifierRequired    = core.ErrNotifierRequired
	ErrNotSupported        = core.ErrNotSupported
)

// IsOperationFailure reports whether err came from a storage adapter.
var IsOperationFailure = core.IsOperationFailure

// New validates config, decorates the adapter with tracing and the session
// cache, and mounts the auth endpoints on config.HTTP.
func New(config Config) (*Auth, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Adapter == nil {
		return nil, ErrAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		defaults := DefaultSessionConfig()
		sessionConfig = &defaults
	}

	db := observe.Wrap(config.Adapter, logger, nil)
	if !config.DisableCache {
		cacheConfig := config.CacheConfig
		if cacheConfig == nil {
			cacheConfig = &CacheConfig{
				TTL:     5 * time.Minute,
				MaxSize: 500,
			}
		}
		db = cache.Wrap(db, NewInMemoryCache(*cacheConfig))
	}

	notifier := config.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger, basePath)
	}

	sessionManager := services.NewSessionManager(*sessionConfig, db)
	authService := services.NewAuthService(db, sessionManager, services.AuthServiceConfig{
		Secret:       config.Secret,
		Verification: config.VerificationConfig,
		Notifier:     notifier,
		Logger:       logger,
	})

	auth := &Auth{
		Handler:  authService,
		Adapter:  db,
		Secret:   config.Secret,
		BasePath: basePath,
		Logger:   logger,
	}

	if err := config.HTTP.RegisterRoutes(auth); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return auth, nil
}
