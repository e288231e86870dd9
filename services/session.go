package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lborres/authstore/core"
	"github.com/lborres/authstore/pkg/crypto"
)

// SessionManager issues database sessions. Only the token hash is stored;
// the raw token goes to the client.
type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	now     func() time.Time
}

type CreateSessionResult struct {
	Session *core.Session `json:"session"`
	Token   string        `json:"token"`
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage) *SessionManager {
	if config.MaxAge <= 0 {
		config = core.DefaultSessionConfig()
	}
	return &SessionManager{config: config, storage: storage, now: time.Now}
}

func (sm *SessionManager) Create(ctx context.Context, userID string) (*CreateSessionResult, error) {
	pair, err := crypto.GenerateHashedToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session, err := sm.storage.CreateSession(ctx, core.Session{
		SessionToken: pair.Hash,
		UserID:       userID,
		Expires:      sm.now().UTC().Add(sm.config.MaxAge),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &CreateSessionResult{Session: session, Token: pair.Token}, nil
}

// Get resolves a raw token to its session and user. Expired sessions are
// deleted and reported as ErrSessionExpired.
func (sm *SessionManager) Get(ctx context.Context, token string) (*core.SessionAndUser, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)
	data, err := sm.storage.GetSessionAndUser(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if data == nil {
		return nil, core.ErrInvalidToken
	}

	if !sm.now().Before(data.Session.Expires) {
		if err := sm.storage.DeleteSession(ctx, tokenHash); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, core.ErrSessionExpired
	}

	return sm.Extend(ctx, data)
}

// Extend pushes the expiry forward once UpdateAge has passed since the
// session was last extended.
func (sm *SessionManager) Extend(ctx context.Context, data *core.SessionAndUser) (*core.SessionAndUser, error) {
	now := sm.now().UTC()
	due := data.Session.Expires.Add(-sm.config.MaxAge).Add(sm.config.UpdateAge)
	if now.Before(due) {
		return data, nil
	}

	updated, err := sm.storage.UpdateSession(ctx, core.SessionPatch{
		SessionToken: data.Session.SessionToken,
		Expires:      core.Some(now.Add(sm.config.MaxAge)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	if updated == nil {
		// deleted concurrently, e.g. by sign out
		return nil, core.ErrInvalidToken
	}

	return &core.SessionAndUser{Session: updated, User: data.User}, nil
}

func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	if err := sm.storage.DeleteSession(ctx, crypto.HashToken(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
