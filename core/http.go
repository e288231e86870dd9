package core

import (
	"context"
	"time"
)

// SignInResult contains the signed in user and their new session
type SignInResult struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
	Token   string   `json:"token"` // The raw token (not the hash)
	IsNew   bool     `json:"isNewUser"`
}

// VerificationRequest is what a notifier delivers to the user
type VerificationRequest struct {
	Identifier string
	Token      string // raw token, only the hash is stored
	Expires    time.Time
}

// VerificationNotifier delivers verification tokens (email, sms...)
type VerificationNotifier interface {
	SendVerificationRequest(ctx context.Context, req VerificationRequest) error
}

// AuthHandler provides authentication operations for HTTP adapters
type AuthHandler interface {
	GetSession(ctx context.Context, token string) (*SessionAndUser, error)
	SignOut(ctx context.Context, token string) error
	RequestVerification(ctx context.Context, identifier string) error
	VerifyEmail(ctx context.Context, identifier, token string) (*SignInResult, error)
	DeleteUser(ctx context.Context, userID string) error
}

// HTTPAdapter mounts the auth endpoints on a web framework
type HTTPAdapter interface {
	RegisterRoutes(auth *Auth) error
}
