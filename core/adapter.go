package core

import "context"

// Ports define the persistence contract consumed by the authentication core.
//
// A lookup that finds nothing returns (nil, nil). Any non-nil error is an
// OperationFailure (*OpError) and must never be read as "not found".

// UserStorage defines user operations
type UserStorage interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByAccount(ctx context.Context, key AccountKey) (*User, error)
	UpdateUser(ctx context.Context, patch UserPatch) (*User, error)
	// DeleteUser also deletes every Account and Session owned by the user.
	// Deleting an absent user is not an error.
	DeleteUser(ctx context.Context, id string) error
}

// AccountStorage defines account operations
type AccountStorage interface {
	LinkAccount(ctx context.Context, a Account) (*Account, error)
	// UnlinkAccount is a no-op when no account matches.
	UnlinkAccount(ctx context.Context, key AccountKey) error
}

// AccountReader is implemented by adapters that can return a linked account.
type AccountReader interface {
	GetAccount(ctx context.Context, key AccountKey) (*Account, error)
}

// SessionStorage defines session operations
type SessionStorage interface {
	CreateSession(ctx context.Context, s Session) (*Session, error)
	GetSessionAndUser(ctx context.Context, sessionToken string) (*SessionAndUser, error)
	// UpdateSession returns nil when the session does not exist.
	UpdateSession(ctx context.Context, patch SessionPatch) (*Session, error)
	DeleteSession(ctx context.Context, sessionToken string) error
}

// VerificationTokenStorage defines single-use token operations
type VerificationTokenStorage interface {
	CreateVerificationToken(ctx context.Context, v VerificationToken) (*VerificationToken, error)
	// UseVerificationToken returns the token and deletes it in the same step.
	// A token is returned to at most one caller.
	UseVerificationToken(ctx context.Context, key VerificationKey) (*VerificationToken, error)
}

// Adapter is the full verb set every backend implements.
type Adapter interface {
	UserStorage
	AccountStorage
	SessionStorage
	VerificationTokenStorage
}
