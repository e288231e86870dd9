package core

import "time"

// User represents a person known to the authentication core
//
// This is the "identity" - who someone is
type User struct {
	ID            string     `json:"id"`
	Name          *string    `json:"name,omitempty"`
	Email         *string    `json:"email,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Image         *string    `json:"image,omitempty"`
}

// AccountType is the kind of sign-in method an Account represents
type AccountType string

const (
	AccountTypeOAuth    AccountType = "oauth"
	AccountTypeOIDC     AccountType = "oidc"
	AccountTypeEmail    AccountType = "email"
	AccountTypeWebAuthn AccountType = "webauthn"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeOAuth, AccountTypeOIDC, AccountTypeEmail, AccountTypeWebAuthn:
		return true
	}
	return false
}

// Account links a User to an identity at a provider
//
// This is the "credential" - how someone proves who they are.
// Token fields are opaque to the adapter and stored as given.
type Account struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	Type              AccountType `json:"type"`
	Provider          string      `json:"provider"`
	ProviderAccountID string      `json:"providerAccountId"`
	RefreshToken      *string     `json:"-"` // Never expose in JSON
	AccessToken       *string     `json:"-"` // Never expose in JSON
	ExpiresAt         *int64      `json:"expiresAt,omitempty"`
	TokenType         *string     `json:"tokenType,omitempty"`
	Scope             *string     `json:"scope,omitempty"`
	IDToken           *string     `json:"-"` // Never expose in JSON
	SessionState      *string     `json:"sessionState,omitempty"`
}

// Key returns the natural key of the account.
func (a Account) Key() AccountKey {
	return AccountKey{Provider: a.Provider, ProviderAccountID: a.ProviderAccountID}
}

// AccountKey identifies an Account by its provider pairing
type AccountKey struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
}

// Session represents an active database session
type Session struct {
	ID           string    `json:"id"`
	SessionToken string    `json:"-"` // Never expose in JSON
	UserID       string    `json:"userId"`
	Expires      time.Time `json:"expires"`
}

// SessionAndUser combines a session with the user that owns it
type SessionAndUser struct {
	Session *Session `json:"session"`
	User    *User    `json:"user"`
}

// VerificationToken is a single-use credential for passwordless flows
type VerificationToken struct {
	Identifier string    `json:"identifier"`
	Token      string    `json:"-"`
	Expires    time.Time `json:"expires"`
}

// Key returns the natural key of the token.
func (v VerificationToken) Key() VerificationKey {
	return VerificationKey{Identifier: v.Identifier, Token: v.Token}
}

// VerificationKey identifies a VerificationToken
type VerificationKey struct {
	Identifier string
	Token      string
}
