package redis

import (
	"encoding/json"
	"fmt"

	"github.com/lborres/authstore/core"
)

// Records are stored as JSON with RFC 3339 timestamps.

type userRecord struct {
	ID            string  `json:"id"`
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	EmailVerified *string `json:"emailVerified,omitempty"`
	Image         *string `json:"image,omitempty"`
}

type accountRecord struct {
	ID                string  `json:"id"`
	UserID            string  `json:"userId"`
	Type              string  `json:"type"`
	Provider          string  `json:"provider"`
	ProviderAccountID string  `json:"providerAccountId"`
	RefreshToken      *string `json:"refresh_token,omitempty"`
	AccessToken       *string `json:"access_token,omitempty"`
	ExpiresAt         *int64  `json:"expires_at,omitempty"`
	TokenType         *string `json:"token_type,omitempty"`
	Scope             *string `json:"scope,omitempty"`
	IDToken           *string `json:"id_token,omitempty"`
	SessionState      *string `json:"session_state,omitempty"`
}

type sessionRecord struct {
	ID           string `json:"id"`
	SessionToken string `json:"sessionToken"`
	UserID       string `json:"userId"`
	Expires      string `json:"expires"`
}

type tokenRecord struct {
	Identifier string `json:"identifier"`
	Token      string `json:"token"`
	Expires    string `json:"expires"`
}

func encodeUser(u core.User) ([]byte, error) {
	return json.Marshal(userRecord{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: core.FormatTimePtr(u.EmailVerified),
		Image:         u.Image,
	})
}

func decodeUser(data []byte) (*core.User, error) {
	var r userRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: user: %v", core.ErrMalformed, err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("%w: user without id", core.ErrMalformed)
	}
	verified, err := core.ParseTimePtr(r.EmailVerified)
	if err != nil {
		return nil, err
	}
	return &core.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		EmailVerified: verified,
		Image:         r.Image,
	}, nil
}

func encodeAccount(a core.Account) ([]byte, error) {
	return json.Marshal(accountRecord{
		ID:                a.ID,
		UserID:            a.UserID,
		Type:              string(a.Type),
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		RefreshToken:      a.RefreshToken,
		AccessToken:       a.AccessToken,
		ExpiresAt:         a.ExpiresAt,
		TokenType:         a.TokenType,
		Scope:             a.Scope,
		IDToken:           a.IDToken,
		SessionState:      a.SessionState,
	})
}

func decodeAccount(data []byte) (*core.Account, error) {
	var r accountRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: account: %v", core.ErrMalformed, err)
	}
	if r.UserID == "" {
		return nil, fmt.Errorf("%w: account without userId", core.ErrMalformed)
	}
	return &core.Account{
		ID:                r.ID,
		UserID:            r.UserID,
		Type:              core.AccountType(r.Type),
		Provider:          r.Provider,
		ProviderAccountID: r.ProviderAccountID,
		RefreshToken:      r.RefreshToken,
		AccessToken:       r.AccessToken,
		ExpiresAt:         r.ExpiresAt,
		TokenType:         r.TokenType,
		Scope:             r.Scope,
		IDToken:           r.IDToken,
		SessionState:      r.SessionState,
	}, nil
}

func encodeSession(s core.Session) ([]byte, error) {
	return json.Marshal(sessionRecord{
		ID:           s.ID,
		SessionToken: s.SessionToken,
		UserID:       s.UserID,
		Expires:      core.FormatTime(s.Expires),
	})
}

func decodeSession(data []byte) (*core.Session, error) {
	var r sessionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: session: %v", core.ErrMalformed, err)
	}
	if r.UserID == "" {
		return nil, fmt.Errorf("%w: session without userId", core.ErrMalformed)
	}
	expires, err := core.ParseTime(r.Expires)
	if err != nil {
		return nil, err
	}
	return &core.Session{
		ID:           r.ID,
		SessionToken: r.SessionToken,
		UserID:       r.UserID,
		Expires:      expires,
	}, nil
}

func encodeToken(v core.VerificationToken) ([]byte, error) {
	return json.Marshal(tokenRecord{
		Identifier: v.Identifier,
		Token:      v.Token,
		Expires:    core.FormatTime(v.Expires),
	})
}

func decodeToken(data []byte) (*core.VerificationToken, error) {
	var r tokenRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: verification token: %v", core.ErrMalformed, err)
	}
	expires, err := core.ParseTime(r.Expires)
	if err != nil {
		return nil, err
	}
	return &core.VerificationToken{
		Identifier: r.Identifier,
		Token:      r.Token,
		Expires:    expires,
	}, nil
}
