package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lborres/authstore/core"
	"github.com/lborres/authstore/pkg/crypto"
)

const defaultVerificationMaxAge = 24 * time.Hour

// emailProvider is the provider id of accounts created by email sign-in.
const emailProvider = "email"

type AuthServiceConfig struct {
	Secret       string
	Verification *core.VerificationConfig
	Notifier     core.VerificationNotifier
	Logger       *slog.Logger
}

type AuthService struct {
	db           core.Adapter
	sessions     *SessionManager
	key          string
	verification core.VerificationConfig
	notifier     core.VerificationNotifier
	logger       *slog.Logger
	now          func() time.Time
}

// Ensure AuthService implements AuthHandler
var _ core.AuthHandler = (*AuthService)(nil)

func NewAuthService(db core.Adapter, sessions *SessionManager, cfg AuthServiceConfig) *AuthService {
	verification := core.VerificationConfig{MaxAge: defaultVerificationMaxAge}
	if cfg.Verification != nil && cfg.Verification.MaxAge > 0 {
		verification = *cfg.Verification
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		db:       db,
		sessions: sessions,
		// blake2b keys are capped at 64 bytes, any secret length is accepted
		key:          crypto.HashToken(cfg.Secret),
		verification: verification,
		notifier:     cfg.Notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// Profile is what an identity provider returned for a completed sign-in.
type Profile struct {
	Account       core.Account // UserID is ignored
	Email         *string
	EmailVerified bool
	Name          *string
	Image         *string
}

// SignInWithProvider resolves the user behind a provider identity, creating
// and linking one on first sign-in, then opens a session.
func (s *AuthService) SignInWithProvider(ctx context.Context, p Profile) (*core.SignInResult, error) {
	key := p.Account.Key()

	// Step 1: Known account
	user, err := s.db.GetUserByAccount(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by account: %w", err)
	}

	isNew := false
	if user == nil {
		email := normalizeEmail(p.Email)

		// Step 2: Existing user with the same email
		if email != nil {
			user, err = s.db.GetUserByEmail(ctx, *email)
			if err != nil {
				return nil, fmt.Errorf("failed to find user by email: %w", err)
			}
			if user != nil && !p.EmailVerified {
				return nil, core.ErrAccountNotLinked
			}
		}

		// Step 3: New user
		if user == nil {
			candidate := core.User{Name: p.Name, Email: email, Image: p.Image}
			if email != nil && p.EmailVerified {
				now := s.now().UTC()
				candidate.EmailVerified = &now
			}
			user, err = s.db.CreateUser(ctx, candidate)
			if err != nil {
				if errors.Is(err, core.ErrConflict) {
					return nil, core.ErrAccountNotLinked
				}
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			isNew = true
		}

		account := p.Account
		account.UserID = user.ID
		if _, err := s.db.LinkAccount(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
		s.logger.InfoContext(ctx, "account linked",
			slog.String("user_id", user.ID),
			slog.String("provider", key.Provider),
			slog.Bool("new_user", isNew),
		)
	}

	// Step 4: Session
	return s.signIn(ctx, user, isNew)
}

// SendVerification stores a new single-use token for identifier and returns
// the raw token for delivery.
func (s *AuthService) SendVerification(ctx context.Context, identifier string) (*core.VerificationRequest, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return nil, core.ErrIdentifierRequired
	}

	token, err := crypto.GenerateToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	hashed, err := crypto.KeyedHash(s.key, token)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	expires := s.now().UTC().Add(s.verification.MaxAge)
	if _, err := s.db.CreateVerificationToken(ctx, core.VerificationToken{
		Identifier: identifier,
		Token:      hashed,
		Expires:    expires,
	}); err != nil {
		return nil, fmt.Errorf("failed to store verification token: %w", err)
	}

	return &core.VerificationRequest{Identifier: identifier, Token: token, Expires: expires}, nil
}

// RequestVerification issues a token and hands it to the notifier.
func (s *AuthService) RequestVerification(ctx context.Context, identifier string) error {
	if s.notifier == nil {
		return core.ErrNotifierRequired
	}

	req, err := s.SendVerification(ctx, identifier)
	if err != nil {
		return err
	}

	if err := s.notifier.SendVerificationRequest(ctx, *req); err != nil {
		return fmt.Errorf("failed to deliver verification request: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification token and signs the identifier in,
// creating the user on first use.
func (s *AuthService) VerifyEmail(ctx context.Context, identifier, token string) (*core.SignInResult, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return nil, core.ErrIdentifierRequired
	}
	if token == "" {
		return nil, core.ErrVerificationFailed
	}

	hashed, err := crypto.KeyedHash(s.key, token)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	// Step 1: Consume the token
	vt, err := s.db.UseVerificationToken(ctx, core.VerificationKey{Identifier: identifier, Token: hashed})
	if err != nil {
		return nil, fmt.Errorf("failed to use verification token: %w", err)
	}
	if vt == nil {
		return nil, core.ErrVerificationFailed
	}
	if !s.now().Before(vt.Expires) {
		return nil, core.ErrTokenExpired
	}

	// Step 2: Resolve or create the user
	key := core.AccountKey{Provider: emailProvider, ProviderAccountID: identifier}
	user, err := s.db.GetUserByAccount(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by account: %w", err)
	}
	if user == nil {
		user, err = s.db.GetUserByEmail(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
	}

	now := s.now().UTC()
	isNew := false
	switch {
	case user == nil:
		user, err = s.db.CreateUser(ctx, core.User{Email: &identifier, EmailVerified: &now})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		isNew = true
	case user.EmailVerified == nil:
		// Step 3: Mark the email verified
		user, err = s.db.UpdateUser(ctx, core.UserPatch{ID: user.ID, EmailVerified: core.Some(&now)})
		if err != nil {
			return nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
	}

	// Step 4: Make sure the email account is linked
	linked, err := s.db.GetUserByAccount(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by account: %w", err)
	}
	if linked == nil {
		if _, err := s.db.LinkAccount(ctx, core.Account{
			UserID:            user.ID,
			Type:              core.AccountTypeEmail,
			Provider:          emailProvider,
			ProviderAccountID: identifier,
		}); err != nil && !errors.Is(err, core.ErrConflict) {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
	}

	return s.signIn(ctx, user, isNew)
}

// GetSession returns the session behind a raw token, extending it when due.
func (s *AuthService) GetSession(ctx context.Context, token string) (*core.SessionAndUser, error) {
	return s.sessions.Get(ctx, token)
}

// SignOut invalidates the current session
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// DeleteUser removes the user with all of its accounts and sessions.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.db.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", userID))
	return nil
}

// Unlink removes a provider account from userID. Unlinking an account that
// does not exist is not an error.
func (s *AuthService) Unlink(ctx context.Context, userID string, key core.AccountKey) error {
	owner, err := s.db.GetUserByAccount(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to find account owner: %w", err)
	}
	if owner == nil {
		return nil
	}
	if owner.ID != userID {
		return core.ErrAccountNotOwned
	}

	if err := s.db.UnlinkAccount(ctx, key); err != nil {
		return fmt.Errorf("failed to unlink account: %w", err)
	}
	return nil
}

// GetProviderAccount returns the linked account for key when the adapter
// supports account reads.
func (s *AuthService) GetProviderAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	reader, ok := s.db.(core.AccountReader)
	if !ok {
		return nil, core.ErrNotSupported
	}
	return reader.GetAccount(ctx, key)
}

func (s *AuthService) signIn(ctx context.Context, user *core.User, isNew bool) (*core.SignInResult, error) {
	result, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &core.SignInResult{
		User:    user,
		Session: result.Session,
		Token:   result.Token,
		IsNew:   isNew,
	}, nil
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	n := normalizeIdentifier(*email)
	if n == "" {
		return nil
	}
	return &n
}
