package core

import "fmt"

// ValidateUser checks a user before it is created.
func ValidateUser(op string, u User) error {
	if u.ID != "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("id is assigned by the adapter"))
	}
	if u.Email != nil && *u.Email == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("email must be nil or non-empty"))
	}
	return nil
}

// ValidateUserPatch checks a user patch before it is applied.
func ValidateUserPatch(op string, p UserPatch) error {
	if p.ID == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("id is required"))
	}
	if v, ok := p.Email.Get(); ok && v != nil && *v == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("email must be nil or non-empty"))
	}
	return nil
}

// ValidateAccount checks an account before it is linked.
func ValidateAccount(op string, a Account) error {
	switch {
	case a.UserID == "":
		return Fail(op, ErrInvalidInput, fmt.Errorf("userId is required"))
	case !a.Type.Valid():
		return Fail(op, ErrInvalidInput, fmt.Errorf("unknown account type %q", a.Type))
	}
	return ValidateAccountKey(op, a.Key())
}

// ValidateAccountKey checks a provider pairing.
func ValidateAccountKey(op string, k AccountKey) error {
	if k.Provider == "" || k.ProviderAccountID == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("provider and providerAccountId are required"))
	}
	return nil
}

// ValidateSession checks a session before it is created.
func ValidateSession(op string, s Session) error {
	switch {
	case s.SessionToken == "":
		return Fail(op, ErrInvalidInput, fmt.Errorf("sessionToken is required"))
	case s.UserID == "":
		return Fail(op, ErrInvalidInput, fmt.Errorf("userId is required"))
	case s.Expires.IsZero():
		return Fail(op, ErrInvalidInput, fmt.Errorf("expires is required"))
	}
	return nil
}

// ValidateSessionPatch checks a session patch before it is applied.
func ValidateSessionPatch(op string, p SessionPatch) error {
	if p.SessionToken == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("sessionToken is required"))
	}
	if v, ok := p.UserID.Get(); ok && v == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("userId cannot be cleared"))
	}
	if v, ok := p.Expires.Get(); ok && v.IsZero() {
		return Fail(op, ErrInvalidInput, fmt.Errorf("expires cannot be cleared"))
	}
	return nil
}

// ValidateVerificationToken checks a token before it is stored.
func ValidateVerificationToken(op string, v VerificationToken) error {
	if v.Expires.IsZero() {
		return Fail(op, ErrInvalidInput, fmt.Errorf("expires is required"))
	}
	return ValidateVerificationKey(op, v.Key())
}

// ValidateVerificationKey checks an identifier/token pair.
func ValidateVerificationKey(op string, k VerificationKey) error {
	if k.Identifier == "" || k.Token == "" {
		return Fail(op, ErrInvalidInput, fmt.Errorf("identifier and token are required"))
	}
	return nil
}
