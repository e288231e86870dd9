package core

import "time"

// Opt is a patch field. Only fields with Set == true are written.
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some returns a set patch field holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

// Get returns the value and whether it was set.
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// UserPatch carries the fields of a User to change. ID is required.
type UserPatch struct {
	ID            string
	Name          Opt[*string]
	Email         Opt[*string]
	EmailVerified Opt[*time.Time]
	Image         Opt[*string]
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return !p.Name.Set && !p.Email.Set && !p.EmailVerified.Set && !p.Image.Set
}

// Apply overwrites the present fields of u.
func (p UserPatch) Apply(u *User) {
	if v, ok := p.Name.Get(); ok {
		u.Name = v
	}
	if v, ok := p.Email.Get(); ok {
		u.Email = v
	}
	if v, ok := p.EmailVerified.Get(); ok {
		u.EmailVerified = v
	}
	if v, ok := p.Image.Get(); ok {
		u.Image = v
	}
}

// SessionPatch carries the fields of a Session to change. SessionToken is required.
type SessionPatch struct {
	SessionToken string
	UserID       Opt[string]
	Expires      Opt[time.Time]
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return !p.UserID.Set && !p.Expires.Set
}

// Apply overwrites the present fields of s.
func (p SessionPatch) Apply(s *Session) {
	if v, ok := p.UserID.Get(); ok {
		s.UserID = v
	}
	if v, ok := p.Expires.Get(); ok {
		s.Expires = v
	}
}
