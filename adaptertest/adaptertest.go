// Package adaptertest is the conformance suite every storage adapter runs
// from its own tests.
package adaptertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/authstore/core"
)

// Factory returns an adapter ready for use. It may return the same backend
// for every call; the suite never reuses natural keys across subtests.
type Factory func(t *testing.T) core.Adapter

// Run executes the full contract against the adapters produced by newAdapter.
func Run(t *testing.T, newAdapter Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, a core.Adapter)
	}{
		{"CreateAndGetUser", testCreateAndGetUser},
		{"GetMissingUser", testGetMissingUser},
		{"DuplicateEmailFails", testDuplicateEmailFails},
		{"UsersWithoutEmail", testUsersWithoutEmail},
		{"UpdateUserPatchesOnlyPresentFields", testUpdateUserPatch},
		{"UpdateUserEmailMovesIndex", testUpdateUserEmailMovesIndex},
		{"UpdateUserToTakenEmailFails", testUpdateUserToTakenEmail},
		{"UpdateMissingUserFails", testUpdateMissingUser},
		{"LinkAndLookupAccount", testLinkAndLookup},
		{"DuplicateAccountFails", testDuplicateAccountFails},
		{"InvalidAccountRejected", testInvalidAccountRejected},
		{"UnlinkAccount", testUnlinkAccount},
		{"SessionLifecycle", testSessionLifecycle},
		{"DuplicateSessionTokenFails", testDuplicateSessionTokenFails},
		{"UpdateMissingSession", testUpdateMissingSession},
		{"CascadeDeleteUser", testCascadeDeleteUser},
		{"CascadeDeleteIsIdempotent", testCascadeDeleteIdempotent},
		{"VerificationTokenSingleUse", testVerificationTokenSingleUse},
		{"VerificationTokenConcurrentUse", testVerificationTokenConcurrentUse},
		{"DuplicateVerificationTokenFails", testDuplicateVerificationTokenFails},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newAdapter(t))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func unique(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func uniqueEmail() *string {
	return ptr(unique("user") + "@example.com")
}

// now is truncated to the coarsest precision of the supported backends.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func assertSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %v, got %v", want, got)
}

func mustCreateUser(t *testing.T, a core.Adapter) *core.User {
	t.Helper()
	u, err := a.CreateUser(context.Background(), core.User{Name: ptr("Test User"), Email: uniqueEmail()})
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotEmpty(t, u.ID)
	return u
}

func mustLink(t *testing.T, a core.Adapter, userID string) core.AccountKey {
	t.Helper()
	acc, err := a.LinkAccount(context.Background(), core.Account{
		UserID:            userID,
		Type:              core.AccountTypeOAuth,
		Provider:          "github",
		ProviderAccountID: unique("gh"),
		AccessToken:       ptr("gho_token"),
		ExpiresAt:         ptr(int64(1700000000)),
		Scope:             ptr("read:user"),
	})
	require.NoError(t, err)
	return acc.Key()
}

func mustCreateSession(t *testing.T, a core.Adapter, userID string) *core.Session {
	t.Helper()
	s, err := a.CreateSession(context.Background(), core.Session{
		SessionToken: unique("sess"),
		UserID:       userID,
		Expires:      now().Add(time.Hour),
	})
	require.NoError(t, err)
	return s
}

func testCreateAndGetUser(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	verified := now()
	in := core.User{
		Name:          ptr("Ada Lovelace"),
		Email:         uniqueEmail(),
		EmailVerified: &verified,
		Image:         ptr("https://example.com/ada.png"),
	}

	created, err := a.CreateUser(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := a.GetUser(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, *in.Name, *got.Name)
	assert.Equal(t, *in.Email, *got.Email)
	assert.Equal(t, *in.Image, *got.Image)
	require.NotNil(t, got.EmailVerified)
	assertSameTime(t, verified, *got.EmailVerified)

	byEmail, err := a.GetUserByEmail(ctx, *in.Email)
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
}

func testGetMissingUser(t *testing.T, a core.Adapter) {
	ctx := context.Background()

	for _, id := range []string{"000000000000000000000000", uuid.NewString(), "not-an-id"} {
		u, err := a.GetUser(ctx, id)
		require.NoError(t, err, "missing user %q must be nil, not an error", id)
		assert.Nil(t, u)
	}

	u, err := a.GetUserByEmail(ctx, *uniqueEmail())
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = a.GetUserByAccount(ctx, core.AccountKey{Provider: "github", ProviderAccountID: unique("none")})
	require.NoError(t, err)
	assert.Nil(t, u)

	su, err := a.GetSessionAndUser(ctx, unique("none"))
	require.NoError(t, err)
	assert.Nil(t, su)
}

func testDuplicateEmailFails(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	email := uniqueEmail()

	_, err := a.CreateUser(ctx, core.User{Email: email})
	require.NoError(t, err)

	dup, err := a.CreateUser(ctx, core.User{Email: email})
	require.Error(t, err)
	assert.Nil(t, dup)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.True(t, core.IsOperationFailure(err))
}

func testUsersWithoutEmail(t *testing.T, a core.Adapter) {
	ctx := context.Background()

	first, err := a.CreateUser(ctx, core.User{Name: ptr("anon")})
	require.NoError(t, err)
	second, err := a.CreateUser(ctx, core.User{Name: ptr("anon")})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := a.GetUser(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Email)
	assert.Nil(t, got.EmailVerified)
}

func testUpdateUserPatch(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	verified := now()

	updated, err := a.UpdateUser(ctx, core.UserPatch{
		ID:            u.ID,
		EmailVerified: core.Some(&verified),
		Image:         core.Some(ptr("https://example.com/new.png")),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, u.ID, updated.ID)
	assert.Equal(t, *u.Name, *updated.Name, "absent field must be kept")
	assert.Equal(t, *u.Email, *updated.Email, "absent field must be kept")
	require.NotNil(t, updated.EmailVerified)
	assertSameTime(t, verified, *updated.EmailVerified)

	cleared, err := a.UpdateUser(ctx, core.UserPatch{ID: u.ID, Image: core.Some[*string](nil)})
	require.NoError(t, err)
	assert.Nil(t, cleared.Image)
	assert.Equal(t, *u.Name, *cleared.Name)

	noop, err := a.UpdateUser(ctx, core.UserPatch{ID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, *u.Email, *noop.Email)
}

func testUpdateUserEmailMovesIndex(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	oldEmail := *u.Email
	newEmail := uniqueEmail()

	_, err := a.UpdateUser(ctx, core.UserPatch{ID: u.ID, Email: core.Some(newEmail)})
	require.NoError(t, err)

	gone, err := a.GetUserByEmail(ctx, oldEmail)
	require.NoError(t, err)
	assert.Nil(t, gone, "old email must no longer resolve")

	found, err := a.GetUserByEmail(ctx, *newEmail)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	// the old address is free again
	other, err := a.CreateUser(ctx, core.User{Email: &oldEmail})
	require.NoError(t, err)
	assert.NotEqual(t, u.ID, other.ID)
}

func testUpdateUserToTakenEmail(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	first := mustCreateUser(t, a)
	second := mustCreateUser(t, a)

	_, err := a.UpdateUser(ctx, core.UserPatch{ID: second.ID, Email: core.Some(first.Email)})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)

	owner, err := a.GetUserByEmail(ctx, *first.Email)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, first.ID, owner.ID)

	unchanged, err := a.GetUser(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, *second.Email, *unchanged.Email)
}

func testUpdateMissingUser(t *testing.T, a core.Adapter) {
	_, err := a.UpdateUser(context.Background(), core.UserPatch{ID: "000000000000000000000000", Name: core.Some(ptr("x"))})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingRecord)
}

func testLinkAndLookup(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	key := core.AccountKey{Provider: "github", ProviderAccountID: unique("42")}

	acc, err := a.LinkAccount(ctx, core.Account{
		UserID:            u.ID,
		Type:              core.AccountTypeOAuth,
		Provider:          key.Provider,
		ProviderAccountID: key.ProviderAccountID,
		RefreshToken:      ptr("r1"),
		AccessToken:       ptr("a1"),
		ExpiresAt:         ptr(int64(1735689600)),
		TokenType:         ptr("bearer"),
		Scope:             ptr("read:user"),
		IDToken:           ptr("id.jwt"),
		SessionState:      ptr("state"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, u.ID, acc.UserID)

	got, err := a.GetUserByAccount(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	reader, ok := a.(core.AccountReader)
	if !ok {
		return
	}
	stored, err := reader.GetAccount(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, core.AccountTypeOAuth, stored.Type)
	assert.Equal(t, "r1", *stored.RefreshToken)
	assert.Equal(t, "a1", *stored.AccessToken)
	assert.Equal(t, int64(1735689600), *stored.ExpiresAt)
	assert.Equal(t, "bearer", *stored.TokenType)
	assert.Equal(t, "id.jwt", *stored.IDToken)
	assert.Equal(t, "state", *stored.SessionState)
}

func testDuplicateAccountFails(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	first := mustCreateUser(t, a)
	second := mustCreateUser(t, a)
	key := mustLink(t, a, first.ID)

	_, err := a.LinkAccount(ctx, core.Account{
		UserID:            second.ID,
		Type:              core.AccountTypeOAuth,
		Provider:          key.Provider,
		ProviderAccountID: key.ProviderAccountID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)

	owner, err := a.GetUserByAccount(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, first.ID, owner.ID)
}

func testInvalidAccountRejected(t *testing.T, a core.Adapter) {
	u := mustCreateUser(t, a)

	_, err := a.LinkAccount(context.Background(), core.Account{
		UserID:            u.ID,
		Type:              "password",
		Provider:          "github",
		ProviderAccountID: unique("x"),
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func testUnlinkAccount(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	key := mustLink(t, a, u.ID)
	other := mustLink(t, a, u.ID)

	require.NoError(t, a.UnlinkAccount(ctx, key))

	got, err := a.GetUserByAccount(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	// the sibling account is untouched
	still, err := a.GetUserByAccount(ctx, other)
	require.NoError(t, err)
	require.NotNil(t, still)

	// unlinking an absent account is a no-op
	require.NoError(t, a.UnlinkAccount(ctx, key))

	// the pairing can be linked again
	_, err = a.LinkAccount(ctx, core.Account{UserID: u.ID, Type: core.AccountTypeOAuth, Provider: key.Provider, ProviderAccountID: key.ProviderAccountID})
	require.NoError(t, err)
}

func testSessionLifecycle(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	t1 := now().Add(time.Hour)
	t2 := t1.Add(24 * time.Hour)
	token := unique("s1")

	created, err := a.CreateSession(ctx, core.Session{SessionToken: token, UserID: u.ID, Expires: t1})
	require.NoError(t, err)
	assert.Equal(t, token, created.SessionToken)
	assert.Equal(t, u.ID, created.UserID)

	got, err := a.GetSessionAndUser(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.User.ID)
	assert.Equal(t, token, got.Session.SessionToken)
	assertSameTime(t, t1, got.Session.Expires)

	updated, err := a.UpdateSession(ctx, core.SessionPatch{SessionToken: token, Expires: core.Some(t2)})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assertSameTime(t, t2, updated.Expires)
	assert.Equal(t, u.ID, updated.UserID)

	got, err = a.GetSessionAndUser(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assertSameTime(t, t2, got.Session.Expires)

	require.NoError(t, a.DeleteSession(ctx, token))
	got, err = a.GetSessionAndUser(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// deleting twice is not an error
	require.NoError(t, a.DeleteSession(ctx, token))
}

func testDuplicateSessionTokenFails(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	s := mustCreateSession(t, a, u.ID)

	_, err := a.CreateSession(ctx, core.Session{SessionToken: s.SessionToken, UserID: u.ID, Expires: now().Add(time.Hour)})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func testUpdateMissingSession(t *testing.T, a core.Adapter) {
	got, err := a.UpdateSession(context.Background(), core.SessionPatch{SessionToken: unique("none"), Expires: core.Some(now())})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testCascadeDeleteUser(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	k1 := mustLink(t, a, u.ID)
	k2 := mustLink(t, a, u.ID)
	s1 := mustCreateSession(t, a, u.ID)
	s2 := mustCreateSession(t, a, u.ID)

	bystander := mustCreateUser(t, a)
	bk := mustLink(t, a, bystander.ID)
	bs := mustCreateSession(t, a, bystander.ID)

	require.NoError(t, a.DeleteUser(ctx, u.ID))

	got, err := a.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	byEmail, err := a.GetUserByEmail(ctx, *u.Email)
	require.NoError(t, err)
	assert.Nil(t, byEmail)

	for _, k := range []core.AccountKey{k1, k2} {
		byAccount, err := a.GetUserByAccount(ctx, k)
		require.NoError(t, err)
		assert.Nil(t, byAccount)
	}
	for _, s := range []*core.Session{s1, s2} {
		su, err := a.GetSessionAndUser(ctx, s.SessionToken)
		require.NoError(t, err)
		assert.Nil(t, su)
	}

	// other users are untouched
	owner, err := a.GetUserByAccount(ctx, bk)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, bystander.ID, owner.ID)
	su, err := a.GetSessionAndUser(ctx, bs.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, su)

	// natural keys are free again
	_, err = a.CreateUser(ctx, core.User{Email: u.Email})
	require.NoError(t, err)
}

func testCascadeDeleteIdempotent(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	u := mustCreateUser(t, a)
	mustLink(t, a, u.ID)
	mustCreateSession(t, a, u.ID)

	require.NoError(t, a.DeleteUser(ctx, u.ID))
	require.NoError(t, a.DeleteUser(ctx, u.ID))
	require.NoError(t, a.DeleteUser(ctx, "000000000000000000000000"))
}

func testVerificationTokenSingleUse(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	expires := now().Add(time.Hour)
	identifier := *uniqueEmail()

	created, err := a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: identifier, Token: "tok1", Expires: expires})
	require.NoError(t, err)
	assert.Equal(t, "tok1", created.Token)

	// a different token for the same identifier is unaffected
	_, err = a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: identifier, Token: "tok2", Expires: expires})
	require.NoError(t, err)

	used, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: identifier, Token: "tok1"})
	require.NoError(t, err)
	require.NotNil(t, used)
	assert.Equal(t, identifier, used.Identifier)
	assert.Equal(t, "tok1", used.Token)
	assertSameTime(t, expires, used.Expires)

	again, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: identifier, Token: "tok1"})
	require.NoError(t, err)
	assert.Nil(t, again)

	other, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: identifier, Token: "tok2"})
	require.NoError(t, err)
	require.NotNil(t, other)
}

func testVerificationTokenConcurrentUse(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	key := core.VerificationKey{Identifier: *uniqueEmail(), Token: unique("tok")}
	_, err := a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: key.Identifier, Token: key.Token, Expires: now().Add(time.Hour)})
	require.NoError(t, err)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := a.UseVerificationToken(ctx, key)
			if err != nil {
				t.Errorf("UseVerificationToken() error = %v", err)
				return
			}
			if got != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one caller may consume the token")
}

func testDuplicateVerificationTokenFails(t *testing.T, a core.Adapter) {
	ctx := context.Background()
	v := core.VerificationToken{Identifier: *uniqueEmail(), Token: "dup", Expires: now().Add(time.Hour)}

	_, err := a.CreateVerificationToken(ctx, v)
	require.NoError(t, err)
	_, err = a.CreateVerificationToken(ctx, v)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
}
