package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/authstore/adaptertest"
	"github.com/lborres/authstore/core"
)

func newTestAdapter(t *testing.T, opts Options) (*miniredis.Miniredis, *Adapter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return m, New(client, opts)
}

func strPtr(s string) *string { return &s }

func TestAdapterConformance(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) core.Adapter {
		_, a := newTestAdapter(t, Options{})
		return a
	})
}

func TestAdapterConformance_WithPrefixAndTTL(t *testing.T) {
	adaptertest.Run(t, func(t *testing.T) core.Adapter {
		_, a := newTestAdapter(t, Options{BaseKeyPrefix: "app2:", ExpireWithTTL: true})
		return a
	})
}

// Requirement: every key is written under the base prefix
func TestKeysUseBasePrefix(t *testing.T) {
	m, a := newTestAdapter(t, Options{BaseKeyPrefix: "app2:"})
	ctx := context.Background()

	u, err := a.CreateUser(ctx, core.User{Email: strPtr("prefix@example.com")})
	require.NoError(t, err)
	_, err = a.LinkAccount(ctx, core.Account{UserID: u.ID, Type: core.AccountTypeOIDC, Provider: "google", ProviderAccountID: "g1"})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, core.Session{SessionToken: "tok", UserID: u.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	assert.True(t, m.Exists("app2:user:"+u.ID))
	assert.True(t, m.Exists("app2:user:email:prefix@example.com"))
	assert.True(t, m.Exists("app2:user:account:google:g1"))
	assert.True(t, m.Exists("app2:user:account:by-user-id:"+u.ID))
	assert.True(t, m.Exists("app2:user:session:tok"))
	assert.True(t, m.Exists("app2:user:session:by-user-id:"+u.ID))

	for _, k := range m.Keys() {
		assert.Contains(t, k, "app2:", "key %q escaped the prefix", k)
	}
}

// Requirement: a pointer to a deleted user must not block the email
func TestCreateUser_StaleEmailPointer(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	require.NoError(t, m.Set("user:email:ghost@example.com", "missing-user-id"))

	u, err := a.CreateUser(ctx, core.User{Email: strPtr("ghost@example.com")})
	require.NoError(t, err)

	got, err := a.GetUserByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestGetUserByEmail_StalePointerIsMiss(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	require.NoError(t, m.Set("user:email:ghost@example.com", "missing-user-id"))

	got, err := a.GetUserByEmail(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpireWithTTL(t *testing.T) {
	m, a := newTestAdapter(t, Options{ExpireWithTTL: true})
	ctx := context.Background()
	u, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)

	_, err = a.CreateSession(ctx, core.Session{SessionToken: "ttl", UserID: u.ID, Expires: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	_, err = a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: "a@b.c", Token: "t", Expires: time.Now().Add(time.Minute)})
	require.NoError(t, err)

	assert.Greater(t, m.TTL("user:session:ttl"), time.Duration(0))
	assert.Greater(t, m.TTL("user:token:a@b.c:t"), time.Duration(0))
	assert.Equal(t, time.Duration(0), m.TTL("user:"+u.ID), "users never expire")

	m.FastForward(2 * time.Minute)

	su, err := a.GetSessionAndUser(ctx, "ttl")
	require.NoError(t, err)
	assert.Nil(t, su)

	v, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: "a@b.c", Token: "t"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestWithoutTTL_RecordsPersist(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	u, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, core.Session{SessionToken: "keep", UserID: u.ID, Expires: time.Now().Add(time.Minute)})
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), m.TTL("user:session:keep"))
}

// Requirement: malformed records are OperationFailures, never "not found"
func TestMalformedRecord(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	require.NoError(t, m.Set("user:bad", "{not json"))
	require.NoError(t, m.Set("user:session:bad", `{"id":"1","sessionToken":"bad","userId":"u","expires":"yesterday"}`))

	u, err := a.GetUser(context.Background(), "bad")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, core.ErrMalformed)
	assert.True(t, core.IsOperationFailure(err))

	su, err := a.GetSessionAndUser(context.Background(), "bad")
	assert.Nil(t, su)
	assert.ErrorIs(t, err, core.ErrMalformed)

	// the broken session can still be deleted
	require.NoError(t, a.DeleteSession(context.Background(), "bad"))
	assert.False(t, m.Exists("user:session:bad"))
}

// Requirement: a backend outage is an OperationFailure, never "not found"
func TestBackendUnavailable(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	m.Close()
	ctx := context.Background()

	u, err := a.GetUser(ctx, "any")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, core.ErrUnavailable)

	u, err = a.GetUserByEmail(ctx, "a@b.c")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, core.ErrUnavailable)

	su, err := a.GetSessionAndUser(ctx, "tok")
	assert.Nil(t, su)
	assert.ErrorIs(t, err, core.ErrUnavailable)

	err = a.DeleteUser(ctx, "any")
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestConsumeTokenFallback(t *testing.T) {
	_, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	_, err := a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: "id", Token: "tok", Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	key := core.VerificationKey{Identifier: "id", Token: "tok"}
	first, err := a.consumeToken(ctx, "UseVerificationToken", key)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "tok", first.Token)

	second, err := a.consumeToken(ctx, "UseVerificationToken", key)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestIsUnknownCommand(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{redis.Nil, false},
		{assert.AnError, false},
		{errString("ERR unknown command 'getdel', with args beginning with: "), true},
		{errString("ERR unknown or disabled command 'GETDEL'"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isUnknownCommand(tt.err), "%v", tt.err)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

// Requirement: an index entry naming another user's account is not deleted
func TestCascade_SkipsForeignIndexEntries(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()

	victim, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	owner, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	_, err = a.LinkAccount(ctx, core.Account{UserID: owner.ID, Type: core.AccountTypeOAuth, Provider: "github", ProviderAccountID: "1"})
	require.NoError(t, err)

	_, err = m.SAdd("user:account:by-user-id:"+victim.ID, "user:account:github:1")
	require.NoError(t, err)

	require.NoError(t, a.DeleteUser(ctx, victim.ID))

	got, err := a.GetUserByAccount(ctx, core.AccountKey{Provider: "github", ProviderAccountID: "1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.ID)
}

// Requirement: a cascade interrupted after the user record was removed can be retried
func TestCascade_RetryWithoutUserRecord(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()

	u, err := a.CreateUser(ctx, core.User{Email: strPtr("retry@example.com")})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, core.Session{SessionToken: "orphan", UserID: u.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	m.Del("user:" + u.ID)
	require.NoError(t, a.DeleteUser(ctx, u.ID))

	assert.False(t, m.Exists("user:session:orphan"))
	assert.False(t, m.Exists("user:session:by-user-id:"+u.ID))
}

func TestUpdateSession_MovesIndexOnOwnerChange(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	first, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	second, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, core.Session{SessionToken: "moving", UserID: first.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = a.UpdateSession(ctx, core.SessionPatch{SessionToken: "moving", UserID: core.Some(second.ID)})
	require.NoError(t, err)

	members, err := m.Members("user:session:by-user-id:" + second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"moving"}, members)
	assert.False(t, m.Exists("user:session:by-user-id:"+first.ID))
}

func TestLinkAccount_UnknownUser(t *testing.T) {
	_, a := newTestAdapter(t, Options{})
	_, err := a.LinkAccount(context.Background(), core.Account{UserID: "nobody", Type: core.AccountTypeOAuth, Provider: "github", ProviderAccountID: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCreateSession_UnknownUser(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	_, err := a.CreateSession(context.Background(), core.Session{SessionToken: "lost", UserID: "nobody", Expires: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.False(t, m.Exists("user:session:lost"))
}

func TestPair(t *testing.T) {
	tests := []struct {
		name          string
		first, second string
		want          string
	}{
		{"plain parts are unchanged", "github", "42", "github:42"},
		{"colon in first part", "a:b", "c", `a\:b:c`},
		{"colon in second part", "a", "b:c", `a:b\:c`},
		{"backslash is escaped", `a\`, "b", `a\\:b`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pair(tt.first, tt.second))
		})
	}

	assert.NotEqual(t, pair("a:b", "c"), pair("a", "b:c"))
	assert.NotEqual(t, pair(`a\`, ":b"), pair(`a\:`, "b"))
}

// Requirement: provider pairs containing ":" never share a key
func TestAccountKeysWithColons(t *testing.T) {
	_, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	first, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)
	second, err := a.CreateUser(ctx, core.User{})
	require.NoError(t, err)

	_, err = a.LinkAccount(ctx, core.Account{UserID: first.ID, Type: core.AccountTypeOAuth, Provider: "a:b", ProviderAccountID: "c"})
	require.NoError(t, err)

	got, err := a.GetUserByAccount(ctx, core.AccountKey{Provider: "a", ProviderAccountID: "b:c"})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = a.LinkAccount(ctx, core.Account{UserID: second.ID, Type: core.AccountTypeOAuth, Provider: "a", ProviderAccountID: "b:c"})
	require.NoError(t, err)

	got, err = a.GetUserByAccount(ctx, core.AccountKey{Provider: "a:b", ProviderAccountID: "c"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = a.GetUserByAccount(ctx, core.AccountKey{Provider: "a", ProviderAccountID: "b:c"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

// Requirement: verification tokens with ":" in either part are distinct
func TestVerificationKeysWithColons(t *testing.T) {
	_, a := newTestAdapter(t, Options{})
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	_, err := a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: "x:y", Token: "z", Expires: expires})
	require.NoError(t, err)

	v, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: "x", Token: "y:z"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = a.CreateVerificationToken(ctx, core.VerificationToken{Identifier: "x", Token: "y:z", Expires: expires})
	require.NoError(t, err)

	v, err = a.UseVerificationToken(ctx, core.VerificationKey{Identifier: "x:y", Token: "z"})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "x:y", v.Identifier)
	assert.Equal(t, "z", v.Token)
}

// Requirement: a record stored under a key it does not belong to is a miss
func TestRecordKeyMismatchIsMiss(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()

	data, err := encodeAccount(core.Account{ID: "1", UserID: "u", Type: core.AccountTypeOAuth, Provider: "gitlab", ProviderAccountID: "1"})
	require.NoError(t, err)
	require.NoError(t, m.Set(a.keys.Account("github", "1"), string(data)))

	acc, err := a.GetAccount(ctx, core.AccountKey{Provider: "github", ProviderAccountID: "1"})
	require.NoError(t, err)
	assert.Nil(t, acc)

	data, err = encodeToken(core.VerificationToken{Identifier: "other", Token: "t", Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, m.Set(a.keys.VerificationToken("id", "t"), string(data)))

	v, err := a.UseVerificationToken(ctx, core.VerificationKey{Identifier: "id", Token: "t"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

// failDel fails the first DEL of key and passes every other command through.
type failDel struct {
	key    string
	failed bool
}

func (h *failDel) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failDel) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *failDel) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if !h.failed && cmd.Name() == "del" && len(args) == 2 && args[1] == h.key {
			h.failed = true
			cmd.SetErr(errString("connection reset"))
			return cmd.Err()
		}
		return next(ctx, cmd)
	}
}

// Requirement: a cascade that failed on a child record converges when retried
func TestCascade_RetryAfterFailedChildDelete(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()

	u, err := a.CreateUser(ctx, core.User{Email: strPtr("partial@example.com")})
	require.NoError(t, err)
	_, err = a.LinkAccount(ctx, core.Account{UserID: u.ID, Type: core.AccountTypeOAuth, Provider: "github", ProviderAccountID: "42"})
	require.NoError(t, err)
	_, err = a.LinkAccount(ctx, core.Account{UserID: u.ID, Type: core.AccountTypeOIDC, Provider: "google", ProviderAccountID: "7"})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, core.Session{SessionToken: "partial", UserID: u.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	hook := &failDel{key: "user:account:github:42"}
	a.client.AddHook(hook)

	err = a.DeleteUser(ctx, u.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnavailable)
	require.True(t, hook.failed)

	// Step 1: the failed child is still indexed and the user survives
	assert.True(t, m.Exists("user:account:github:42"))
	members, err := m.Members("user:account:by-user-id:" + u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:account:github:42"}, members)
	assert.True(t, m.Exists("user:"+u.ID))
	assert.False(t, m.Exists("user:account:google:7"))
	assert.False(t, m.Exists("user:session:partial"))

	// Step 2: the retry finishes the job
	require.NoError(t, a.DeleteUser(ctx, u.ID))

	for _, k := range []string{
		"user:" + u.ID,
		"user:email:partial@example.com",
		"user:account:github:42",
		"user:account:google:7",
		"user:account:by-user-id:" + u.ID,
		"user:session:partial",
		"user:session:by-user-id:" + u.ID,
	} {
		assert.False(t, m.Exists(k), "key %q survived the retry", k)
	}

	// Step 3: the provider pair can be linked again
	other, err := a.CreateUser(ctx, core.User{Email: strPtr("partial@example.com")})
	require.NoError(t, err)
	_, err = a.LinkAccount(ctx, core.Account{UserID: other.ID, Type: core.AccountTypeOAuth, Provider: "github", ProviderAccountID: "42"})
	require.NoError(t, err)
}

// Requirement: a pointer left on a user that moved to another address does
// not block the address
func TestEmailPointerToMovedUser(t *testing.T) {
	m, a := newTestAdapter(t, Options{})
	ctx := context.Background()

	mover, err := a.CreateUser(ctx, core.User{Email: strPtr("new@example.com")})
	require.NoError(t, err)
	require.NoError(t, m.Set("user:email:old@example.com", mover.ID))
	require.NoError(t, m.Set("user:email:older@example.com", mover.ID))

	got, err := a.GetUserByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	claimant, err := a.CreateUser(ctx, core.User{Email: strPtr("old@example.com")})
	require.NoError(t, err)

	updated, err := a.UpdateUser(ctx, core.UserPatch{ID: claimant.ID, Email: core.Some(strPtr("older@example.com"))})
	require.NoError(t, err)
	assert.Equal(t, "older@example.com", *updated.Email)

	got, err = a.GetUserByEmail(ctx, "older@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, claimant.ID, got.ID)
}
