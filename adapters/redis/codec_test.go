package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/authstore/core"
)

func TestCodecRoundTrip(t *testing.T) {
	verified := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	expires := int64(1700000000)

	t.Run("user", func(t *testing.T) {
		in := core.User{ID: "u1", Name: strPtr("n"), Email: strPtr("e@x.y"), EmailVerified: &verified}
		data, err := encodeUser(in)
		require.NoError(t, err)
		out, err := decodeUser(data)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("account", func(t *testing.T) {
		in := core.Account{ID: "a1", UserID: "u1", Type: core.AccountTypeOAuth, Provider: "p", ProviderAccountID: "pid", AccessToken: strPtr("at"), ExpiresAt: &expires}
		data, err := encodeAccount(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"access_token":"at"`)
		out, err := decodeAccount(data)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("session", func(t *testing.T) {
		in := core.Session{ID: "s1", SessionToken: "tok", UserID: "u1", Expires: verified}
		data, err := encodeSession(in)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"expires":"2024-03-01T12:30:00.123456789Z"`)
		out, err := decodeSession(data)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("verification token", func(t *testing.T) {
		in := core.VerificationToken{Identifier: "i", Token: "t", Expires: verified}
		data, err := encodeToken(in)
		require.NoError(t, err)
		out, err := decodeToken(data)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})
}

func TestDecode_Malformed(t *testing.T) {
	_, err := decodeUser([]byte(`{"name":"no id"}`))
	assert.ErrorIs(t, err, core.ErrMalformed)

	_, err = decodeSession([]byte(`{"userId":"u","expires":"not a date"}`))
	assert.ErrorIs(t, err, core.ErrMalformed)

	_, err = decodeAccount([]byte(`[]`))
	assert.ErrorIs(t, err, core.ErrMalformed)

	_, err = decodeToken([]byte(`{"expires":""}`))
	assert.ErrorIs(t, err, core.ErrMalformed)
}
