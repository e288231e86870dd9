package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lborres/authstore/core"
)

func strPtr(s string) *string { return &s }

// BSON datetimes carry milliseconds, so fixtures use millisecond precision.
var fixtureTime = time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC)

func roundTrip[T any](t *testing.T, in T) T {
	t.Helper()
	data, err := bson.Marshal(in)
	require.NoError(t, err)
	var out T
	require.NoError(t, bson.Unmarshal(data, &out))
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	userID := bson.NewObjectID()

	t.Run("user", func(t *testing.T) {
		in := core.User{ID: userID.Hex(), Name: strPtr("n"), Email: strPtr("e@x.y"), EmailVerified: &fixtureTime, Image: strPtr("i")}
		out := roundTrip(t, toUserDoc(userID, in)).model()
		assert.Equal(t, in, *out)
	})

	t.Run("user without optional fields", func(t *testing.T) {
		in := core.User{ID: userID.Hex()}
		doc := toUserDoc(userID, in)
		raw, err := bson.Marshal(doc)
		require.NoError(t, err)
		_, lookupErr := bson.Raw(raw).LookupErr("email")
		assert.Error(t, lookupErr, "absent email must not be stored so the partial index skips it")
		assert.Equal(t, in, *roundTrip(t, doc).model())
	})

	t.Run("account", func(t *testing.T) {
		id := bson.NewObjectID()
		exp := int64(1700000000)
		in := core.Account{ID: id.Hex(), UserID: userID.Hex(), Type: core.AccountTypeOIDC, Provider: "google", ProviderAccountID: "1", IDToken: strPtr("jwt"), ExpiresAt: &exp}
		out := roundTrip(t, toAccountDoc(id, userID, in)).model()
		assert.Equal(t, in, *out)
	})

	t.Run("session", func(t *testing.T) {
		id := bson.NewObjectID()
		in := core.Session{ID: id.Hex(), SessionToken: "tok", UserID: userID.Hex(), Expires: fixtureTime}
		out := roundTrip(t, toSessionDoc(id, userID, in)).model()
		assert.Equal(t, in, *out)
	})

	t.Run("verification token", func(t *testing.T) {
		in := core.VerificationToken{Identifier: "a@b.c", Token: "t", Expires: fixtureTime}
		out := roundTrip(t, toTokenDoc(in)).model()
		assert.Equal(t, in, *out)
	})
}

func TestParseID(t *testing.T) {
	id := bson.NewObjectID()

	got, ok := parseID(id.Hex())
	assert.True(t, ok)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz", id.Hex() + "00"} {
		_, ok := parseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestUserUpdate(t *testing.T) {
	tests := []struct {
		name  string
		patch core.UserPatch
		want  bson.M
	}{
		{
			name:  "set only",
			patch: core.UserPatch{ID: "x", Name: core.Some(strPtr("n"))},
			want:  bson.M{"$set": bson.M{"name": "n"}},
		},
		{
			name:  "clear email unsets it",
			patch: core.UserPatch{ID: "x", Email: core.Some[*string](nil)},
			want:  bson.M{"$unset": bson.M{"email": ""}},
		},
		{
			name:  "mixed",
			patch: core.UserPatch{ID: "x", Image: core.Some[*string](nil), EmailVerified: core.Some(&fixtureTime)},
			want:  bson.M{"$set": bson.M{"emailVerified": fixtureTime}, "$unset": bson.M{"image": ""}},
		},
		{
			name:  "empty",
			patch: core.UserPatch{ID: "x"},
			want:  bson.M{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userUpdate(tt.patch))
		})
	}
}
