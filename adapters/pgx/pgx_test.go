package pgx

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/lborres/authstore/core"
)

func strPtr(s string) *string { return &s }

func TestFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, core.ErrConflict},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: codeUniqueViolation}), core.ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: codeForeignKeyViolation}, core.ErrInvalidInput},
		{"not null violation", &pgconn.PgError{Code: codeNotNullViolation}, core.ErrInvalidInput},
		{"other postgres error", &pgconn.PgError{Code: "57P01"}, core.ErrUnavailable},
		{"connection error", errors.New("dial tcp: connection refused"), core.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := failure("CreateUser", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err, "cause must stay reachable")
			assert.True(t, core.IsOperationFailure(err))
		})
	}
}

func TestBuildUserUpdate(t *testing.T) {
	verified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		patch     core.UserPatch
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "single field",
			patch:     core.UserPatch{ID: "u1", Name: core.Some(strPtr("n"))},
			wantQuery: `UPDATE public.users SET name = $1 WHERE id = $2 RETURNING ` + userColumns,
			wantArgs:  []any{strPtr("n"), "u1"},
		},
		{
			name:      "clear and set",
			patch:     core.UserPatch{ID: "u1", Email: core.Some[*string](nil), EmailVerified: core.Some(&verified)},
			wantQuery: `UPDATE public.users SET email = $1, email_verified = $2 WHERE id = $3 RETURNING ` + userColumns,
			wantArgs:  []any{(*string)(nil), &verified, "u1"},
		},
		{
			name:      "empty patch reads the row",
			patch:     core.UserPatch{ID: "u1"},
			wantQuery: `SELECT ` + userColumns + ` FROM public.users WHERE id = $1`,
			wantArgs:  []any{"u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildUserUpdate(tt.patch)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSessionUpdate(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildSessionUpdate(core.SessionPatch{SessionToken: "tok", Expires: core.Some(expires)})
	assert.Equal(t, `UPDATE public.sessions SET expires = $1 WHERE session_token = $2 RETURNING `+sessionColumns, query)
	assert.Equal(t, []any{expires, "tok"}, args)

	query, args = buildSessionUpdate(core.SessionPatch{SessionToken: "tok", UserID: core.Some("u2"), Expires: core.Some(expires)})
	assert.Equal(t, `UPDATE public.sessions SET user_id = $1, expires = $2 WHERE session_token = $3 RETURNING `+sessionColumns, query)
	assert.Equal(t, []any{"u2", expires, "tok"}, args)

	query, args = buildSessionUpdate(core.SessionPatch{SessionToken: "tok"})
	assert.Equal(t, `SELECT `+sessionColumns+` FROM public.sessions WHERE session_token = $1`, query)
	assert.Equal(t, []any{"tok"}, args)
}
