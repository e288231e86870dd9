package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/authstore/core"
)

const userColumns = `id, name, email, email_verified, image`

func scanUser(row pgx.Row) (*core.User, error) {
	u := &core.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image); err != nil {
		return nil, err
	}
	if u.EmailVerified != nil {
		t := u.EmailVerified.UTC()
		u.EmailVerified = &t
	}
	return u, nil
}

func (a *Adapter) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	const op = "CreateUser"
	if err := core.ValidateUser(op, u); err != nil {
		return nil, err
	}

	query := `INSERT INTO public.users (name, email, email_verified, image) VALUES ($1, $2, $3, $4) RETURNING ` + userColumns
	created, err := scanUser(a.pool.QueryRow(ctx, query, u.Name, u.Email, u.EmailVerified, u.Image))
	if err != nil {
		return nil, failure(op, err)
	}
	return created, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	return a.queryUser(ctx, "GetUser", `SELECT `+userColumns+` FROM public.users WHERE id = $1`, id)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return a.queryUser(ctx, "GetUserByEmail", `SELECT `+userColumns+` FROM public.users WHERE email = $1`, email)
}

func (a *Adapter) GetUserByAccount(ctx context.Context, key core.AccountKey) (*core.User, error) {
	q := `SELECT u.id, u.name, u.email, u.email_verified, u.image
	      FROM public.users u
	      JOIN public.accounts a ON a.user_id = u.id
	      WHERE a.provider = $1 AND a.provider_account_id = $2`
	return a.queryUser(ctx, "GetUserByAccount", q, key.Provider, key.ProviderAccountID)
}

func (a *Adapter) queryUser(ctx context.Context, op, query string, args ...any) (*core.User, error) {
	u, err := scanUser(a.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(op, err)
	}
	return u, nil
}

func (a *Adapter) UpdateUser(ctx context.Context, patch core.UserPatch) (*core.User, error) {
	const op = "UpdateUser"
	if err := core.ValidateUserPatch(op, patch); err != nil {
		return nil, err
	}

	query, args := buildUserUpdate(patch)
	u, err := scanUser(a.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Fail(op, core.ErrMissingRecord, fmt.Errorf("user %s", patch.ID))
	}
	if err != nil {
		return nil, failure(op, err)
	}
	return u, nil
}

// buildUserUpdate writes only the present patch fields. An empty patch
// reads the row back unchanged.
func buildUserUpdate(p core.UserPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if v, ok := p.Name.Get(); ok {
		add("name", v)
	}
	if v, ok := p.Email.Get(); ok {
		add("email", v)
	}
	if v, ok := p.EmailVerified.Get(); ok {
		add("email_verified", v)
	}
	if v, ok := p.Image.Get(); ok {
		add("image", v)
	}

	args = append(args, p.ID)
	if len(sets) == 0 {
		return fmt.Sprintf(`SELECT %s FROM public.users WHERE id = $1`, userColumns), args
	}
	return fmt.Sprintf(`UPDATE public.users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns), args
}

// DeleteUser relies on ON DELETE CASCADE for accounts and sessions.
func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	const op = "DeleteUser"
	if _, err := a.pool.Exec(ctx, `DELETE FROM public.users WHERE id = $1`, id); err != nil {
		return failure(op, err)
	}
	return nil
}
