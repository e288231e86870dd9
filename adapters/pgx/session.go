package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/authstore/core"
)

const sessionColumns = `id, session_token, user_id, expires`

func scanSession(row pgx.Row) (*core.Session, error) {
	s := &core.Session{}
	if err := row.Scan(&s.ID, &s.SessionToken, &s.UserID, &s.Expires); err != nil {
		return nil, err
	}
	s.Expires = s.Expires.UTC()
	return s, nil
}

func (a *Adapter) CreateSession(ctx context.Context, s core.Session) (*core.Session, error) {
	const op = "CreateSession"
	if err := core.ValidateSession(op, s); err != nil {
		return nil, err
	}

	query := `INSERT INTO public.sessions (session_token, user_id, expires) VALUES ($1, $2, $3) RETURNING ` + sessionColumns
	created, err := scanSession(a.pool.QueryRow(ctx, query, s.SessionToken, s.UserID, s.Expires))
	if err != nil {
		return nil, failure(op, err)
	}
	return created, nil
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.SessionAndUser, error) {
	const op = "GetSessionAndUser"
	query := `SELECT s.id, s.session_token, s.user_id, s.expires, u.id, u.name, u.email, u.email_verified, u.image
	          FROM public.sessions s
	          JOIN public.users u ON u.id = s.user_id
	          WHERE s.session_token = $1`

	s := &core.Session{}
	u := &core.User{}
	err := a.pool.QueryRow(ctx, query, sessionToken).Scan(
		&s.ID, &s.SessionToken, &s.UserID, &s.Expires,
		&u.ID, &u.Name, &u.Email, &u.EmailVerified, &u.Image,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(op, err)
	}

	s.Expires = s.Expires.UTC()
	if u.EmailVerified != nil {
		t := u.EmailVerified.UTC()
		u.EmailVerified = &t
	}
	return &core.SessionAndUser{Session: s, User: u}, nil
}

func (a *Adapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	const op = "UpdateSession"
	if err := core.ValidateSessionPatch(op, patch); err != nil {
		return nil, err
	}

	query, args := buildSessionUpdate(patch)
	s, err := scanSession(a.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(op, err)
	}
	return s, nil
}

func buildSessionUpdate(p core.SessionPatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	if v, ok := p.UserID.Get(); ok {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if v, ok := p.Expires.Get(); ok {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("expires = $%d", len(args)))
	}

	args = append(args, p.SessionToken)
	if len(sets) == 0 {
		return fmt.Sprintf(`SELECT %s FROM public.sessions WHERE session_token = $1`, sessionColumns), args
	}
	return fmt.Sprintf(`UPDATE public.sessions SET %s WHERE session_token = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), sessionColumns), args
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	const op = "DeleteSession"
	if _, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE session_token = $1`, sessionToken); err != nil {
		return failure(op, err)
	}
	return nil
}
