package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, v core.VerificationToken) (*core.VerificationToken, error) {
	const op = "CreateVerificationToken"
	if err := core.ValidateVerificationToken(op, v); err != nil {
		return nil, err
	}

	_, err := a.pool.Exec(ctx, `INSERT INTO public.verification_tokens (identifier, token, expires) VALUES ($1, $2, $3)`,
		v.Identifier, v.Token, v.Expires)
	if err != nil {
		return nil, failure(op, err)
	}
	return &v, nil
}

// UseVerificationToken deletes and returns the row in one statement, so only
// one of several concurrent callers gets it.
func (a *Adapter) UseVerificationToken(ctx context.Context, key core.VerificationKey) (*core.VerificationToken, error) {
	const op = "UseVerificationToken"
	if err := core.ValidateVerificationKey(op, key); err != nil {
		return nil, err
	}

	v := &core.VerificationToken{}
	err := a.pool.QueryRow(ctx,
		`DELETE FROM public.verification_tokens WHERE identifier = $1 AND token = $2 RETURNING identifier, token, expires`,
		key.Identifier, key.Token,
	).Scan(&v.Identifier, &v.Token, &v.Expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(op, err)
	}
	v.Expires = v.Expires.UTC()
	return v, nil
}
