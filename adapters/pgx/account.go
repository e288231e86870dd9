package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lborres/authstore/core"
)

const accountColumns = `id, user_id, type, provider, provider_account_id, refresh_token, access_token, expires_at, token_type, scope, id_token, session_state`

func scanAccount(row pgx.Row) (*core.Account, error) {
	acc := &core.Account{}
	var accType string
	err := row.Scan(
		&acc.ID, &acc.UserID, &accType, &acc.Provider, &acc.ProviderAccountID,
		&acc.RefreshToken, &acc.AccessToken, &acc.ExpiresAt, &acc.TokenType, &acc.Scope, &acc.IDToken, &acc.SessionState,
	)
	if err != nil {
		return nil, err
	}
	acc.Type = core.AccountType(accType)
	return acc, nil
}

func (a *Adapter) LinkAccount(ctx context.Context, acc core.Account) (*core.Account, error) {
	const op = "LinkAccount"
	if err := core.ValidateAccount(op, acc); err != nil {
		return nil, err
	}

	query := `INSERT INTO public.accounts (user_id, type, provider, provider_account_id, refresh_token, access_token, expires_at, token_type, scope, id_token, session_state)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING ` + accountColumns

	linked, err := scanAccount(a.pool.QueryRow(ctx, query,
		acc.UserID, string(acc.Type), acc.Provider, acc.ProviderAccountID,
		acc.RefreshToken, acc.AccessToken, acc.ExpiresAt, acc.TokenType, acc.Scope, acc.IDToken, acc.SessionState,
	))
	if err != nil {
		return nil, failure(op, err)
	}
	return linked, nil
}

func (a *Adapter) GetAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	const op = "GetAccount"
	query := `SELECT ` + accountColumns + ` FROM public.accounts WHERE provider = $1 AND provider_account_id = $2`

	acc, err := scanAccount(a.pool.QueryRow(ctx, query, key.Provider, key.ProviderAccountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, failure(op, err)
	}
	return acc, nil
}

func (a *Adapter) UnlinkAccount(ctx context.Context, key core.AccountKey) error {
	const op = "UnlinkAccount"
	if err := core.ValidateAccountKey(op, key); err != nil {
		return err
	}

	_, err := a.pool.Exec(ctx, `DELETE FROM public.accounts WHERE provider = $1 AND provider_account_id = $2`, key.Provider, key.ProviderAccountID)
	if err != nil {
		return failure(op, err)
	}
	return nil
}
