package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

// Accounts are stored under their natural key; the per-user SET lists the
// account keys owned by a user for cascading deletes.

func (a *Adapter) LinkAccount(ctx context.Context, acc core.Account) (*core.Account, error) {
	const op = "LinkAccount"
	if err := core.ValidateAccount(op, acc); err != nil {
		return nil, err
	}

	acc.ID = uuid.NewString()
	data, err := encodeAccount(acc)
	if err != nil {
		return nil, core.Fail(op, core.ErrInvalidInput, err)
	}

	accountKey := a.keys.Account(acc.Provider, acc.ProviderAccountID)
	err = a.transact(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, accountKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return core.Fail(op, core.ErrConflict, fmt.Errorf("account %s:%s already linked", acc.Provider, acc.ProviderAccountID))
		}
		ok, err := a.userExists(ctx, tx, acc.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return core.Fail(op, core.ErrInvalidInput, fmt.Errorf("user %s does not exist", acc.UserID))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accountKey, data, 0)
			pipe.SAdd(ctx, a.keys.AccountsOf(acc.UserID), accountKey)
			return nil
		})
		return err
	}, accountKey, a.keys.User(acc.UserID))
	if err != nil {
		return nil, unavailable(op, err)
	}

	return &acc, nil
}

func (a *Adapter) GetAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	const op = "GetAccount"
	acc, err := a.getAccount(ctx, key)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	return acc, nil
}

func (a *Adapter) getAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	data, err := getBytes(ctx, a.client, a.keys.Account(key.Provider, key.ProviderAccountID))
	if err != nil || data == nil {
		return nil, err
	}
	acc, err := decodeAccount(data)
	if err != nil {
		return nil, err
	}
	if acc.Provider != key.Provider || acc.ProviderAccountID != key.ProviderAccountID {
		return nil, nil
	}
	return acc, nil
}

func (a *Adapter) UnlinkAccount(ctx context.Context, key core.AccountKey) error {
	const op = "UnlinkAccount"
	if err := core.ValidateAccountKey(op, key); err != nil {
		return err
	}

	accountKey := a.keys.Account(key.Provider, key.ProviderAccountID)
	acc, err := core.ConsumeOnce(ctx,
		func(ctx context.Context) (*core.Account, error) { return a.getAccount(ctx, key) },
		func(ctx context.Context) (bool, error) {
			n, err := a.client.Del(ctx, accountKey).Result()
			return n > 0, err
		},
	)
	if err != nil {
		return core.Fail(op, kindOf(err), err)
	}
	if acc == nil {
		return nil
	}

	if err := a.client.SRem(ctx, a.keys.AccountsOf(acc.UserID), accountKey).Err(); err != nil {
		return unavailable(op, fmt.Errorf("failed to remove account index: %w", err))
	}
	return nil
}
