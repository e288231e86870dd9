package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	const op = "CreateUser"
	if err := core.ValidateUser(op, u); err != nil {
		return nil, err
	}

	u.ID = uuid.NewString()
	data, err := encodeUser(u)
	if err != nil {
		return nil, core.Fail(op, core.ErrInvalidInput, err)
	}

	if u.Email == nil {
		if err := a.client.Set(ctx, a.keys.User(u.ID), data, 0).Err(); err != nil {
			return nil, unavailable(op, err)
		}
		return &u, nil
	}

	emailKey := a.keys.Email(*u.Email)
	err = a.transact(ctx, func(tx *redis.Tx) error {
		owner, err := a.emailOwner(ctx, tx, *u.Email)
		if err != nil {
			return err
		}
		if owner != "" {
			return core.Fail(op, core.ErrConflict, fmt.Errorf("email already used by user %s", owner))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, a.keys.User(u.ID), data, 0)
			pipe.Set(ctx, emailKey, u.ID, 0)
			return nil
		})
		return err
	}, emailKey)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}

	return &u, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	const op = "GetUser"
	if id == "" {
		return nil, nil
	}
	u, err := a.getUser(ctx, a.client, id)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	return u, nil
}

func (a *Adapter) getUser(ctx context.Context, c getter, id string) (*core.User, error) {
	data, err := getBytes(ctx, c, a.keys.User(id))
	if err != nil || data == nil {
		return nil, err
	}
	return decodeUser(data)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	const op = "GetUserByEmail"
	id, err := a.client.Get(ctx, a.keys.Email(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(op, err)
	}

	u, err := a.getUser(ctx, a.client, id)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	if u == nil || u.Email == nil || *u.Email != email {
		// stale pointer
		return nil, nil
	}
	return u, nil
}

func (a *Adapter) GetUserByAccount(ctx context.Context, key core.AccountKey) (*core.User, error) {
	const op = "GetUserByAccount"
	acc, err := a.getAccount(ctx, key)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	if acc == nil {
		return nil, nil
	}

	u, err := a.getUser(ctx, a.client, acc.UserID)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	return u, nil
}

func (a *Adapter) UpdateUser(ctx context.Context, patch core.UserPatch) (*core.User, error) {
	const op = "UpdateUser"
	if err := core.ValidateUserPatch(op, patch); err != nil {
		return nil, err
	}

	userKey := a.keys.User(patch.ID)
	var updated *core.User
	err := a.transact(ctx, func(tx *redis.Tx) error {
		current, err := a.getUser(ctx, tx, patch.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return core.Fail(op, core.ErrMissingRecord, fmt.Errorf("user %s", patch.ID))
		}

		oldEmail := current.Email
		next := *current
		patch.Apply(&next)
		data, err := encodeUser(next)
		if err != nil {
			return core.Fail(op, core.ErrInvalidInput, err)
		}

		emailChanged := !sameString(oldEmail, next.Email)
		var dropOld bool
		if emailChanged {
			if next.Email != nil {
				if err := tx.Watch(ctx, a.keys.Email(*next.Email)).Err(); err != nil {
					return err
				}
				owner, err := a.emailOwner(ctx, tx, *next.Email)
				if err != nil {
					return err
				}
				if owner != "" && owner != patch.ID {
					return core.Fail(op, core.ErrConflict, fmt.Errorf("email already used by user %s", owner))
				}
			}
			if oldEmail != nil {
				oldKey := a.keys.Email(*oldEmail)
				if err := tx.Watch(ctx, oldKey).Err(); err != nil {
					return err
				}
				ptr, err := tx.Get(ctx, oldKey).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return err
				}
				dropOld = ptr == patch.ID
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey, data, 0)
			if dropOld {
				pipe.Del(ctx, a.keys.Email(*oldEmail))
			}
			if emailChanged && next.Email != nil {
				pipe.Set(ctx, a.keys.Email(*next.Email), patch.ID, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = &next
		return nil
	}, userKey)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}

	return updated, nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	return core.CascadeDeleteUser(ctx, a, id)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// kindOf classifies errors that are not yet an OperationFailure.
func kindOf(err error) error {
	if errors.Is(err, core.ErrMalformed) {
		return core.ErrMalformed
	}
	return core.ErrUnavailable
}
