package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, v core.VerificationToken) (*core.VerificationToken, error) {
	const op = "CreateVerificationToken"
	if err := core.ValidateVerificationToken(op, v); err != nil {
		return nil, err
	}

	data, err := encodeToken(v)
	if err != nil {
		return nil, core.Fail(op, core.ErrInvalidInput, err)
	}

	args := redis.SetArgs{Mode: "NX"}
	if a.opts.ExpireWithTTL && v.Expires.After(time.Now()) {
		args.ExpireAt = v.Expires
	}
	err = a.client.SetArgs(ctx, a.keys.VerificationToken(v.Identifier, v.Token), data, args).Err()
	if errors.Is(err, redis.Nil) {
		return nil, core.Fail(op, core.ErrConflict, errors.New("verification token already exists"))
	}
	if err != nil {
		return nil, unavailable(op, err)
	}

	return &v, nil
}

// UseVerificationToken consumes the token with GETDEL. Servers older than
// 6.2 fall back to a GET followed by a counted DEL.
func (a *Adapter) UseVerificationToken(ctx context.Context, key core.VerificationKey) (*core.VerificationToken, error) {
	const op = "UseVerificationToken"
	if err := core.ValidateVerificationKey(op, key); err != nil {
		return nil, err
	}

	tokenKey := a.keys.VerificationToken(key.Identifier, key.Token)
	data, err := a.client.GetDel(ctx, tokenKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case isUnknownCommand(err):
		return a.consumeToken(ctx, op, key)
	case err != nil:
		return nil, unavailable(op, err)
	}

	v, err := decodeToken(data)
	if err != nil {
		return nil, core.Fail(op, core.ErrMalformed, err)
	}
	if !matchesKey(v, key) {
		return nil, nil
	}
	return v, nil
}

func (a *Adapter) consumeToken(ctx context.Context, op string, key core.VerificationKey) (*core.VerificationToken, error) {
	tokenKey := a.keys.VerificationToken(key.Identifier, key.Token)
	v, err := core.ConsumeOnce(ctx,
		func(ctx context.Context) (*core.VerificationToken, error) {
			data, err := getBytes(ctx, a.client, tokenKey)
			if err != nil || data == nil {
				return nil, err
			}
			v, err := decodeToken(data)
			if err != nil || !matchesKey(v, key) {
				return nil, err
			}
			return v, nil
		},
		func(ctx context.Context) (bool, error) {
			n, err := a.client.Del(ctx, tokenKey).Result()
			return n > 0, err
		},
	)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	return v, nil
}

func matchesKey(v *core.VerificationToken, key core.VerificationKey) bool {
	return v.Identifier == key.Identifier && v.Token == key.Token
}
