package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateSession(ctx context.Context, s core.Session) (*core.Session, error) {
	const op = "CreateSession"
	if err := core.ValidateSession(op, s); err != nil {
		return nil, err
	}

	s.ID = uuid.NewString()
	data, err := encodeSession(s)
	if err != nil {
		return nil, core.Fail(op, core.ErrInvalidInput, err)
	}

	sessionKey := a.keys.Session(s.SessionToken)
	err = a.transact(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, sessionKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return core.Fail(op, core.ErrConflict, errors.New("session token already in use"))
		}
		ok, err := a.userExists(ctx, tx, s.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return core.Fail(op, core.ErrInvalidInput, fmt.Errorf("user %s does not exist", s.UserID))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey, data, 0)
			a.expireAt(ctx, pipe, sessionKey, s.Expires)
			pipe.SAdd(ctx, a.keys.SessionsOf(s.UserID), s.SessionToken)
			return nil
		})
		return err
	}, sessionKey, a.keys.User(s.UserID))
	if err != nil {
		return nil, unavailable(op, err)
	}

	return &s, nil
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.SessionAndUser, error) {
	const op = "GetSessionAndUser"
	s, err := a.getSession(ctx, a.client, sessionToken)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	if s == nil {
		return nil, nil
	}

	u, err := a.getUser(ctx, a.client, s.UserID)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}
	if u == nil {
		return nil, nil
	}

	return &core.SessionAndUser{Session: s, User: u}, nil
}

func (a *Adapter) getSession(ctx context.Context, c getter, token string) (*core.Session, error) {
	data, err := getBytes(ctx, c, a.keys.Session(token))
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSession(data)
}

func (a *Adapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	const op = "UpdateSession"
	if err := core.ValidateSessionPatch(op, patch); err != nil {
		return nil, err
	}

	sessionKey := a.keys.Session(patch.SessionToken)
	var updated *core.Session
	err := a.transact(ctx, func(tx *redis.Tx) error {
		current, err := a.getSession(ctx, tx, patch.SessionToken)
		if err != nil || current == nil {
			return err
		}

		next := *current
		patch.Apply(&next)
		data, err := encodeSession(next)
		if err != nil {
			return core.Fail(op, core.ErrInvalidInput, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, sessionKey, data, 0)
			a.expireAt(ctx, pipe, sessionKey, next.Expires)
			if next.UserID != current.UserID {
				pipe.SRem(ctx, a.keys.SessionsOf(current.UserID), patch.SessionToken)
				pipe.SAdd(ctx, a.keys.SessionsOf(next.UserID), patch.SessionToken)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = &next
		return nil
	}, sessionKey)
	if err != nil {
		return nil, core.Fail(op, kindOf(err), err)
	}

	return updated, nil
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	const op = "DeleteSession"
	s, err := a.getSession(ctx, a.client, sessionToken)
	if err != nil {
		if !errors.Is(err, core.ErrMalformed) {
			return unavailable(op, err)
		}
		// a malformed record is still removed
		s = nil
	}

	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, a.keys.Session(sessionToken))
		if s != nil {
			pipe.SRem(ctx, a.keys.SessionsOf(s.UserID), sessionToken)
		}
		return nil
	})
	if err != nil {
		return unavailable(op, err)
	}
	return nil
}

// expireAt queues a PEXPIREAT when TTL expiry is enabled. Timestamps already
// in the past are left to the caller's expiry check.
func (a *Adapter) expireAt(ctx context.Context, pipe redis.Pipeliner, key string, at time.Time) {
	if !a.opts.ExpireWithTTL || !at.After(time.Now()) {
		return
	}
	pipe.PExpireAt(ctx, key, at)
}
