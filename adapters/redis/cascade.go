package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

// PlanUserDeletion lists the accounts and sessions owned by a user followed
// by the user record. It works from the per-user sets, which only lose an
// entry once its record is deleted, so a cascade that failed part way can
// be retried until it converges.
func (a *Adapter) PlanUserDeletion(ctx context.Context, userID string) ([]core.Deletion, error) {
	accountKeys, err := a.client.SMembers(ctx, a.keys.AccountsOf(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	tokens, err := a.client.SMembers(ctx, a.keys.SessionsOf(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	u, err := a.getUser(ctx, a.client, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	plan := make([]core.Deletion, 0, len(accountKeys)+len(tokens)+1)
	for _, key := range accountKeys {
		plan = append(plan, a.deleteOwned("account "+key, key, a.keys.AccountsOf(userID), key, userID, func(data []byte) (string, error) {
			acc, err := decodeAccount(data)
			if err != nil {
				return "", err
			}
			return acc.UserID, nil
		}))
	}
	for _, token := range tokens {
		plan = append(plan, a.deleteOwned("session", a.keys.Session(token), a.keys.SessionsOf(userID), token, userID, func(data []byte) (string, error) {
			s, err := decodeSession(data)
			if err != nil {
				return "", err
			}
			return s.UserID, nil
		}))
	}

	var email *string
	if u != nil {
		email = u.Email
	}
	plan = append(plan, a.deleteUserRecord(userID, email))

	return plan, nil
}

// deleteOwned removes key only while it still belongs to userID, then drops
// member from the owner's index. An index entry left behind by an interrupted
// unlink may name a key that was since linked to someone else. The entry is
// kept when the delete fails so a retried cascade finds the record again.
func (a *Adapter) deleteOwned(target, key, index, member, userID string, ownerOf func([]byte) (string, error)) core.Deletion {
	return core.Deletion{
		Target: target,
		Run: func(ctx context.Context) error {
			data, err := getBytes(ctx, a.client, key)
			if err != nil {
				return err
			}
			if data != nil {
				owner, err := ownerOf(data)
				if err != nil || owner == userID {
					if err := a.client.Del(ctx, key).Err(); err != nil {
						return err
					}
				}
			}
			return a.client.SRem(ctx, index, member).Err()
		},
	}
}

// deleteUserRecord removes the user and its email pointer once both index
// sets are empty. While a child record survives, the user stays so that the
// next DeleteUser can finish the cascade.
func (a *Adapter) deleteUserRecord(userID string, email *string) core.Deletion {
	userKey := a.keys.User(userID)
	watch := []string{userKey, a.keys.AccountsOf(userID), a.keys.SessionsOf(userID)}
	if email != nil {
		watch = append(watch, a.keys.Email(*email))
	}

	return core.Deletion{
		Target: "user " + userID,
		Run: func(ctx context.Context) error {
			return a.transact(ctx, func(tx *redis.Tx) error {
				accounts, err := tx.SCard(ctx, a.keys.AccountsOf(userID)).Result()
				if err != nil {
					return err
				}
				sessions, err := tx.SCard(ctx, a.keys.SessionsOf(userID)).Result()
				if err != nil {
					return err
				}
				if accounts > 0 || sessions > 0 {
					return fmt.Errorf("%d accounts and %d sessions still reference the user", accounts, sessions)
				}

				var dropEmail bool
				if email != nil {
					owner, err := tx.Get(ctx, a.keys.Email(*email)).Result()
					if err != nil && !errors.Is(err, redis.Nil) {
						return err
					}
					dropEmail = owner == userID
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					if dropEmail {
						pipe.Del(ctx, a.keys.Email(*email))
					}
					pipe.Del(ctx, userKey)
					return nil
				})
				return err
			}, watch...)
		},
	}
}
