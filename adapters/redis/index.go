package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// getBytes returns nil when key does not exist.
func getBytes(ctx context.Context, c getter, key string) ([]byte, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// emailOwner resolves an email pointer to the id of the user that holds it.
// A pointer whose user record is gone, or whose user has since moved to
// another address, is stale and reported as unowned so it never blocks a
// new claim on the address.
func (a *Adapter) emailOwner(ctx context.Context, c getter, email string) (string, error) {
	id, err := c.Get(ctx, a.keys.Email(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	u, err := a.getUser(ctx, c, id)
	if err != nil {
		return "", err
	}
	if u == nil || u.Email == nil || *u.Email != email {
		return "", nil
	}
	return id, nil
}

// userExists is used before writing records that reference a user.
func (a *Adapter) userExists(ctx context.Context, c getter, id string) (bool, error) {
	n, err := c.Exists(ctx, a.keys.User(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
