package cache

import (
	"context"
	"errors"

	"github.com/lborres/authstore/core"
)

// Adapter serves GetSessionAndUser from an InMemoryCache and invalidates
// entries on every write that could make them stale.
type Adapter struct {
	core.Adapter
	cache *InMemoryCache
}

type readerAdapter struct {
	*Adapter
	core.AccountReader
}

// Wrap returns inner with a session read cache. The result implements
// core.AccountReader when inner does.
func Wrap(inner core.Adapter, c *InMemoryCache) core.Adapter {
	a := &Adapter{Adapter: inner, cache: c}
	if r, ok := inner.(core.AccountReader); ok {
		return &readerAdapter{Adapter: a, AccountReader: r}
	}
	return a
}

func (a *Adapter) Cache() *InMemoryCache {
	return a.cache
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.SessionAndUser, error) {
	v, err := a.cache.Get(sessionToken)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, core.ErrCacheNotFound) {
		return nil, err
	}

	v, err = a.Adapter.GetSessionAndUser(ctx, sessionToken)
	if err != nil || v == nil {
		return v, err
	}
	a.cache.Set(sessionToken, v)
	return v, nil
}

func (a *Adapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	a.cache.Delete(patch.SessionToken)
	s, err := a.Adapter.UpdateSession(ctx, patch)
	a.cache.Delete(patch.SessionToken)
	return s, err
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	a.cache.Delete(sessionToken)
	return a.Adapter.DeleteSession(ctx, sessionToken)
}

func (a *Adapter) UpdateUser(ctx context.Context, patch core.UserPatch) (*core.User, error) {
	u, err := a.Adapter.UpdateUser(ctx, patch)
	a.cache.DeleteByUser(patch.ID)
	return u, err
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	err := a.Adapter.DeleteUser(ctx, id)
	a.cache.DeleteByUser(id)
	return err
}
