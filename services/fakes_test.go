package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redisadapter "github.com/lborres/authstore/adapters/redis"
	"github.com/lborres/authstore/core"
)

var errBackendDown = errors.New("connection refused")

// newTestAdapter returns a real key-value adapter over an in-process server.
func newTestAdapter(t *testing.T) core.Adapter {
	t.Helper()
	m := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return redisadapter.New(client, redisadapter.Options{})
}

// FaultyAdapter wraps an adapter and fails selected verbs with an
// unavailable OperationFailure.
type FaultyAdapter struct {
	core.Adapter
	mu   sync.Mutex
	fail map[string]bool
}

func NewFaultyAdapter(inner core.Adapter) *FaultyAdapter {
	return &FaultyAdapter{Adapter: inner, fail: make(map[string]bool)}
}

func (f *FaultyAdapter) Fail(ops ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range ops {
		f.fail[op] = true
	}
}

func (f *FaultyAdapter) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[op] {
		return core.Fail(op, core.ErrUnavailable, errBackendDown)
	}
	return nil
}

func (f *FaultyAdapter) GetUserByAccount(ctx context.Context, key core.AccountKey) (*core.User, error) {
	if err := f.err("GetUserByAccount"); err != nil {
		return nil, err
	}
	return f.Adapter.GetUserByAccount(ctx, key)
}

func (f *FaultyAdapter) GetSessionAndUser(ctx context.Context, token string) (*core.SessionAndUser, error) {
	if err := f.err("GetSessionAndUser"); err != nil {
		return nil, err
	}
	return f.Adapter.GetSessionAndUser(ctx, token)
}

func (f *FaultyAdapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	if err := f.err("UpdateSession"); err != nil {
		return nil, err
	}
	return f.Adapter.UpdateSession(ctx, patch)
}

func (f *FaultyAdapter) DeleteSession(ctx context.Context, token string) error {
	if err := f.err("DeleteSession"); err != nil {
		return err
	}
	return f.Adapter.DeleteSession(ctx, token)
}

func (f *FaultyAdapter) CreateVerificationToken(ctx context.Context, v core.VerificationToken) (*core.VerificationToken, error) {
	if err := f.err("CreateVerificationToken"); err != nil {
		return nil, err
	}
	return f.Adapter.CreateVerificationToken(ctx, v)
}

// RecordingNotifier keeps every verification request it was given.
type RecordingNotifier struct {
	mu       sync.Mutex
	requests []core.VerificationRequest
	err      error
}

func (n *RecordingNotifier) SendVerificationRequest(_ context.Context, req core.VerificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.requests = append(n.requests, req)
	return nil
}

func (n *RecordingNotifier) Last() (core.VerificationRequest, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return core.VerificationRequest{}, false
	}
	return n.requests[len(n.requests)-1], true
}

// plainAdapter hides optional interfaces such as core.AccountReader.
type plainAdapter struct {
	core.Adapter
}
