package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/authstore/core"
)

// Options configures key naming. Empty prefixes fall back to DefaultOptions.
type Options struct {
	BaseKeyPrefix              string
	AccountKeyPrefix           string
	AccountByUserIDPrefix      string
	EmailKeyPrefix             string
	SessionKeyPrefix           string
	SessionByUserIDPrefix      string
	UserKeyPrefix              string
	VerificationTokenKeyPrefix string

	// ExpireWithTTL lets redis drop sessions and verification tokens at
	// their expiry time.
	ExpireWithTTL bool

	// MaxRetries bounds optimistic transaction retries.
	MaxRetries int
}

func DefaultOptions() Options {
	return Options{
		AccountKeyPrefix:           "user:account:",
		AccountByUserIDPrefix:      "user:account:by-user-id:",
		EmailKeyPrefix:             "user:email:",
		SessionKeyPrefix:           "user:session:",
		SessionByUserIDPrefix:      "user:session:by-user-id:",
		UserKeyPrefix:              "user:",
		VerificationTokenKeyPrefix: "user:token:",
		MaxRetries:                 16,
	}
}

type Adapter struct {
	client redis.UniversalClient
	keys   keys
	opts   Options
}

var (
	_ core.Adapter        = (*Adapter)(nil)
	_ core.AccountReader  = (*Adapter)(nil)
	_ core.CascadePlanner = (*Adapter)(nil)
)

func New(client redis.UniversalClient, opts Options) *Adapter {
	opts = mergeOptions(opts)
	return &Adapter{
		client: client,
		keys:   newKeys(opts),
		opts:   opts,
	}
}

func mergeOptions(opts Options) Options {
	def := DefaultOptions()
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	opts.AccountKeyPrefix = pick(opts.AccountKeyPrefix, def.AccountKeyPrefix)
	opts.AccountByUserIDPrefix = pick(opts.AccountByUserIDPrefix, def.AccountByUserIDPrefix)
	opts.EmailKeyPrefix = pick(opts.EmailKeyPrefix, def.EmailKeyPrefix)
	opts.SessionKeyPrefix = pick(opts.SessionKeyPrefix, def.SessionKeyPrefix)
	opts.SessionByUserIDPrefix = pick(opts.SessionByUserIDPrefix, def.SessionByUserIDPrefix)
	opts.UserKeyPrefix = pick(opts.UserKeyPrefix, def.UserKeyPrefix)
	opts.VerificationTokenKeyPrefix = pick(opts.VerificationTokenKeyPrefix, def.VerificationTokenKeyPrefix)
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	return opts
}

// transact runs fn under WATCH and retries when a watched key changed
// before EXEC.
func (a *Adapter) transact(ctx context.Context, fn func(tx *redis.Tx) error, watch ...string) error {
	for i := 0; i < a.opts.MaxRetries; i++ {
		err := a.client.Watch(ctx, fn, watch...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w after %d attempts", redis.TxFailedErr, a.opts.MaxRetries)
}

func unavailable(op string, err error) error {
	return core.Fail(op, core.ErrUnavailable, err)
}

func isUnknownCommand(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown command") || strings.Contains(msg, "unknown or disabled command")
}
