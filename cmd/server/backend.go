package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongoadapter "github.com/lborres/authstore/adapters/mongo"
	pgxadapter "github.com/lborres/authstore/adapters/pgx"
	redisadapter "github.com/lborres/authstore/adapters/redis"
	"github.com/lborres/authstore/core"
	"github.com/lborres/authstore/internal/config"
	"github.com/lborres/authstore/internal/logger"
)

// backend is an opened storage adapter and the function releasing it.
type backend struct {
	adapter core.Adapter
	close   func(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return openMongo(ctx, cfg.Mongo)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg.Database, cfg.Sweep, log)
	default:
		return openRedis(ctx, cfg.Redis)
	}
}

func openMongo(ctx context.Context, cfg config.Mongo) (*backend, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	adapter := mongoadapter.New(client.Database(cfg.Database), mongoadapter.Options{TTLIndexes: cfg.TTLIndexes})
	if err := adapter.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &backend{adapter: adapter, close: client.Disconnect}, nil
}

func openRedis(ctx context.Context, cfg config.Redis) (*backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	adapter := redisadapter.New(client, redisadapter.Options{
		BaseKeyPrefix: cfg.KeyPrefix,
		ExpireWithTTL: cfg.ExpireWithTTL,
	})

	return &backend{
		adapter: adapter,
		close:   func(context.Context) error { return client.Close() },
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Database, sweep config.Sweep, log *logger.Logger) (*backend, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pgxadapter.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	adapter := pgxadapter.New(pool)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runSweeper(sweepCtx, adapter, sweep.Interval, log)
	}()

	return &backend{
		adapter: adapter,
		close: func(context.Context) error {
			stopSweep()
			<-done
			pool.Close()
			return nil
		},
	}, nil
}

// runSweeper deletes expired sessions and verification tokens until ctx is done.
func runSweeper(ctx context.Context, adapter *pgxadapter.Adapter, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sessions, tokens, err := adapter.DeleteExpired(ctx, now)
			if err != nil {
				log.Error("failed to delete expired records", "error", err)
				continue
			}
			log.Debug("expired records deleted", "sessions", sessions, "tokens", tokens)
		}
	}
}
