package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/lborres/authstore/adapters/pgx/migrations"
	"github.com/lborres/authstore/core"
)

type Adapter struct {
	pool *pgxpool.Pool
}

var (
	_ core.Adapter       = (*Adapter)(nil)
	_ core.AccountReader = (*Adapter)(nil)
)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool: pool,
	}
}

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions and verification tokens that expired
// before now. Postgres has no TTL so callers run this periodically.
func (a *Adapter) DeleteExpired(ctx context.Context, now time.Time) (sessions, tokens int64, err error) {
	const op = "DeleteExpired"

	tag, err := a.pool.Exec(ctx, `DELETE FROM public.sessions WHERE expires < $1`, now)
	if err != nil {
		return 0, 0, failure(op, err)
	}
	sessions = tag.RowsAffected()

	tag, err = a.pool.Exec(ctx, `DELETE FROM public.verification_tokens WHERE expires < $1`, now)
	if err != nil {
		return sessions, 0, failure(op, err)
	}
	return sessions, tag.RowsAffected(), nil
}

// Postgres error codes translated into operation failure kinds.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

func failure(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return core.Fail(op, core.ErrConflict, err)
		case codeForeignKeyViolation, codeNotNullViolation:
			return core.Fail(op, core.ErrInvalidInput, err)
		}
	}
	return core.Fail(op, core.ErrUnavailable, err)
}
