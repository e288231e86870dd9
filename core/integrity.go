package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Deletion is one idempotent step of a multi-record delete.
// Deleting a record that is already gone must return nil.
type Deletion struct {
	Target string // human readable, used in errors and logs
	Run    func(ctx context.Context) error
}

// CascadePlanner lists the deletions that remove a user and everything it
// owns. The user record itself must be the last step so that a partially
// failed cascade can still be found and retried through the user's indexes.
type CascadePlanner interface {
	PlanUserDeletion(ctx context.Context, userID string) ([]Deletion, error)
}

// CascadeDeleteUser plans and runs the deletion of a user, its accounts and
// its sessions. It is not atomic; every step is idempotent so calling it
// again after a partial failure converges to the same end state.
func CascadeDeleteUser(ctx context.Context, planner CascadePlanner, userID string) error {
	const op = "DeleteUser"

	plan, err := planner.PlanUserDeletion(ctx, userID)
	if err != nil {
		return Fail(op, ErrUnavailable, fmt.Errorf("failed to plan cascade: %w", err))
	}

	return RunDeletions(ctx, op, plan)
}

// RunDeletions attempts every step of plan even when one fails and returns
// the first failure once all steps were attempted.
func RunDeletions(ctx context.Context, op string, plan []Deletion) error {
	var first error
	for _, d := range plan {
		err := d.Run(ctx)
		if err == nil {
			continue
		}
		if first == nil {
			first = Fail(op, ErrUnavailable, fmt.Errorf("failed to delete %s: %w", d.Target, err))
			continue
		}
		LoggerFromContext(ctx).Warn("cascade step failed",
			slog.String("op", op),
			slog.String("target", d.Target),
			slog.Any("error", err),
		)
	}
	return first
}

// ConsumeOnce reads a record and hands it out only if this caller is the one
// whose remove call actually deleted it. remove must report whether a record
// was deleted (e.g. a DEL count), which makes this safe under concurrent
// identical requests on backends without an atomic fetch-and-delete.
func ConsumeOnce[T any](
	ctx context.Context,
	fetch func(ctx context.Context) (*T, error),
	remove func(ctx context.Context) (bool, error),
) (*T, error) {
	rec, err := fetch(ctx)
	if err != nil || rec == nil {
		return nil, err
	}

	removed, err := remove(ctx)
	if err != nil {
		return nil, err
	}
	if !removed {
		// someone else consumed it between fetch and remove
		return nil, nil
	}

	return rec, nil
}

type loggerKey struct{}

// ContextWithLogger attaches a logger used by multi-step operations.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger attached to ctx or slog.Default.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
