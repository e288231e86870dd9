// Package observe decorates a storage adapter with structured logs and
// OpenTelemetry spans.
package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lborres/authstore/core"
)

const instrumentationName = "github.com/lborres/authstore"

// Adapter logs every call at debug level and every OperationFailure at error
// level, and wraps each call in a span named authstore.adapter.<Verb>.
type Adapter struct {
	next   core.Adapter
	logger *slog.Logger
	tracer trace.Tracer
}

type readerAdapter struct {
	*Adapter
	reader core.AccountReader
}

func (r *readerAdapter) GetAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	ctx, done := r.start(ctx, "GetAccount")
	acc, err := r.reader.GetAccount(ctx, key)
	done(acc != nil, err)
	return acc, err
}

// Wrap returns next with logging and tracing. A nil logger uses
// slog.Default and a nil provider uses the global tracer provider.
func Wrap(next core.Adapter, logger *slog.Logger, tp trace.TracerProvider) core.Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	a := &Adapter{
		next:   next,
		logger: logger,
		tracer: tp.Tracer(instrumentationName),
	}
	if r, ok := next.(core.AccountReader); ok {
		return &readerAdapter{Adapter: a, reader: r}
	}
	return a
}

// start opens a span and returns the function that closes it. found is
// recorded for lookups and ignored when err is set.
func (a *Adapter) start(ctx context.Context, op string) (context.Context, func(found bool, err error)) {
	ctx, span := a.tracer.Start(ctx, "authstore.adapter."+op,
		trace.WithAttributes(attribute.String("authstore.op", op)),
	)
	logger := a.logger.With(slog.String("op", op))
	ctx = core.ContextWithLogger(ctx, logger)
	begin := time.Now()

	return ctx, func(found bool, err error) {
		defer span.End()
		elapsed := time.Since(begin)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "adapter operation failed",
				slog.Duration("duration", elapsed),
				slog.Any("error", err),
			)
			return
		}

		span.SetAttributes(attribute.Bool("authstore.found", found))
		logger.DebugContext(ctx, "adapter operation",
			slog.Duration("duration", elapsed),
			slog.Bool("found", found),
		)
	}
}

func (a *Adapter) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	ctx, done := a.start(ctx, "CreateUser")
	out, err := a.next.CreateUser(ctx, u)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	ctx, done := a.start(ctx, "GetUser")
	out, err := a.next.GetUser(ctx, id)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	ctx, done := a.start(ctx, "GetUserByEmail")
	out, err := a.next.GetUserByEmail(ctx, email)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) GetUserByAccount(ctx context.Context, key core.AccountKey) (*core.User, error) {
	ctx, done := a.start(ctx, "GetUserByAccount")
	out, err := a.next.GetUserByAccount(ctx, key)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) UpdateUser(ctx context.Context, patch core.UserPatch) (*core.User, error) {
	ctx, done := a.start(ctx, "UpdateUser")
	out, err := a.next.UpdateUser(ctx, patch)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	ctx, done := a.start(ctx, "DeleteUser")
	err := a.next.DeleteUser(ctx, id)
	done(true, err)
	return err
}

func (a *Adapter) LinkAccount(ctx context.Context, acc core.Account) (*core.Account, error) {
	ctx, done := a.start(ctx, "LinkAccount")
	out, err := a.next.LinkAccount(ctx, acc)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) UnlinkAccount(ctx context.Context, key core.AccountKey) error {
	ctx, done := a.start(ctx, "UnlinkAccount")
	err := a.next.UnlinkAccount(ctx, key)
	done(true, err)
	return err
}

func (a *Adapter) CreateSession(ctx context.Context, s core.Session) (*core.Session, error) {
	ctx, done := a.start(ctx, "CreateSession")
	out, err := a.next.CreateSession(ctx, s)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.SessionAndUser, error) {
	ctx, done := a.start(ctx, "GetSessionAndUser")
	out, err := a.next.GetSessionAndUser(ctx, sessionToken)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	ctx, done := a.start(ctx, "UpdateSession")
	out, err := a.next.UpdateSession(ctx, patch)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	ctx, done := a.start(ctx, "DeleteSession")
	err := a.next.DeleteSession(ctx, sessionToken)
	done(true, err)
	return err
}

func (a *Adapter) CreateVerificationToken(ctx context.Context, v core.VerificationToken) (*core.VerificationToken, error) {
	ctx, done := a.start(ctx, "CreateVerificationToken")
	out, err := a.next.CreateVerificationToken(ctx, v)
	done(out != nil, err)
	return out, err
}

func (a *Adapter) UseVerificationToken(ctx context.Context, key core.VerificationKey) (*core.VerificationToken, error) {
	ctx, done := a.start(ctx, "UseVerificationToken")
	out, err := a.next.UseVerificationToken(ctx, key)
	done(out != nil, err)
	return out, err
}
