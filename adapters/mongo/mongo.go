package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lborres/authstore/core"
)

// Collections names the collections used by the adapter.
type Collections struct {
	Users              string
	Accounts           string
	Sessions           string
	VerificationTokens string
}

func DefaultCollections() Collections {
	return Collections{
		Users:              "users",
		Accounts:           "accounts",
		Sessions:           "sessions",
		VerificationTokens: "verification_tokens",
	}
}

type Options struct {
	Collections Collections
	// TTLIndexes lets the server remove expired sessions and verification
	// tokens.
	TTLIndexes bool
}

type Adapter struct {
	users    *mongo.Collection
	accounts *mongo.Collection
	sessions *mongo.Collection
	tokens   *mongo.Collection
	opts     Options
}

var (
	_ core.Adapter        = (*Adapter)(nil)
	_ core.AccountReader  = (*Adapter)(nil)
	_ core.CascadePlanner = (*Adapter)(nil)
)

func New(db *mongo.Database, opts Options) *Adapter {
	def := DefaultCollections()
	c := opts.Collections
	if c.Users == "" {
		c.Users = def.Users
	}
	if c.Accounts == "" {
		c.Accounts = def.Accounts
	}
	if c.Sessions == "" {
		c.Sessions = def.Sessions
	}
	if c.VerificationTokens == "" {
		c.VerificationTokens = def.VerificationTokens
	}
	opts.Collections = c

	return &Adapter{
		users:    db.Collection(c.Users),
		accounts: db.Collection(c.Accounts),
		sessions: db.Collection(c.Sessions),
		tokens:   db.Collection(c.VerificationTokens),
		opts:     opts,
	}
}

// EnsureIndexes creates the unique indexes the adapter relies on to reject
// duplicates. It is safe to call on every start.
func (a *Adapter) EnsureIndexes(ctx context.Context) error {
	asc := func(fields ...string) bson.D {
		d := bson.D{}
		for _, f := range fields {
			d = append(d, bson.E{Key: f, Value: 1})
		}
		return d
	}

	sessionIdx := []mongo.IndexModel{
		{Keys: asc("sessionToken"), Options: options.Index().SetUnique(true)},
		{Keys: asc("userId")},
	}
	tokenIdx := []mongo.IndexModel{
		{Keys: asc("identifier", "token"), Options: options.Index().SetUnique(true)},
	}
	if a.opts.TTLIndexes {
		ttl := mongo.IndexModel{Keys: asc("expires"), Options: options.Index().SetExpireAfterSeconds(0)}
		sessionIdx = append(sessionIdx, ttl)
		tokenIdx = append(tokenIdx, ttl)
	}

	plan := []struct {
		coll    *mongo.Collection
		indexes []mongo.IndexModel
	}{
		{a.users, []mongo.IndexModel{{
			Keys: asc("email"),
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		}}},
		{a.accounts, []mongo.IndexModel{
			{Keys: asc("provider", "providerAccountId"), Options: options.Index().SetUnique(true)},
			{Keys: asc("userId")},
		}},
		{a.sessions, sessionIdx},
		{a.tokens, tokenIdx},
	}

	for _, p := range plan {
		if _, err := p.coll.Indexes().CreateMany(ctx, p.indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", p.coll.Name(), err)
		}
	}
	return nil
}

// writeFailure maps a write error to an OperationFailure.
func writeFailure(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return core.Fail(op, core.ErrConflict, err)
	}
	return core.Fail(op, core.ErrUnavailable, err)
}

// findExactlyOne decodes the single document matching filter. No match is
// (false, nil); more than one match means the unique index is missing and is
// reported instead of picking one.
func findExactlyOne[T any](ctx context.Context, coll *mongo.Collection, filter any, out *T) (bool, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return false, err
	}
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return false, err
	}

	switch len(docs) {
	case 0:
		return false, nil
	case 1:
		*out = docs[0]
		return true, nil
	default:
		return false, fmt.Errorf("%w: more than one document in %s matches %v", core.ErrIntegrity, coll.Name(), filter)
	}
}

// readFailure maps a lookup error to an OperationFailure.
func readFailure(op string, err error) error {
	switch {
	case errors.Is(err, core.ErrIntegrity):
		return core.Fail(op, core.ErrIntegrity, err)
	case errors.Is(err, core.ErrMalformed):
		return core.Fail(op, core.ErrMalformed, err)
	default:
		return core.Fail(op, core.ErrUnavailable, err)
	}
}
