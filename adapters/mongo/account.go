package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) LinkAccount(ctx context.Context, acc core.Account) (*core.Account, error) {
	const op = "LinkAccount"
	if err := core.ValidateAccount(op, acc); err != nil {
		return nil, err
	}

	userID, err := a.requireUser(ctx, op, acc.UserID)
	if err != nil {
		return nil, err
	}

	doc := toAccountDoc(bson.NewObjectID(), userID, acc)
	if _, err := a.accounts.InsertOne(ctx, doc); err != nil {
		return nil, writeFailure(op, err)
	}

	return doc.model(), nil
}

func (a *Adapter) GetAccount(ctx context.Context, key core.AccountKey) (*core.Account, error) {
	const op = "GetAccount"
	doc, err := a.findAccount(ctx, key)
	if err != nil {
		return nil, readFailure(op, err)
	}
	if doc == nil {
		return nil, nil
	}
	return doc.model(), nil
}

func (a *Adapter) findAccount(ctx context.Context, key core.AccountKey) (*accountDoc, error) {
	var doc accountDoc
	found, err := findExactlyOne(ctx, a.accounts, accountFilter(key), &doc)
	if err != nil || !found {
		return nil, err
	}
	return &doc, nil
}

func (a *Adapter) UnlinkAccount(ctx context.Context, key core.AccountKey) error {
	const op = "UnlinkAccount"
	if err := core.ValidateAccountKey(op, key); err != nil {
		return err
	}

	err := a.accounts.FindOneAndDelete(ctx, accountFilter(key)).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return core.Fail(op, core.ErrUnavailable, err)
	}
	return nil
}

func accountFilter(key core.AccountKey) bson.M {
	return bson.M{"provider": key.Provider, "providerAccountId": key.ProviderAccountID}
}

// requireUser resolves a user reference on a write. A reference that is not
// an ObjectID or names no user is invalid input.
func (a *Adapter) requireUser(ctx context.Context, op, userID string) (bson.ObjectID, error) {
	oid, ok := parseID(userID)
	if !ok {
		return bson.ObjectID{}, core.Fail(op, core.ErrInvalidInput, fmt.Errorf("userId %q is not an ObjectID", userID))
	}
	n, err := a.users.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return bson.ObjectID{}, core.Fail(op, core.ErrUnavailable, err)
	}
	if n == 0 {
		return bson.ObjectID{}, core.Fail(op, core.ErrInvalidInput, fmt.Errorf("user %s does not exist", userID))
	}
	return oid, nil
}
