package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateVerificationToken(ctx context.Context, v core.VerificationToken) (*core.VerificationToken, error) {
	const op = "CreateVerificationToken"
	if err := core.ValidateVerificationToken(op, v); err != nil {
		return nil, err
	}

	doc := toTokenDoc(v)
	if _, err := a.tokens.InsertOne(ctx, doc); err != nil {
		return nil, writeFailure(op, err)
	}
	return doc.model(), nil
}

// UseVerificationToken relies on FindOneAndDelete being atomic per document.
func (a *Adapter) UseVerificationToken(ctx context.Context, key core.VerificationKey) (*core.VerificationToken, error) {
	const op = "UseVerificationToken"
	if err := core.ValidateVerificationKey(op, key); err != nil {
		return nil, err
	}

	var doc tokenDoc
	err := a.tokens.FindOneAndDelete(ctx, bson.M{"identifier": key.Identifier, "token": key.Token}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Fail(op, core.ErrUnavailable, err)
	}
	return doc.model(), nil
}
