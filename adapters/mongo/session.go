package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lborres/authstore/core"
)

func (a *Adapter) CreateSession(ctx context.Context, s core.Session) (*core.Session, error) {
	const op = "CreateSession"
	if err := core.ValidateSession(op, s); err != nil {
		return nil, err
	}

	userID, err := a.requireUser(ctx, op, s.UserID)
	if err != nil {
		return nil, err
	}

	doc := toSessionDoc(bson.NewObjectID(), userID, s)
	if _, err := a.sessions.InsertOne(ctx, doc); err != nil {
		return nil, writeFailure(op, err)
	}

	return doc.model(), nil
}

func (a *Adapter) GetSessionAndUser(ctx context.Context, sessionToken string) (*core.SessionAndUser, error) {
	const op = "GetSessionAndUser"
	var doc sessionDoc
	found, err := findExactlyOne(ctx, a.sessions, bson.M{"sessionToken": sessionToken}, &doc)
	if err != nil {
		return nil, readFailure(op, err)
	}
	if !found {
		return nil, nil
	}

	u, err := a.getUser(ctx, doc.UserID)
	if err != nil {
		return nil, readFailure(op, err)
	}
	if u == nil {
		return nil, nil
	}

	return &core.SessionAndUser{Session: doc.model(), User: u}, nil
}

func (a *Adapter) UpdateSession(ctx context.Context, patch core.SessionPatch) (*core.Session, error) {
	const op = "UpdateSession"
	if err := core.ValidateSessionPatch(op, patch); err != nil {
		return nil, err
	}

	filter := bson.M{"sessionToken": patch.SessionToken}
	set := bson.M{}
	if v, ok := patch.UserID.Get(); ok {
		oid, ok := parseID(v)
		if !ok {
			return nil, core.Fail(op, core.ErrInvalidInput, errors.New("userId is not an ObjectID"))
		}
		set["userId"] = oid
	}
	if v, ok := patch.Expires.Get(); ok {
		set["expires"] = v
	}

	var doc sessionDoc
	if len(set) == 0 {
		found, err := findExactlyOne(ctx, a.sessions, filter, &doc)
		if err != nil {
			return nil, readFailure(op, err)
		}
		if !found {
			return nil, nil
		}
		return doc.model(), nil
	}

	err := a.sessions.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, writeFailure(op, err)
	}

	return doc.model(), nil
}

func (a *Adapter) DeleteSession(ctx context.Context, sessionToken string) error {
	const op = "DeleteSession"
	if _, err := a.sessions.DeleteOne(ctx, bson.M{"sessionToken": sessionToken}); err != nil {
		return core.Fail(op, core.ErrUnavailable, err)
	}
	return nil
}
