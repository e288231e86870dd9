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

func (a *Adapter) CreateUser(ctx context.Context, u core.User) (*core.User, error) {
	const op = "CreateUser"
	if err := core.ValidateUser(op, u); err != nil {
		return nil, err
	}

	doc := toUserDoc(bson.NewObjectID(), u)
	if _, err := a.users.InsertOne(ctx, doc); err != nil {
		return nil, writeFailure(op, err)
	}

	return doc.model(), nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (*core.User, error) {
	const op = "GetUser"
	oid, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	u, err := a.getUser(ctx, oid)
	if err != nil {
		return nil, readFailure(op, err)
	}
	return u, nil
}

func (a *Adapter) getUser(ctx context.Context, id bson.ObjectID) (*core.User, error) {
	var doc userDoc
	found, err := findExactlyOne(ctx, a.users, bson.M{"_id": id}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.model(), nil
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	const op = "GetUserByEmail"
	var doc userDoc
	found, err := findExactlyOne(ctx, a.users, bson.M{"email": email}, &doc)
	if err != nil {
		return nil, readFailure(op, err)
	}
	if !found {
		return nil, nil
	}
	return doc.model(), nil
}

func (a *Adapter) GetUserByAccount(ctx context.Context, key core.AccountKey) (*core.User, error) {
	const op = "GetUserByAccount"
	acc, err := a.findAccount(ctx, key)
	if err != nil {
		return nil, readFailure(op, err)
	}
	if acc == nil {
		return nil, nil
	}

	u, err := a.getUser(ctx, acc.UserID)
	if err != nil {
		return nil, readFailure(op, err)
	}
	return u, nil
}

func (a *Adapter) UpdateUser(ctx context.Context, patch core.UserPatch) (*core.User, error) {
	const op = "UpdateUser"
	if err := core.ValidateUserPatch(op, patch); err != nil {
		return nil, err
	}

	oid, ok := parseID(patch.ID)
	if !ok {
		return nil, core.Fail(op, core.ErrMissingRecord, fmt.Errorf("user %s", patch.ID))
	}

	if patch.Empty() {
		u, err := a.getUser(ctx, oid)
		if err != nil {
			return nil, readFailure(op, err)
		}
		if u == nil {
			return nil, core.Fail(op, core.ErrMissingRecord, fmt.Errorf("user %s", patch.ID))
		}
		return u, nil
	}

	var doc userDoc
	err := a.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		userUpdate(patch),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.Fail(op, core.ErrMissingRecord, fmt.Errorf("user %s", patch.ID))
	}
	if err != nil {
		return nil, writeFailure(op, err)
	}

	return doc.model(), nil
}

func (a *Adapter) DeleteUser(ctx context.Context, id string) error {
	return core.CascadeDeleteUser(ctx, a, id)
}

// PlanUserDeletion removes accounts and sessions by userId before the user
// document itself.
func (a *Adapter) PlanUserDeletion(_ context.Context, userID string) ([]core.Deletion, error) {
	oid, ok := parseID(userID)
	if !ok {
		return nil, nil
	}
	byUser := bson.M{"userId": oid}

	return []core.Deletion{
		{Target: "accounts", Run: func(ctx context.Context) error {
			_, err := a.accounts.DeleteMany(ctx, byUser)
			return err
		}},
		{Target: "sessions", Run: func(ctx context.Context) error {
			_, err := a.sessions.DeleteMany(ctx, byUser)
			return err
		}},
		{Target: "user " + userID, Run: func(ctx context.Context) error {
			_, err := a.users.DeleteOne(ctx, bson.M{"_id": oid})
			return err
		}},
	}, nil
}
