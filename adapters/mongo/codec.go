package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lborres/authstore/core"
)

// Documents mirror the core models with ObjectID keys. A user reference is
// stored as an ObjectID so it can be joined against _id.

type userDoc struct {
	ID            bson.ObjectID `bson:"_id"`
	Name          *string       `bson:"name,omitempty"`
	Email         *string       `bson:"email,omitempty"`
	EmailVerified *time.Time    `bson:"emailVerified,omitempty"`
	Image         *string       `bson:"image,omitempty"`
}

type accountDoc struct {
	ID                bson.ObjectID `bson:"_id"`
	UserID            bson.ObjectID `bson:"userId"`
	Type              string        `bson:"type"`
	Provider          string        `bson:"provider"`
	ProviderAccountID string        `bson:"providerAccountId"`
	RefreshToken      *string       `bson:"refresh_token,omitempty"`
	AccessToken       *string       `bson:"access_token,omitempty"`
	ExpiresAt         *int64        `bson:"expires_at,omitempty"`
	TokenType         *string       `bson:"token_type,omitempty"`
	Scope             *string       `bson:"scope,omitempty"`
	IDToken           *string       `bson:"id_token,omitempty"`
	SessionState      *string       `bson:"session_state,omitempty"`
}

type sessionDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	SessionToken string        `bson:"sessionToken"`
	UserID       bson.ObjectID `bson:"userId"`
	Expires      time.Time     `bson:"expires"`
}

type tokenDoc struct {
	Identifier string    `bson:"identifier"`
	Token      string    `bson:"token"`
	Expires    time.Time `bson:"expires"`
}

// parseID converts a hex id. ok is false for anything that is not a
// 24 character hex string.
func parseID(hex string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return id, true
}

func toUserDoc(id bson.ObjectID, u core.User) userDoc {
	return userDoc{
		ID:            id,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
	}
}

func (d userDoc) model() *core.User {
	return &core.User{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		EmailVerified: utcPtr(d.EmailVerified),
		Image:         d.Image,
	}
}

func toAccountDoc(id, userID bson.ObjectID, a core.Account) accountDoc {
	return accountDoc{
		ID:                id,
		UserID:            userID,
		Type:              string(a.Type),
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		RefreshToken:      a.RefreshToken,
		AccessToken:       a.AccessToken,
		ExpiresAt:         a.ExpiresAt,
		TokenType:         a.TokenType,
		Scope:             a.Scope,
		IDToken:           a.IDToken,
		SessionState:      a.SessionState,
	}
}

func (d accountDoc) model() *core.Account {
	return &core.Account{
		ID:                d.ID.Hex(),
		UserID:            d.UserID.Hex(),
		Type:              core.AccountType(d.Type),
		Provider:          d.Provider,
		ProviderAccountID: d.ProviderAccountID,
		RefreshToken:      d.RefreshToken,
		AccessToken:       d.AccessToken,
		ExpiresAt:         d.ExpiresAt,
		TokenType:         d.TokenType,
		Scope:             d.Scope,
		IDToken:           d.IDToken,
		SessionState:      d.SessionState,
	}
}

func toSessionDoc(id, userID bson.ObjectID, s core.Session) sessionDoc {
	return sessionDoc{
		ID:           id,
		SessionToken: s.SessionToken,
		UserID:       userID,
		Expires:      s.Expires,
	}
}

func (d sessionDoc) model() *core.Session {
	return &core.Session{
		ID:           d.ID.Hex(),
		SessionToken: d.SessionToken,
		UserID:       d.UserID.Hex(),
		Expires:      d.Expires.UTC(),
	}
}

func toTokenDoc(v core.VerificationToken) tokenDoc {
	return tokenDoc{Identifier: v.Identifier, Token: v.Token, Expires: v.Expires}
}

func (d tokenDoc) model() *core.VerificationToken {
	return &core.VerificationToken{Identifier: d.Identifier, Token: d.Token, Expires: d.Expires.UTC()}
}

// userUpdate turns a patch into $set and $unset stages. Clearing a field
// removes it so the partial email index ignores the document.
func userUpdate(p core.UserPatch) bson.M {
	set := bson.M{}
	unset := bson.M{}
	str := func(name string, o core.Opt[*string]) {
		v, ok := o.Get()
		switch {
		case !ok:
		case v == nil:
			unset[name] = ""
		default:
			set[name] = *v
		}
	}
	str("name", p.Name)
	str("email", p.Email)
	str("image", p.Image)
	if v, ok := p.EmailVerified.Get(); ok {
		if v == nil {
			unset["emailVerified"] = ""
		} else {
			set["emailVerified"] = *v
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
