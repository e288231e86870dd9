package redis

import "strings"

// keys builds every key used by the adapter. All keys share the base prefix.
type keys struct {
	account       string
	accountByUser string
	email         string
	session       string
	sessionByUser string
	user          string
	token         string
}

func newKeys(o Options) keys {
	return keys{
		account:       o.BaseKeyPrefix + o.AccountKeyPrefix,
		accountByUser: o.BaseKeyPrefix + o.AccountByUserIDPrefix,
		email:         o.BaseKeyPrefix + o.EmailKeyPrefix,
		session:       o.BaseKeyPrefix + o.SessionKeyPrefix,
		sessionByUser: o.BaseKeyPrefix + o.SessionByUserIDPrefix,
		user:          o.BaseKeyPrefix + o.UserKeyPrefix,
		token:         o.BaseKeyPrefix + o.VerificationTokenKeyPrefix,
	}
}

func (k keys) User(id string) string { return k.user + id }
func (k keys) Email(email string) string { return k.email + email }
func (k keys) Session(token string) string { return k.session + token }
func (k keys) SessionsOf(userID string) string { return k.sessionByUser + userID }
func (k keys) AccountsOf(userID string) string { return k.accountByUser + userID }
func (k keys) VerificationToken(identifier, token string) string {
	return k.token + pair(identifier, token)
}

func (k keys) Account(provider, providerAccountID string) string {
	return k.account + pair(provider, providerAccountID)
}

var componentEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// pair joins the two parts of a natural key with ":". Backslashes and colons
// inside a part are escaped so that ("a:b", "c") and ("a", "b:c") map to
// different keys. Parts without either character are written unchanged.
func pair(first, second string) string {
	return componentEscaper.Replace(first) + ":" + componentEscaper.Replace(second)
}
