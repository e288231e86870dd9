package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

var (
	ErrEmptyToken  = errors.New("token and hash cannot be empty")
	ErrKeyTooLong  = errors.New("secret must be at most 64 bytes")
	ErrTooManyArgs = errors.New("too many arguments. expected only 1")
)

const (
	DefaultTokenLength = 32 // 256 bits
)

type TokenPair struct {
	Token string // value returned to client
	Hash  string // value in storage
}

// GenerateToken returns byteLength random bytes as URL-safe base64.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultTokenLength
	}

	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateHashedToken returns a session token and the hash to persist.
func GenerateHashedToken(byteLength ...int) (*TokenPair, error) {
	if len(byteLength) > 1 {
		return nil, ErrTooManyArgs
	}

	length := DefaultTokenLength
	if len(byteLength) > 0 && byteLength[0] > 0 {
		length = byteLength[0]
	}

	token, err := GenerateToken(length)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Token: token,
		Hash:  HashToken(token),
	}, nil
}

// HashToken is the storage form of a session token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func VerifyToken(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, ErrEmptyToken
	}

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1, nil
}

// KeyedHash is the storage form of a verification token. Keying with the
// server secret means a leaked token table cannot be replayed against
// another deployment.
func KeyedHash(secret, token string) (string, error) {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		return "", ErrKeyTooLong
	}

	h, err := blake2b.New256(key)
	if err != nil {
		return "", err
	}
	h.Write([]byte(token))

	return hex.EncodeToString(h.Sum(nil)), nil
}
