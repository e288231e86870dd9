package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateToken_Length(t *testing.T) {
	tests := []struct {
		name           string
		byteLength     int
		expectedLength int
	}{
		{name: "zero uses default", byteLength: 0, expectedLength: DefaultTokenLength},
		{name: "negative uses default", byteLength: -10, expectedLength: DefaultTokenLength},
		{name: "16 bytes", byteLength: 16, expectedLength: 16},
		{name: "64 bytes", byteLength: 64, expectedLength: 64},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			token, err := GenerateToken(test.byteLength)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			decoded, err := base64.RawURLEncoding.DecodeString(token)
			if err != nil {
				t.Fatalf("failed to decode token: %v", err)
			}
			if len(decoded) != test.expectedLength {
				t.Errorf("token length = %d bytes, want %d", len(decoded), test.expectedLength)
			}
			if strings.ContainsAny(token, "+/= ") {
				t.Errorf("token contains URL-unsafe characters: %q", token)
			}
		})
	}
}

// Requirement: the stored hash must verify against the raw token and nothing else.
func TestGenerateHashedToken_VerifiesAgainstHash(t *testing.T) {
	pair, err := GenerateHashedToken()
	if err != nil {
		t.Fatalf("GenerateHashedToken() error = %v", err)
	}
	if pair.Token == pair.Hash {
		t.Fatal("hash must differ from raw token")
	}

	ok, err := VerifyToken(pair.Token, pair.Hash)
	if err != nil || !ok {
		t.Fatalf("VerifyToken(raw, hash) = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyToken(pair.Token+"x", pair.Hash)
	if err != nil || ok {
		t.Fatalf("VerifyToken(tampered, hash) = %v, %v; want false, nil", ok, err)
	}

	if _, err := VerifyToken("", pair.Hash); err != ErrEmptyToken {
		t.Fatalf("VerifyToken(empty) error = %v, want ErrEmptyToken", err)
	}
}

func TestGenerateHashedToken_TooManyArgs(t *testing.T) {
	if _, err := GenerateHashedToken(16, 32); err != ErrTooManyArgs {
		t.Fatalf("error = %v, want ErrTooManyArgs", err)
	}
}

func TestGenerateHashedToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		pair, err := GenerateHashedToken()
		if err != nil {
			t.Fatalf("iteration %d: error = %v", i, err)
		}
		if seen[pair.Hash] {
			t.Fatalf("duplicate token generated at iteration %d", i)
		}
		seen[pair.Hash] = true
	}
}

// Requirement: keyed hashes depend on both the secret and the token.
func TestKeyedHash(t *testing.T) {
	secret := "secretshouldbeatleast32charslong"

	a, err := KeyedHash(secret, "tok1")
	if err != nil {
		t.Fatalf("KeyedHash() error = %v", err)
	}
	b, _ := KeyedHash(secret, "tok1")
	if a != b {
		t.Fatal("KeyedHash must be deterministic")
	}

	other, _ := KeyedHash(secret+"!", "tok1")
	if other == a {
		t.Fatal("different secrets must produce different hashes")
	}
	second, _ := KeyedHash(secret, "tok2")
	if second == a {
		t.Fatal("different tokens must produce different hashes")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a))
	}

	if _, err := KeyedHash(strings.Repeat("k", 65), "tok1"); err != ErrKeyTooLong {
		t.Fatalf("error = %v, want ErrKeyTooLong", err)
	}
}
