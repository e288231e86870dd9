package crypto

import (
	"crypto/rand"
	"errors"
	"math"
)

const (
	defaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	defaultSize     = 22 // 22 * 6 = 132 bits (uuid is 128 bits) of entropy
	minAlphabetSize = 8
	maxAlphabetSize = 255
)

var (
	ErrAlphabetTooLong  = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetNotASCII = errors.New("alphabet must contain only ASCII characters")
)

// NanoID draws unbiased random strings from an ASCII alphabet.
type NanoID struct {
	alphabet string
	mask     byte
}

// NewNanoID builds a generator. An empty alphabet selects the URL-safe default.
func NewNanoID(alphabet string) (*NanoID, error) {
	if alphabet == "" {
		alphabet = defaultAlphabet
	}

	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}

	switch {
	case len(alphabet) > maxAlphabetSize:
		return nil, ErrAlphabetTooLong
	case len(alphabet) < minAlphabetSize:
		return nil, ErrAlphabetTooShort
	}

	// smallest 2^n-1 covering every index
	mask := 1
	for mask < len(alphabet)-1 {
		mask = mask<<1 | 1
	}

	return &NanoID{alphabet: alphabet, mask: byte(mask)}, nil
}

// Generate returns an id of size characters, or the default size when size <= 0.
func (n *NanoID) Generate(size int) (string, error) {
	if size <= 0 {
		size = defaultSize
	}

	step := int(math.Ceil(1.6 * float64(int(n.mask)*size) / float64(len(n.alphabet))))
	id := make([]byte, 0, size)
	buf := make([]byte, step)

	for len(id) < size {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b & n.mask)
			if idx < len(n.alphabet) {
				id = append(id, n.alphabet[idx])
				if len(id) == size {
					break
				}
			}
		}
	}

	return string(id), nil
}
