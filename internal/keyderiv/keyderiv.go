// Package keyderiv turns a user secret (password or PIN) into the 256-bit
// session key that protects a tenant's vault. The derivation is PBKDF2 with
// a deliberately high iteration count, so a single derive takes tens of
// milliseconds and offline brute force stays expensive.
package keyderiv

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Iterations is fixed: changing it silently would make existing vaults
	// underivable.
	Iterations = 100_000

	KeySize  = 32
	SaltSize = 32
)

var (
	ErrEmptySecret = errors.New("secret must not be empty")
	ErrBadSaltSize = errors.New("salt must be exactly 32 bytes")
)

// Derive produces a 32-byte key from the secret and salt. Deterministic:
// the same inputs always yield the same key. The secret itself is never
// stored anywhere; callers persist only the salt.
func Derive(secret, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if len(salt) != SaltSize {
		return nil, ErrBadSaltSize
	}
	return pbkdf2.Key(secret, salt, Iterations, KeySize, sha256.New), nil
}

// GenerateSalt returns a fresh 32-byte salt from the system CSPRNG.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
