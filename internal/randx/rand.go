// Package randx provides helpers for generating random material and for
// wiping sensitive buffers after use.
package randx

import (
	"crypto/rand"
	"encoding/hex"
)

// Bytes returns size cryptographically secure random bytes.
// It panics if the system random source fails, since no meaningful
// recovery is possible at that point.
func Bytes(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// HexString generates a random hexadecimal string built from size random
// bytes, so the resulting string is twice as long as size.
func HexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe overwrites the contents of the provided byte slice with zeros.
// This is used to remove secrets such as passwords and session keys from
// memory once they are no longer needed. A nil slice is a no-op.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
