// Package blobcipher implements the AEAD envelope used for everything
// CryptoGest writes to disk in encrypted form: attachment blobs and the
// sealed database file share the same layout, a random 12-byte nonce
// followed by the AES-256-GCM ciphertext and tag.
package blobcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
	"github.com/abrahampo1/cryptogest-sub001/internal/randx"
	"github.com/google/uuid"
)

const nonceSize = 12

// Seal encrypts plaintext under key. A fresh nonce is generated per call and
// prepended to the returned bytes, so nonces are never reused across blobs.
func Seal(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := randx.Bytes(nonceSize)
	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// Open decrypts bytes produced by Seal. A tag mismatch (wrong key or
// tampered data) surfaces as common.ErrDecryptionFailed; callers must not
// tell the two cases apart in user-facing messages.
func Open(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < nonceSize {
		return nil, common.ErrDecryptionFailed
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Store keeps ciphertext blobs under generated opaque filenames inside one
// directory. The mapping from opaque name to original filename lives only in
// the tenant's encrypted database; the store itself knows nothing about it.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the ciphertext blobs.
func (s *Store) Dir() string { return s.dir }

// Encrypt seals plaintext with the session key and writes it under a fresh
// opaque name, which is returned.
func (s *Store) Encrypt(plaintext, sessionKey []byte) (string, error) {
	sealed, err := Seal(plaintext, sessionKey)
	if err != nil {
		return "", err
	}

	if err := filex.EnsureDir(s.dir); err != nil {
		return "", err
	}

	name := uuid.NewString()
	if err := filex.WriteFileAtomic(filepath.Join(s.dir, name), sealed, 0o600); err != nil {
		return "", err
	}
	return name, nil
}

// Decrypt reads the blob stored under opaqueName and opens it with the
// session key. Returns common.ErrNotFound if no such blob exists.
func (s *Store) Decrypt(opaqueName string, sessionKey []byte) ([]byte, error) {
	sealed, err := os.ReadFile(filepath.Join(s.dir, opaqueName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", common.ErrNotFound, opaqueName)
		}
		return nil, err
	}
	return Open(sealed, sessionKey)
}

// Remove deletes the blob stored under opaqueName. Removing a missing blob
// is not an error.
func (s *Store) Remove(opaqueName string) error {
	err := os.Remove(filepath.Join(s.dir, opaqueName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
