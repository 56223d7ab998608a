// Package secretstore persists a wrapped copy of a tenant's session key in
// the OS credential vault (Keychain on macOS, Credential Manager on Windows,
// Secret Service on Linux) so the vault can be unlocked without retyping the
// master password. Enabling this path is a user opt-in; disabling it removes
// the wrapped entry without touching the password path.
package secretstore

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
)

const serviceName = "cryptogest"

// Store wraps an OS-backed keyring. The keyring itself is the wrapping
// boundary: entries are protected by whatever the platform gates access
// with (login session, biometric prompt, etc.).
type Store struct {
	ring keyring.Keyring
}

// New opens the platform credential vault. If no usable backend exists on
// this system, the error wraps common.ErrCapabilityUnavailable and callers
// must fall back to password-only unlock.
func New() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCapabilityUnavailable, err)
	}
	return &Store{ring: ring}, nil
}

// NewWithKeyring builds a Store over an explicit keyring. Tests use this
// with keyring.NewArrayKeyring.
func NewWithKeyring(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func itemKey(tenantID string) string {
	return "tenant:" + tenantID
}

// WrapAndStore saves the session key for the given tenant.
func (s *Store) WrapAndStore(tenantID string, key []byte) error {
	// Store a copy: the caller wipes the session key on lock.
	item := keyring.Item{
		Key:         itemKey(tenantID),
		Data:        append([]byte(nil), key...),
		Label:       "CryptoGest vault key (" + tenantID + ")",
		Description: "session key",
	}
	if err := s.ring.Set(item); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCapabilityUnavailable, err)
	}
	return nil
}

// Unwrap retrieves the stored session key for the tenant. A missing entry
// (passkey never set up, or cleared) surfaces as common.ErrPasskeyUnavailable.
func (s *Store) Unwrap(tenantID string) ([]byte, error) {
	item, err := s.ring.Get(itemKey(tenantID))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, common.ErrPasskeyUnavailable
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPasskeyUnavailable, err)
	}
	if len(item.Data) != 32 {
		return nil, common.ErrPasskeyUnavailable
	}
	return append([]byte(nil), item.Data...), nil
}

// Clear removes the wrapped key for the tenant. Clearing an absent entry is
// not an error.
func (s *Store) Clear(tenantID string) error {
	err := s.ring.Remove(itemKey(tenantID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
