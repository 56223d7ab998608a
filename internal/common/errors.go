// Package common defines shared constants and sentinel errors used across
// CryptoGest components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Credential errors. ErrInvalidCredentials deliberately covers both a
	// wrong secret and an undecryptable vault: the user-facing message must
	// not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasskeyUnavailable = errors.New("passkey unlock unavailable")

	// Tenant state errors.
	ErrAlreadyConfigured = errors.New("empresa already configured")
	ErrNotConfigured     = errors.New("empresa not configured")
	ErrVaultLocked       = errors.New("vault is locked")
	ErrVaultBusy         = errors.New("vault is in use by another process")

	// Platform capability errors.
	ErrCapabilityUnavailable = errors.New("platform capability unavailable")

	// Generic lookup error.
	ErrNotFound = errors.New("not found")

	// Blob errors.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Archive errors.
	ErrCorruptArchive    = errors.New("corrupt archive")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrExportFailed      = errors.New("export failed")

	// Cloud errors.
	ErrNetwork       = errors.New("network error")
	ErrAuthExpired   = errors.New("authentication expired")
	ErrQuotaExceeded = errors.New("backup quota exceeded")
	ErrTokenExpired  = errors.New("link token expired")
	ErrLinkRejected  = errors.New("device link rejected")
)
