// Package vault owns the lifecycle of a tenant's encrypted database:
// creation, password or passkey unlock, locking, and master-secret changes.
//
// At rest a tenant directory contains db.enc (AES-256-GCM sealed sqlite
// file), the PBKDF2 salt, and the attachments directory of ciphertext blobs.
// Unlock decrypts db.enc into a working copy (vault.db) and opens a handle
// over it; Lock re-seals the working copy back into db.enc and removes it.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/abrahampo1/cryptogest-sub001/internal/blobcipher"
	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
	"github.com/abrahampo1/cryptogest-sub001/internal/keyderiv"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
	"github.com/abrahampo1/cryptogest-sub001/internal/randx"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
	"github.com/abrahampo1/cryptogest-sub001/internal/secretstore"
	"github.com/abrahampo1/cryptogest-sub001/internal/vault/migrations"
)

// Manager drives vault state for the process. Exactly one tenant can be
// unlocked at a time; the mutex makes lock/unlock transitions mutually
// exclusive, so a Lock issued while an Unlock is running waits for it.
type Manager struct {
	reg     *registry.Registry
	secrets *secretstore.Store // nil when the platform has no credential vault
	log     logging.Logger

	mu      sync.Mutex
	session *Session
}

func NewManager(reg *registry.Registry, secrets *secretstore.Store, log logging.Logger) *Manager {
	return &Manager{reg: reg, secrets: secrets, log: log}
}

// CurrentSession returns the active session, or nil when locked.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Create initializes a brand-new encrypted database for the tenant and
// leaves it unlocked. The whole tenant directory is built in a staging
// location and renamed into place, so a failure partway leaves nothing
// behind. Fails with common.ErrAlreadyConfigured if the tenant already has
// a database.
func (m *Manager) Create(ctx context.Context, tenantID string, secret []byte) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, common.ErrVaultBusy
	}

	tenant, err := m.reg.Get(tenantID)
	if err != nil {
		return nil, err
	}
	recoverInterruptedSwap(tenant.DataPath)

	if configured(tenant.DataPath) {
		return nil, fmt.Errorf("%w: %s", common.ErrAlreadyConfigured, tenantID)
	}

	salt, err := keyderiv.GenerateSalt()
	if err != nil {
		return nil, err
	}
	key, err := keyderiv.Derive(secret, salt)
	if err != nil {
		return nil, err
	}

	staging := tenant.DataPath + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clean staging: %w", err)
	}
	plain, err := buildInitialState(ctx, staging, salt, key)
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	// Swap the fully-built directory into place.
	if err := os.MkdirAll(filepath.Dir(tenant.DataPath), 0o700); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}
	_ = os.Remove(tenant.DataPath) // an empty pre-created dir is fine to replace
	if err := os.Rename(staging, tenant.DataPath); err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("install tenant dir: %w", err)
	}

	s, err := m.openSession(tenant, key, plain)
	if err != nil {
		return nil, err
	}
	m.session = s
	_ = m.reg.SetLastUsed(tenantID)
	m.log.Info(ctx, "tenant created", "tenant_id", tenantID)
	return s, nil
}

// Unlock derives the key from the secret and opens the tenant's database.
// Wrong secret and undecryptable vault both surface as
// common.ErrInvalidCredentials; the distinction is kept only in the wrapped
// diagnostic detail.
func (m *Manager) Unlock(ctx context.Context, tenantID string, secret []byte) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, common.ErrVaultBusy
	}

	tenant, err := m.reg.Get(tenantID)
	if err != nil {
		return nil, err
	}
	recoverInterruptedSwap(tenant.DataPath)

	salt, err := os.ReadFile(filepath.Join(tenant.DataPath, common.SaltFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotConfigured, tenantID)
		}
		return nil, err
	}
	key, err := keyderiv.Derive(secret, salt)
	if err != nil {
		return nil, err
	}
	return m.unlockWithKey(ctx, tenant, key)
}

// UnlockWithSecretStore obtains the session key from the OS credential vault
// instead of a typed secret. Fails with common.ErrPasskeyUnavailable when no
// wrapped key exists for the tenant or the platform path is unavailable.
func (m *Manager) UnlockWithSecretStore(ctx context.Context, tenantID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, common.ErrVaultBusy
	}
	if m.secrets == nil {
		return nil, common.ErrPasskeyUnavailable
	}

	tenant, err := m.reg.Get(tenantID)
	if err != nil {
		return nil, err
	}
	recoverInterruptedSwap(tenant.DataPath)

	key, err := m.secrets.Unwrap(tenantID)
	if err != nil {
		return nil, err
	}
	return m.unlockWithKey(ctx, tenant, key)
}

func (m *Manager) unlockWithKey(ctx context.Context, tenant registry.Tenant, key []byte) (*Session, error) {
	sealed, err := os.ReadFile(filepath.Join(tenant.DataPath, common.EncryptedDBFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotConfigured, tenant.ID)
		}
		return nil, err
	}

	plain, err := blobcipher.Open(sealed, key)
	if err != nil {
		// Wrong secret and corrupt file are indistinguishable here on
		// purpose; keep the detail for diagnostics only.
		m.log.Warn(ctx, "vault open failed", "tenant_id", tenant.ID, "detail", err.Error())
		return nil, common.ErrInvalidCredentials
	}

	s, err := m.openSession(tenant, key, plain)
	if err != nil {
		return nil, err
	}
	m.session = s
	_ = m.reg.SetLastUsed(tenant.ID)
	m.log.Info(ctx, "tenant unlocked", "tenant_id", tenant.ID)
	return s, nil
}

// openSession installs the decrypted working copy, acquires the advisory
// lock and opens the database handle. plain is the decrypted sqlite image.
func (m *Manager) openSession(tenant registry.Tenant, key, plain []byte) (*Session, error) {
	flk := flock.New(filepath.Join(tenant.DataPath, common.LockFileName))
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire tenant lock: %w", err)
	}
	if !locked {
		return nil, common.ErrVaultBusy
	}

	workPath := filepath.Join(tenant.DataPath, common.WorkingDBFileName)
	if err := filex.WriteFileAtomic(workPath, plain, 0o600); err != nil {
		_ = flk.Unlock()
		return nil, err
	}

	db, err := sql.Open("sqlite", workPath)
	if err != nil {
		_ = os.Remove(workPath)
		_ = flk.Unlock()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = os.Remove(workPath)
		_ = flk.Unlock()
		return nil, err
	}

	return &Session{
		tenantID: tenant.ID,
		dir:      tenant.DataPath,
		key:      key,
		db:       db,
		flk:      flk,
		blobs:    blobcipher.NewStore(filepath.Join(tenant.DataPath, common.AttachmentsDirName)),
	}, nil
}

// Lock re-seals the working copy into db.enc, removes it, closes the handle
// and wipes the key. Safe to call repeatedly; locking an already-locked
// vault is a no-op.
func (m *Manager) Lock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	s := m.session

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	workPath := filepath.Join(s.dir, common.WorkingDBFileName)
	plain, err := os.ReadFile(workPath)
	if err != nil {
		return fmt.Errorf("read working copy: %w", err)
	}
	sealed, err := blobcipher.Seal(plain, s.key)
	randx.Wipe(plain)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(s.dir, common.EncryptedDBFileName), sealed, 0o600); err != nil {
		return err
	}
	if err := os.Remove(workPath); err != nil {
		return fmt.Errorf("remove working copy: %w", err)
	}

	_ = s.flk.Unlock()
	randx.Wipe(s.key)
	m.session = nil
	m.log.Info(ctx, "tenant locked", "tenant_id", s.tenantID)
	return nil
}

// Flush re-seals the current working copy into db.enc without closing the
// session, so the at-rest file reflects the live state. Export reads db.enc,
// which is otherwise only rewritten on Lock. Requires an unlocked session.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return common.ErrVaultLocked
	}
	s := m.session

	// Make sure pending journal pages are merged into the main file.
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		m.log.Debug(ctx, "wal checkpoint skipped", "detail", err.Error())
	}

	plain, err := os.ReadFile(filepath.Join(s.dir, common.WorkingDBFileName))
	if err != nil {
		return fmt.Errorf("read working copy: %w", err)
	}
	sealed, err := blobcipher.Seal(plain, s.key)
	randx.Wipe(plain)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(s.dir, common.EncryptedDBFileName), sealed, 0o600); err != nil {
		return err
	}
	m.log.Debug(ctx, "vault flushed", "tenant_id", s.tenantID)
	return nil
}

// ChangeSecret re-encrypts the tenant's at-rest state (database and all
// attachment blobs) under a key derived from newSecret with a fresh salt.
// The vault must be locked. The previous state is kept until the new one is
// fully written and verified: the new directory is built alongside and
// swapped in with two renames, and unlock knows how to roll back a swap
// interrupted between them.
func (m *Manager) ChangeSecret(ctx context.Context, tenantID string, currentSecret, newSecret []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return common.ErrVaultBusy
	}

	tenant, err := m.reg.Get(tenantID)
	if err != nil {
		return err
	}
	recoverInterruptedSwap(tenant.DataPath)

	salt, err := os.ReadFile(filepath.Join(tenant.DataPath, common.SaltFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", common.ErrNotConfigured, tenantID)
		}
		return err
	}
	oldKey, err := keyderiv.Derive(currentSecret, salt)
	if err != nil {
		return err
	}

	sealed, err := os.ReadFile(filepath.Join(tenant.DataPath, common.EncryptedDBFileName))
	if err != nil {
		return err
	}
	plain, err := blobcipher.Open(sealed, oldKey)
	if err != nil {
		m.log.Warn(ctx, "secret change rejected", "tenant_id", tenantID, "detail", err.Error())
		return common.ErrInvalidCredentials
	}
	defer randx.Wipe(plain)

	newSalt, err := keyderiv.GenerateSalt()
	if err != nil {
		return err
	}
	newKey, err := keyderiv.Derive(newSecret, newSalt)
	if err != nil {
		return err
	}

	staging := tenant.DataPath + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clean staging: %w", err)
	}
	if err := m.buildReencryptedState(staging, tenant.DataPath, plain, newSalt, oldKey, newKey); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	// Verify the new state decrypts before touching the old one.
	verify, err := os.ReadFile(filepath.Join(staging, common.EncryptedDBFileName))
	if err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if _, err := blobcipher.Open(verify, newKey); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("verify re-encrypted database: %w", err)
	}

	old := tenant.DataPath + ".old"
	if err := os.Rename(tenant.DataPath, old); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, tenant.DataPath); err != nil {
		// Roll the old state back; nothing was lost.
		_ = os.Rename(old, tenant.DataPath)
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		m.log.Warn(ctx, "stale pre-change state left behind", "tenant_id", tenantID, "path", old)
	}

	if m.secrets != nil && hasPasskeyMarker(tenant.DataPath) {
		if err := m.secrets.WrapAndStore(tenantID, newKey); err != nil {
			m.log.Warn(ctx, "passkey re-wrap failed", "tenant_id", tenantID, "detail", err.Error())
		}
	}

	m.log.Info(ctx, "master secret changed", "tenant_id", tenantID)
	return nil
}

// buildReencryptedState writes a complete tenant directory under staging,
// sealed with newKey: database, fresh salt, re-encrypted attachment blobs
// and the passkey marker if present.
func (m *Manager) buildReencryptedState(staging, dataPath string, plain, newSalt, oldKey, newKey []byte) error {
	if err := filex.EnsureDir(staging); err != nil {
		return err
	}

	sealed, err := blobcipher.Seal(plain, newKey)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(staging, common.EncryptedDBFileName), sealed, 0o600); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(staging, common.SaltFileName), newSalt, 0o600); err != nil {
		return err
	}

	attDir := filepath.Join(dataPath, common.AttachmentsDirName)
	stagedAtt := filepath.Join(staging, common.AttachmentsDirName)
	if err := filex.EnsureDir(stagedAtt); err != nil {
		return err
	}
	entries, err := os.ReadDir(attDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(attDir, e.Name()))
		if err != nil {
			return err
		}
		pt, err := blobcipher.Open(blob, oldKey)
		if err != nil {
			return fmt.Errorf("re-encrypt attachment %s: %w", e.Name(), err)
		}
		resealed, err := blobcipher.Seal(pt, newKey)
		randx.Wipe(pt)
		if err != nil {
			return err
		}
		if err := filex.WriteFileAtomic(filepath.Join(stagedAtt, e.Name()), resealed, 0o600); err != nil {
			return err
		}
	}

	if hasPasskeyMarker(dataPath) {
		if err := filex.WriteFileAtomic(filepath.Join(staging, common.PasskeyMarkerName), []byte{}, 0o600); err != nil {
			return err
		}
	}
	return nil
}

// EnablePasskey stores the current session key in the OS credential vault
// and drops a marker file in the tenant directory. Requires an unlocked
// session.
func (m *Manager) EnablePasskey(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return common.ErrVaultLocked
	}
	if m.secrets == nil {
		return common.ErrCapabilityUnavailable
	}
	if err := m.secrets.WrapAndStore(m.session.tenantID, m.session.key); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(m.session.dir, common.PasskeyMarkerName), []byte{}, 0o600); err != nil {
		return err
	}
	m.log.Info(ctx, "passkey enabled", "tenant_id", m.session.tenantID)
	return nil
}

// DisablePasskey clears the wrapped key and the marker. The primary
// password path is untouched.
func (m *Manager) DisablePasskey(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant, err := m.reg.Get(tenantID)
	if err != nil {
		return err
	}
	if m.secrets != nil {
		if err := m.secrets.Clear(tenantID); err != nil {
			return err
		}
	}
	if err := os.Remove(filepath.Join(tenant.DataPath, common.PasskeyMarkerName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	m.log.Info(ctx, "passkey disabled", "tenant_id", tenantID)
	return nil
}

// buildInitialState creates the staging directory for a new tenant: a fresh
// migrated sqlite database sealed into db.enc, the salt and an empty
// attachments dir. Returns the plaintext database image so the caller can
// open the session without decrypting again.
func buildInitialState(ctx context.Context, staging string, salt, key []byte) ([]byte, error) {
	if err := filex.EnsureDir(staging); err != nil {
		return nil, err
	}
	if err := filex.EnsureDir(filepath.Join(staging, common.AttachmentsDirName)); err != nil {
		return nil, err
	}

	workPath := filepath.Join(staging, common.WorkingDBFileName)
	db, err := sql.Open("sqlite", workPath)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, err
	}

	plain, err := os.ReadFile(workPath)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(workPath); err != nil {
		return nil, err
	}

	sealed, err := blobcipher.Seal(plain, key)
	if err != nil {
		return nil, err
	}
	if err := filex.WriteFileAtomic(filepath.Join(staging, common.EncryptedDBFileName), sealed, 0o600); err != nil {
		return nil, err
	}
	if err := filex.WriteFileAtomic(filepath.Join(staging, common.SaltFileName), salt, 0o600); err != nil {
		return nil, err
	}
	return plain, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func configured(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, common.EncryptedDBFileName))
	return err == nil
}

func hasPasskeyMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, common.PasskeyMarkerName))
	return err == nil
}

// recoverInterruptedSwap rolls back a ChangeSecret that crashed between its
// two directory renames: the tenant dir is missing but the ".old" copy is
// still complete, so it is moved back and the tenant stays unlockable with
// the previous secret.
func recoverInterruptedSwap(dataPath string) {
	if _, err := os.Stat(dataPath); err == nil {
		// Normal case; drop any stale pre-change copy.
		_ = os.RemoveAll(dataPath + ".old")
		return
	}
	if _, err := os.Stat(dataPath + ".old"); err == nil {
		_ = os.Rename(dataPath+".old", dataPath)
	}
}
