package vault

import (
	"database/sql"

	"github.com/gofrs/flock"

	"github.com/abrahampo1/cryptogest-sub001/internal/blobcipher"
)

// Session represents one unlocked tenant. It owns the in-memory session key,
// the open database handle over the working copy, and the advisory lock on
// the tenant directory. A Session is created by the Manager and becomes
// unusable after Lock.
type Session struct {
	tenantID string
	dir      string
	key      []byte
	db       *sql.DB
	flk      *flock.Flock
	blobs    *blobcipher.Store
}

// TenantID returns the id of the unlocked tenant.
func (s *Session) TenantID() string { return s.tenantID }

// Dir returns the tenant's data directory.
func (s *Session) Dir() string { return s.dir }

// DB returns the open handle over the decrypted working copy. All CRUD
// collaborators share this single handle.
func (s *Session) DB() *sql.DB { return s.db }

// Key returns the session key. Callers must not retain it past Lock.
func (s *Session) Key() []byte { return s.key }

// Attachments returns the cipher store for this tenant's attachment blobs.
func (s *Session) Attachments() *blobcipher.Store { return s.blobs }
