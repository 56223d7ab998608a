package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
)

const credentialsFileName = "cloud-credentials.json"

// Credentials is the persisted auth credential produced by a completed
// device-link handshake. The token is a JWT scoped to this installation.
type Credentials struct {
	Token  string `json:"token"`
	Server string `json:"server"`
	User   string `json:"user,omitempty"`
}

// CredentialStore persists the installation's cloud credential.
type CredentialStore interface {
	Load() (*Credentials, error)
	Save(*Credentials) error
	Clear() error
}

// FileCredentialStore keeps the credential in a JSON file under the data
// root, next to the tenant index. The token grants access to encrypted
// archives only, so file storage is acceptable; vault keys never go here.
type FileCredentialStore struct {
	path string
}

func NewFileCredentialStore(dataRoot string) *FileCredentialStore {
	return &FileCredentialStore{path: filepath.Join(dataRoot, credentialsFileName)}
}

// Load returns the stored credential, or common.ErrNotConfigured when the
// installation has never been linked.
func (s *FileCredentialStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no cloud credential", common.ErrNotConfigured)
		}
		return nil, fmt.Errorf("read cloud credential: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse cloud credential: %w", err)
	}
	return &c, nil
}

func (s *FileCredentialStore) Save(c *Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path, data, 0o600)
}

func (s *FileCredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// tokenExpired reports whether the JWT carries an exp claim in the past.
// The signature is not verified here; the server remains the authority and
// still answers 401 for anything we let through. The local check exists so
// a stale credential fails fast without a round trip.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}
