// Package registry maintains the plaintext index of empresas (tenants): id,
// display name, data directory and creation time, plus the last-used tenant.
// The index lives outside any vault so the tenant list can be shown before
// anything is unlocked. It never holds secrets.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
)

const indexFileName = "empresas.json"

// Tenant describes one registered empresa.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DataPath  string    `json:"data_path"`
	CreatedAt time.Time `json:"created_at"`
}

type indexFile struct {
	Tenants    map[string]Tenant `json:"tenants"`
	LastUsedID string            `json:"last_used_id,omitempty"`
}

// Registry loads and persists the tenant index under a data root. It is not
// safe for concurrent use; the bridge router serializes access to it.
type Registry struct {
	dataRoot string
	index    indexFile
}

// Open reads the index from dataRoot, creating an empty one if the file does
// not exist yet.
func Open(dataRoot string) (*Registry, error) {
	r := &Registry{
		dataRoot: dataRoot,
		index:    indexFile{Tenants: map[string]Tenant{}},
	}

	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read tenant index: %w", err)
	}
	if err := json.Unmarshal(data, &r.index); err != nil {
		return nil, fmt.Errorf("parse tenant index: %w", err)
	}
	if r.index.Tenants == nil {
		r.index.Tenants = map[string]Tenant{}
	}
	return r, nil
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.dataRoot, indexFileName)
}

// DefaultTenantDir returns the default data directory for a tenant id.
func (r *Registry) DefaultTenantDir(id string) string {
	return filepath.Join(r.dataRoot, "tenants", id)
}

// Add registers a new tenant. An empty customPath selects the default
// location under the data root. The generated id is returned.
func (r *Registry) Add(name, customPath string) (Tenant, error) {
	id := uuid.NewString()
	dir := customPath
	if dir == "" {
		dir = r.DefaultTenantDir(id)
	}
	t := Tenant{
		ID:        id,
		Name:      name,
		DataPath:  dir,
		CreatedAt: time.Now().UTC(),
	}
	r.index.Tenants[id] = t
	if err := r.save(); err != nil {
		delete(r.index.Tenants, id)
		return Tenant{}, err
	}
	return t, nil
}

// Get returns a tenant by id, or common.ErrNotFound.
func (r *Registry) Get(id string) (Tenant, error) {
	t, ok := r.index.Tenants[id]
	if !ok {
		return Tenant{}, fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	return t, nil
}

// List returns all tenants ordered by creation time.
func (r *Registry) List() []Tenant {
	out := make([]Tenant, 0, len(r.index.Tenants))
	for _, t := range r.index.Tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Rename changes a tenant's display name.
func (r *Registry) Rename(id, name string) error {
	t, ok := r.index.Tenants[id]
	if !ok {
		return fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	t.Name = name
	r.index.Tenants[id] = t
	return r.save()
}

// SetDataPath records a new data directory for the tenant. The caller is
// responsible for having moved the files already (backup.Packager.Migrate).
func (r *Registry) SetDataPath(id, path string) error {
	t, ok := r.index.Tenants[id]
	if !ok {
		return fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	t.DataPath = path
	r.index.Tenants[id] = t
	return r.save()
}

// Remove deletes the tenant from the index and, when removeData is set,
// destroys its data directory tree.
func (r *Registry) Remove(id string, removeData bool) error {
	t, ok := r.index.Tenants[id]
	if !ok {
		return fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	delete(r.index.Tenants, id)
	if r.index.LastUsedID == id {
		r.index.LastUsedID = ""
	}
	if err := r.save(); err != nil {
		r.index.Tenants[id] = t
		return err
	}
	if removeData {
		if err := os.RemoveAll(t.DataPath); err != nil {
			return fmt.Errorf("remove tenant data: %w", err)
		}
	}
	return nil
}

// SetLastUsed records the most recently unlocked tenant.
func (r *Registry) SetLastUsed(id string) error {
	if _, ok := r.index.Tenants[id]; !ok {
		return fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	r.index.LastUsedID = id
	return r.save()
}

// LastUsed returns the last-used tenant id, empty if none recorded.
func (r *Registry) LastUsed() string {
	return r.index.LastUsedID
}

func (r *Registry) save() error {
	if err := filex.EnsureDir(r.dataRoot); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.index, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(r.indexPath(), data, 0o600)
}
