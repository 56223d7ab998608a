package bridge

import (
	"context"
	"encoding/json"

	"github.com/abrahampo1/cryptogest-sub001/internal/backup"
	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
)

func (r *Router) registerBackupHandlers() {
	r.handlers["backup:export"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			Note    string `json:"note,omitempty"`
			DestDir string `json:"destDir"`
		}](payload)
		if err != nil {
			return nil, err
		}
		path, err := r.exportCurrent(ctx, p.Note, p.DestDir)
		if err != nil {
			return nil, err
		}
		return struct {
			Path string `json:"path"`
		}{path}, nil
	}

	r.handlers["backup:import"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			ArchivePath string `json:"archivePath"`
			Name        string `json:"name"`
			DataPath    string `json:"dataPath,omitempty"`
		}](payload)
		if err != nil {
			return nil, err
		}
		tenant, manifest, err := r.importArchive(ctx, p.ArchivePath, p.Name, p.DataPath)
		if err != nil {
			return nil, err
		}
		return struct {
			Tenant   registry.Tenant  `json:"tenant"`
			Manifest *backup.Manifest `json:"manifest"`
		}{tenant, manifest}, nil
	}

	r.handlers["backup:migrate"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
			NewPath  string `json:"newPath"`
		}](payload)
		if err != nil {
			return nil, err
		}
		if err := r.requireTenantLocked(p.TenantID); err != nil {
			return nil, err
		}
		return nil, r.packager.Migrate(ctx, r.reg, p.TenantID, p.NewPath)
	}

	r.handlers["backup:reset-path"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
		}](payload)
		if err != nil {
			return nil, err
		}
		if err := r.requireTenantLocked(p.TenantID); err != nil {
			return nil, err
		}
		return nil, r.packager.ResetToDefault(ctx, r.reg, p.TenantID)
	}
}

// exportCurrent flushes the unlocked session so db.enc reflects the live
// state, then packages the tenant directory.
func (r *Router) exportCurrent(ctx context.Context, note, destDir string) (string, error) {
	s, err := r.requireSession()
	if err != nil {
		return "", err
	}
	if err := r.vaults.Flush(ctx); err != nil {
		return "", err
	}
	tenant, err := r.reg.Get(s.TenantID())
	if err != nil {
		return "", err
	}
	return r.packager.Export(ctx, tenant, note, destDir)
}

// importArchive restores an archive as a brand-new tenant. The registry
// entry is created first so the target path is reserved; a failed unpack
// rolls it back. Restoring over an existing tenant is never silent: the
// packager refuses configured directories, and callers wanting replacement
// must delete the tenant explicitly first.
func (r *Router) importArchive(ctx context.Context, archivePath, name, dataPath string) (registry.Tenant, *backup.Manifest, error) {
	tenant, err := r.reg.Add(name, dataPath)
	if err != nil {
		return registry.Tenant{}, nil, err
	}
	manifest, err := r.packager.Import(ctx, archivePath, tenant.DataPath)
	if err != nil {
		_ = r.reg.Remove(tenant.ID, false)
		return registry.Tenant{}, nil, err
	}
	return tenant, manifest, nil
}

// requireTenantLocked rejects directory moves while the tenant is unlocked;
// the working copy and advisory lock must not be relocated underneath an
// open handle.
func (r *Router) requireTenantLocked(tenantID string) error {
	if s := r.vaults.CurrentSession(); s != nil && s.TenantID() == tenantID {
		return common.ErrVaultBusy
	}
	return nil
}
