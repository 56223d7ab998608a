package bridge

import (
	"context"
	"encoding/json"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
)

type tenantListResult struct {
	Tenants    []registry.Tenant `json:"tenants"`
	LastUsedID string            `json:"lastUsedId,omitempty"`
}

func (r *Router) registerTenantHandlers() {
	r.handlers["tenant:list"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return tenantListResult{Tenants: r.reg.List(), LastUsedID: r.reg.LastUsed()}, nil
	}

	r.handlers["tenant:create"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			Name     string `json:"name"`
			DataPath string `json:"dataPath,omitempty"`
		}](payload)
		if err != nil {
			return nil, err
		}
		return r.reg.Add(p.Name, p.DataPath)
	}

	r.handlers["tenant:rename"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}](payload)
		if err != nil {
			return nil, err
		}
		return nil, r.reg.Rename(p.ID, p.Name)
	}

	r.handlers["tenant:delete"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			ID         string `json:"id"`
			RemoveData bool   `json:"removeData"`
		}](payload)
		if err != nil {
			return nil, err
		}
		if s := r.vaults.CurrentSession(); s != nil && s.TenantID() == p.ID {
			return nil, common.ErrVaultBusy
		}
		return nil, r.reg.Remove(p.ID, p.RemoveData)
	}
}
