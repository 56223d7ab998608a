package bridge

import (
	"context"
	"encoding/json"
)

type sessionInfo struct {
	TenantID string `json:"tenantId"`
}

func (r *Router) registerVaultHandlers() {
	r.handlers["vault:setup"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
			Secret   string `json:"secret"`
		}](payload)
		if err != nil {
			return nil, err
		}
		s, err := r.vaults.Create(ctx, p.TenantID, []byte(p.Secret))
		if err != nil {
			return nil, err
		}
		return sessionInfo{TenantID: s.TenantID()}, nil
	}

	r.handlers["vault:unlock"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
			Secret   string `json:"secret"`
		}](payload)
		if err != nil {
			return nil, err
		}
		s, err := r.vaults.Unlock(ctx, p.TenantID, []byte(p.Secret))
		if err != nil {
			return nil, err
		}
		return sessionInfo{TenantID: s.TenantID()}, nil
	}

	r.handlers["vault:unlock-passkey"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
		}](payload)
		if err != nil {
			return nil, err
		}
		s, err := r.vaults.UnlockWithSecretStore(ctx, p.TenantID)
		if err != nil {
			return nil, err
		}
		return sessionInfo{TenantID: s.TenantID()}, nil
	}

	r.handlers["vault:lock"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, r.vaults.Lock(ctx)
	}

	r.handlers["vault:change-secret"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID      string `json:"tenantId"`
			CurrentSecret string `json:"currentSecret"`
			NewSecret     string `json:"newSecret"`
		}](payload)
		if err != nil {
			return nil, err
		}
		return nil, r.vaults.ChangeSecret(ctx, p.TenantID, []byte(p.CurrentSecret), []byte(p.NewSecret))
	}

	r.handlers["vault:passkey-enable"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, r.vaults.EnablePasskey(ctx)
	}

	r.handlers["vault:passkey-disable"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			TenantID string `json:"tenantId"`
		}](payload)
		if err != nil {
			return nil, err
		}
		return nil, r.vaults.DisablePasskey(ctx, p.TenantID)
	}

	r.handlers["session:current"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		s := r.vaults.CurrentSession()
		if s == nil {
			return nil, nil
		}
		return sessionInfo{TenantID: s.TenantID()}, nil
	}
}
