package cli

import (
	"encoding/json"

	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
)

// tenantID pulls the id out of a tenant:create result.
func tenantID(data any) string {
	if t, ok := data.(registry.Tenant); ok {
		return t.ID
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v.ID
}

// documentBytes pulls the decrypted payload out of a documents:load result.
func documentBytes(data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var v struct {
		Data []byte `json:"data"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v.Data
}
