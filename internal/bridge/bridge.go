// Package bridge is the process boundary of the application core: every
// operation is invoked as a named command with a JSON payload and answered
// with a typed result, never a raised error. Progress and device-link
// completion are delivered out of band on a fire-and-forget event stream.
//
// The router is also the single owner of the unlocked session: handlers get
// it through requireSession, nothing else holds vault state.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abrahampo1/cryptogest-sub001/internal/backup"
	"github.com/abrahampo1/cryptogest-sub001/internal/cloud"
	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
	"github.com/abrahampo1/cryptogest-sub001/internal/vault"
)

// Response is the uniform answer to a dispatched command. Error carries a
// stable machine-readable code, Message the human-readable detail.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Event names emitted on the out-of-band stream.
const (
	EventUploadProgress   = "cloud:upload-progress"
	EventDownloadProgress = "cloud:download-progress"
	EventDeviceLink       = "cloud:device-link"
)

// Event is one fire-and-forget notification.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Handler executes one command. The returned value becomes Response.Data.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Router dispatches commands to handlers and owns the session.
type Router struct {
	reg      *registry.Registry
	vaults   *vault.Manager
	packager *backup.Packager
	cloud    *cloud.Client
	log      logging.Logger

	handlers map[string]Handler
	events   chan Event
}

func NewRouter(reg *registry.Registry, vaults *vault.Manager, packager *backup.Packager, cloudClient *cloud.Client, log logging.Logger) *Router {
	r := &Router{
		reg:      reg,
		vaults:   vaults,
		packager: packager,
		cloud:    cloudClient,
		log:      log,
		handlers: map[string]Handler{},
		events:   make(chan Event, 64),
	}
	r.registerTenantHandlers()
	r.registerVaultHandlers()
	r.registerDataHandlers()
	r.registerBackupHandlers()
	r.registerCloudHandlers()
	return r
}

// Dispatch runs the named command. All errors come back as a typed result;
// partial work is never reported as success.
func (r *Router) Dispatch(ctx context.Context, command string, payload json.RawMessage) Response {
	h, ok := r.handlers[command]
	if !ok {
		return Response{Error: "unknown_command", Message: fmt.Sprintf("unknown command %q", command)}
	}

	data, err := h(ctx, payload)
	if err != nil {
		code := errorCode(err)
		r.log.Warn(ctx, "command failed", "command", command, "code", code, "detail", err.Error())
		return Response{Error: code, Message: err.Error()}
	}
	return Response{Success: true, Data: data}
}

// Events returns the event stream. A slow consumer loses events rather than
// blocking command execution.
func (r *Router) Events() <-chan Event { return r.events }

func (r *Router) emit(name string, payload any) {
	select {
	case r.events <- Event{Name: name, Payload: payload}:
	default:
	}
}

// CurrentSession exposes the active session, nil when locked.
func (r *Router) CurrentSession() *vault.Session {
	return r.vaults.CurrentSession()
}

func (r *Router) requireSession() (*vault.Session, error) {
	s := r.vaults.CurrentSession()
	if s == nil {
		return nil, common.ErrVaultLocked
	}
	return s, nil
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("bad payload: %w", err)
	}
	return v, nil
}

// errorCode maps the error taxonomy to stable codes for the UI layer.
func errorCode(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrPasskeyUnavailable):
		return "passkey_unavailable"
	case errors.Is(err, common.ErrAlreadyConfigured):
		return "already_configured"
	case errors.Is(err, common.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, common.ErrVaultLocked):
		return "vault_locked"
	case errors.Is(err, common.ErrVaultBusy):
		return "vault_busy"
	case errors.Is(err, common.ErrCapabilityUnavailable):
		return "capability_unavailable"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrDecryptionFailed):
		return "decryption_failed"
	case errors.Is(err, common.ErrCorruptArchive):
		return "corrupt_archive"
	case errors.Is(err, common.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, common.ErrExportFailed):
		return "export_failed"
	case errors.Is(err, common.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, common.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, common.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, common.ErrLinkRejected):
		return "link_rejected"
	case errors.Is(err, common.ErrNetwork):
		return "network_error"
	default:
		return "internal_error"
	}
}
