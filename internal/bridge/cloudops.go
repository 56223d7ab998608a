package bridge

import (
	"context"
	"encoding/json"
	"os"

	"github.com/abrahampo1/cryptogest-sub001/internal/cloud"
)

type progressPayload struct {
	Percent int `json:"percent"`
}

type deviceLinkPayload struct {
	Success bool   `json:"success"`
	User    string `json:"user,omitempty"`
	Server  string `json:"server,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r *Router) registerCloudHandlers() {
	r.handlers["cloud:list"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			Page int `json:"page"`
		}](payload)
		if err != nil {
			return nil, err
		}
		if p.Page < 1 {
			p.Page = 1
		}
		return r.cloud.ListBackups(ctx, p.Page)
	}

	r.handlers["cloud:upload"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			Note string `json:"note,omitempty"`
		}](payload)
		if err != nil {
			return nil, err
		}
		id, err := r.uploadCurrent(ctx, p.Note)
		if err != nil {
			return nil, err
		}
		return struct {
			ID string `json:"id"`
		}{id}, nil
	}

	r.handlers["cloud:download"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			ID      string `json:"id"`
			DestDir string `json:"destDir"`
		}](payload)
		if err != nil {
			return nil, err
		}

		tr := r.cloud.NewTransferTracker()
		go r.pump(EventDownloadProgress, tr)

		path, err := r.cloud.Download(ctx, p.ID, p.DestDir, tr)
		if err != nil {
			return nil, err
		}
		return struct {
			Path string `json:"path"`
		}{path}, nil
	}

	r.handlers["cloud:delete"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			ID string `json:"id"`
		}](payload)
		if err != nil {
			return nil, err
		}
		return nil, r.cloud.DeleteRemote(ctx, p.ID)
	}

	r.handlers["cloud:auth-check"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return r.cloud.AuthCheck(ctx)
	}

	r.handlers["cloud:plan"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return r.cloud.Plan(ctx)
	}

	// The deep-link callback fires asynchronously; the command only accepts
	// the token and the outcome arrives as a one-shot event.
	r.handlers["cloud:device-link"] = func(ctx context.Context, payload json.RawMessage) (any, error) {
		p, err := decode[struct {
			Token  string `json:"token"`
			Server string `json:"server"`
		}](payload)
		if err != nil {
			return nil, err
		}

		go func() {
			creds, err := r.cloud.ConfirmDeviceLink(context.WithoutCancel(ctx), p.Token, p.Server)
			if err != nil {
				r.emit(EventDeviceLink, deviceLinkPayload{Error: errorCode(err)})
				return
			}
			r.emit(EventDeviceLink, deviceLinkPayload{Success: true, User: creds.User, Server: creds.Server})
		}()
		return nil, nil
	}

	r.handlers["cloud:unlink"] = func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, r.cloud.Unlink()
	}
}

// uploadCurrent exports the unlocked tenant into a scratch dir and streams
// the archive to the service. The local copy is removed afterwards either
// way; the export going to the cloud is not a local backup.
func (r *Router) uploadCurrent(ctx context.Context, note string) (string, error) {
	scratch, err := os.MkdirTemp("", "cryptogest-upload-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)

	archive, err := r.exportCurrent(ctx, note, scratch)
	if err != nil {
		return "", err
	}

	tr := r.cloud.NewTransferTracker()
	go r.pump(EventUploadProgress, tr)

	return r.cloud.Upload(ctx, archive, note, tr)
}

// pump forwards a tracker's percentages onto the event stream.
func (r *Router) pump(event string, tr *cloud.Tracker) {
	for p := range tr.Events() {
		r.emit(event, progressPayload{Percent: p})
	}
}
