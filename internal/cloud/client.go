// Package cloud implements the client side of the remote backup service: a
// REST contract for listing, uploading, downloading and deleting archives,
// auth/plan queries, and the device-link handshake that provisions this
// installation's credential. Everything that crosses the wire is already
// ciphertext produced by the vault layer.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
)

// BackupRecord is the client-local view of one remote backup.
type BackupRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
	Note      string    `json:"note,omitempty"`
}

// BackupPage is one page of the remote backup listing.
type BackupPage struct {
	Backups    []BackupRecord `json:"backups"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// AuthStatus is the result of an auth check against the service.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
}

// PlanInfo describes the account's subscription and storage quota.
type PlanInfo struct {
	Name       string `json:"name"`
	UsedBytes  int64  `json:"usedBytes"`
	QuotaBytes int64  `json:"quotaBytes"`
}

// Client talks to the backup service. Idempotent requests (list, download,
// delete, auth, plan) go through a retrying transport; uploads are sent
// exactly once, since a silent retry of a financial-data archive could
// double-submit.
type Client struct {
	endpoint string
	creds    CredentialStore
	http     *http.Client
	uploader *http.Client
	interval time.Duration
	log      logging.Logger
	now      func() time.Time
}

// NewClient builds a client for the service at endpoint. interval throttles
// progress events on transfers.
func NewClient(endpoint string, timeout, interval time.Duration, creds CredentialStore, log logging.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		endpoint: endpoint,
		creds:    creds,
		http:     rc.StandardClient(),
		uploader: &http.Client{}, // no client timeout, bounded by ctx
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// NewTransferTracker returns a tracker configured with the client's progress
// interval, for passing to Upload or Download.
func (c *Client) NewTransferTracker() *Tracker {
	return NewTracker(c.interval)
}

func (c *Client) url(path string) string {
	return c.endpoint + path
}

// authHeader loads the persisted credential and fails fast on a token that
// is already expired.
func (c *Client) authHeader() (string, error) {
	cr, err := c.creds.Load()
	if err != nil {
		if errors.Is(err, common.ErrNotConfigured) {
			return "", fmt.Errorf("%w: installation not linked", common.ErrAuthExpired)
		}
		return "", err
	}
	if tokenExpired(cr.Token, c.now()) {
		return "", fmt.Errorf("%w: token expired", common.ErrAuthExpired)
	}
	return "Bearer " + cr.Token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	auth, err := c.authHeader()
	if err != nil {
		return nil, err
	}
	req.Header.Set(common.AuthTokenHeaderName, auth)
	return req, nil
}

// mapStatus converts a non-2xx response into the error taxonomy.
func mapStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return common.ErrAuthExpired
	case http.StatusPaymentRequired, http.StatusRequestEntityTooLarge:
		return common.ErrQuotaExceeded
	case http.StatusNotFound:
		return common.ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", common.ErrNetwork, status)
	}
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mapStatus(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad response body: %w", common.ErrNetwork, err)
	}
	return nil
}

// ListBackups returns one page of the remote backup listing.
func (c *Client) ListBackups(ctx context.Context, page int) (*BackupPage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/backups?page="+strconv.Itoa(page), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	var out BackupPage
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload streams the archive at archivePath as a multipart body and returns
// the remote id. Progress lands on tr if non-nil; its stream ends with 100
// only after the server has acknowledged the upload.
func (c *Client) Upload(ctx context.Context, archivePath, note string, tr *Tracker) (string, error) {
	id, err := c.upload(ctx, archivePath, note, tr)
	if tr != nil {
		if err != nil {
			tr.abort()
		} else {
			tr.finish()
		}
	}
	return id, err
}

func (c *Client) upload(ctx context.Context, archivePath, note string, tr *Tracker) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	auth, err := c.authHeader()
	if err != nil {
		return "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		if err := mw.WriteField("note", note); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := mw.CreateFormFile("archive", filepath.Base(archivePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, newProgressReader(f, info.Size(), tr)); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/backups"), pr)
	if err != nil {
		return "", err
	}
	req.Header.Set(common.AuthTokenHeaderName, auth)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.uploader.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}

	c.log.Info(ctx, "backup uploaded", "id", out.ID, "size", info.Size())
	return out.ID, nil
}

// Download streams the remote archive into destDir and returns its path. The
// file is written under a temporary name and renamed on success, so an
// aborted download never leaves a path that looks like a valid archive.
func (c *Client) Download(ctx context.Context, backupID, destDir string, tr *Tracker) (string, error) {
	path, err := c.download(ctx, backupID, destDir, tr)
	if tr != nil {
		if err != nil {
			tr.abort()
		} else {
			tr.finish()
		}
	}
	return path, err
}

func (c *Client) download(ctx context.Context, backupID, destDir string, tr *Tracker) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/backups/"+url.PathEscape(backupID), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", mapStatus(resp.StatusCode)
	}

	tmp, err := os.CreateTemp(destDir, ".download-*.zip")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	_, cerr := io.Copy(tmp, newProgressReader(resp.Body, resp.ContentLength, tr))
	if serr := tmp.Sync(); cerr == nil {
		cerr = serr
	}
	if closeErr := tmp.Close(); cerr == nil {
		cerr = closeErr
	}
	if cerr != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", common.ErrNetwork, cerr)
	}

	finalPath := filepath.Join(destDir, fmt.Sprintf("cryptogest-remote-%s.zip", backupID))
	if err := os.Rename(tmpName, finalPath); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	c.log.Info(ctx, "backup downloaded", "id", backupID, "path", finalPath)
	return finalPath, nil
}

// DeleteRemote removes a remote backup.
func (c *Client) DeleteRemote(ctx context.Context, backupID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/backups/"+url.PathEscape(backupID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return mapStatus(resp.StatusCode)
	}
	return nil
}

// AuthCheck asks the service whether the persisted credential is still valid.
func (c *Client) AuthCheck(ctx context.Context) (*AuthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/check", nil)
	if err != nil {
		if errors.Is(err, common.ErrAuthExpired) {
			return &AuthStatus{Authenticated: false}, nil
		}
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	var out AuthStatus
	if err := decodeJSON(resp, &out); err != nil {
		if errors.Is(err, common.ErrAuthExpired) {
			return &AuthStatus{Authenticated: false}, nil
		}
		return nil, err
	}
	return &out, nil
}

// Plan returns the account's subscription and quota info.
func (c *Client) Plan(ctx context.Context) (*PlanInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/plan", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	var out PlanInfo
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmDeviceLink exchanges the short-lived token from the deep-link
// callback for a long-lived credential and persists it. The request goes to
// the server named in the callback, which becomes this installation's
// endpoint on success.
func (c *Client) ConfirmDeviceLink(ctx context.Context, token, server string) (*Credentials, error) {
	body, err := json.Marshal(map[string]string{"token": token, "server": server})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/auth/device-link/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, mapStatus(resp.StatusCode)
	}

	var out struct {
		Success bool   `json:"success"`
		Token   string `json:"token,omitempty"`
		User    string `json:"user,omitempty"`
		Server  string `json:"server,omitempty"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad response body: %w", common.ErrNetwork, err)
	}
	if !out.Success {
		if out.Error == "token_expired" {
			return nil, fmt.Errorf("%w: %s", common.ErrTokenExpired, out.Error)
		}
		return nil, fmt.Errorf("%w: %s", common.ErrLinkRejected, out.Error)
	}

	creds := &Credentials{Token: out.Token, Server: out.Server, User: out.User}
	if creds.Server == "" {
		creds.Server = server
	}
	if err := c.creds.Save(creds); err != nil {
		return nil, err
	}

	c.log.Info(ctx, "device linked", "user", creds.User, "server", creds.Server)
	return creds, nil
}

// Unlink discards the persisted credential.
func (c *Client) Unlink() error {
	return c.creds.Clear()
}
