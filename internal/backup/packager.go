// Package backup packages a tenant's encrypted at-rest state (db.enc, salt,
// attachment blobs) into a single portable zip archive with an integrity
// manifest, and restores such archives into fresh tenant directories. It
// also relocates tenant directories between custom and default paths.
//
// Everything the packager touches is already ciphertext; no key material is
// needed here.
package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
)

type Packager struct {
	log logging.Logger
}

func NewPackager(log logging.Logger) *Packager {
	return &Packager{log: log}
}

// Export writes an archive of the tenant's at-rest state into destDir and
// returns its path. The archive is written under a temporary name and
// renamed on success, so a failed export never leaves a file that looks
// valid. I/O failures wrap common.ErrExportFailed.
func (p *Packager) Export(ctx context.Context, tenant registry.Tenant, note, destDir string) (string, error) {
	if err := filex.EnsureDir(destDir); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrExportFailed, err)
	}

	tmp, err := os.CreateTemp(destDir, ".export-*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrExportFailed, err)
	}
	tmpName := tmp.Name()

	manifest, err := p.writeArchive(tmp, tenant, note)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", common.ErrExportFailed, err)
	}

	name := fmt.Sprintf("cryptogest-%s-%s.zip", tenant.ID, manifest.CreatedAt.Format("20060102-150405"))
	finalPath := filepath.Join(destDir, name)
	if err := os.Rename(tmpName, finalPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", common.ErrExportFailed, err)
	}

	p.log.Info(ctx, "backup exported", "tenant_id", tenant.ID, "path", finalPath, "files", len(manifest.Files))
	return finalPath, nil
}

// writeArchive streams db.enc, salt and every attachment blob into the zip,
// hashing each file on the way, and finishes with the manifest entry.
func (p *Packager) writeArchive(w io.Writer, tenant registry.Tenant, note string) (*Manifest, error) {
	zw := zip.NewWriter(w)

	manifest := &Manifest{
		FormatVersion: FormatVersion,
		TenantID:      tenant.ID,
		CreatedAt:     time.Now().UTC(),
		Note:          note,
	}

	add := func(archiveName, srcPath string) error {
		entry, err := zw.Create(archiveName)
		if err != nil {
			return err
		}
		f, err := os.Open(srcPath)
		if err != nil {
			return err
		}
		defer f.Close()

		h := sha256.New()
		n, err := io.Copy(io.MultiWriter(entry, h), f)
		if err != nil {
			return err
		}
		manifest.Files = append(manifest.Files, FileEntry{
			Name:   archiveName,
			SHA256: hex.EncodeToString(h.Sum(nil)),
			Size:   n,
		})
		return nil
	}

	if err := add(common.EncryptedDBFileName, filepath.Join(tenant.DataPath, common.EncryptedDBFileName)); err != nil {
		return nil, err
	}
	if err := add(common.SaltFileName, filepath.Join(tenant.DataPath, common.SaltFileName)); err != nil {
		return nil, err
	}

	attDir := filepath.Join(tenant.DataPath, common.AttachmentsDirName)
	entries, err := os.ReadDir(attDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := common.AttachmentsDirName + "/" + e.Name()
		if err := add(name, filepath.Join(attDir, e.Name())); err != nil {
			return nil, err
		}
	}

	mf, err := zw.Create(ManifestName)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(mf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Import validates the archive and unpacks it into targetDir. The target
// must not already contain a configured tenant; the caller decides where a
// restore lands and confirms overwrites at its own boundary. Extraction
// happens in a staging directory renamed into place, so a failed import
// leaves nothing behind.
func (p *Packager) Import(ctx context.Context, archivePath, targetDir string) (*Manifest, error) {
	if _, err := os.Stat(filepath.Join(targetDir, common.EncryptedDBFileName)); err == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrAlreadyConfigured, targetDir)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrCorruptArchive, err)
	}
	defer zr.Close()

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if manifest.FormatVersion > FormatVersion {
		return nil, fmt.Errorf("%w: archive format %d, supported up to %d",
			common.ErrUnsupportedFormat, manifest.FormatVersion, FormatVersion)
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	staging := targetDir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return nil, err
	}
	if err := filex.EnsureDir(staging); err != nil {
		return nil, err
	}
	// attachments dir must exist even for tenants without attachments
	if err := filex.EnsureDir(filepath.Join(staging, common.AttachmentsDirName)); err != nil {
		return nil, err
	}

	for _, entry := range manifest.Files {
		zf, ok := byName[entry.Name]
		if !ok {
			_ = os.RemoveAll(staging)
			return nil, fmt.Errorf("%w: missing entry %s", common.ErrCorruptArchive, entry.Name)
		}
		if err := extractVerified(zf, entry, staging); err != nil {
			_ = os.RemoveAll(staging)
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(targetDir), 0o700); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}
	_ = os.Remove(targetDir) // an empty placeholder dir may exist
	if err := os.Rename(staging, targetDir); err != nil {
		_ = os.RemoveAll(staging)
		return nil, err
	}

	p.log.Info(ctx, "backup imported", "tenant_id", manifest.TenantID, "target", targetDir)
	return manifest, nil
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	for _, f := range zr.File {
		if f.Name != ManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrCorruptArchive, err)
		}
		defer rc.Close()

		var m Manifest
		if err := json.NewDecoder(rc).Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: unreadable manifest: %w", common.ErrCorruptArchive, err)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%w: no manifest", common.ErrCorruptArchive)
}

// extractVerified copies one archive entry into the staging dir while
// checking its size and checksum against the manifest. The file-level
// detail in errors helps support diagnose broken archives without exposing
// any plaintext.
func extractVerified(zf *zip.File, entry FileEntry, staging string) error {
	// entry names come from the manifest; reject anything escaping staging
	cleaned := filepath.Clean(entry.Name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || len(cleaned) >= 3 && cleaned[:3] == ".."+string(os.PathSeparator) {
		return fmt.Errorf("%w: unsafe entry name %q", common.ErrCorruptArchive, entry.Name)
	}
	target := filepath.Join(staging, cleaned)
	if err := filex.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrCorruptArchive, entry.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h), rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrCorruptArchive, entry.Name, err)
	}

	if n != entry.Size {
		return fmt.Errorf("%w: %s: size %d, manifest says %d", common.ErrCorruptArchive, entry.Name, n, entry.Size)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != entry.SHA256 {
		return fmt.Errorf("%w: %s: checksum mismatch", common.ErrCorruptArchive, entry.Name)
	}
	return nil
}

// Migrate relocates a tenant's data directory to newPath: copy, verify,
// update the registry, and only then delete the original. A failure at any
// step leaves the tenant usable at its old location.
func (p *Packager) Migrate(ctx context.Context, reg *registry.Registry, tenantID, newPath string) error {
	tenant, err := reg.Get(tenantID)
	if err != nil {
		return err
	}
	if newPath == tenant.DataPath {
		return nil
	}
	if _, err := os.Stat(filepath.Join(newPath, common.EncryptedDBFileName)); err == nil {
		return fmt.Errorf("%w: %s", common.ErrAlreadyConfigured, newPath)
	}

	if err := filex.CopyDir(tenant.DataPath, newPath); err != nil {
		_ = os.RemoveAll(newPath)
		return err
	}
	if err := verifyTreesEqual(tenant.DataPath, newPath); err != nil {
		_ = os.RemoveAll(newPath)
		return err
	}
	if err := reg.SetDataPath(tenantID, newPath); err != nil {
		_ = os.RemoveAll(newPath)
		return err
	}
	if err := os.RemoveAll(tenant.DataPath); err != nil {
		p.log.Warn(ctx, "old tenant directory left behind", "tenant_id", tenantID, "path", tenant.DataPath)
	}

	p.log.Info(ctx, "tenant data migrated", "tenant_id", tenantID, "path", newPath)
	return nil
}

// ResetToDefault moves a tenant from a custom path back under the data root.
func (p *Packager) ResetToDefault(ctx context.Context, reg *registry.Registry, tenantID string) error {
	return p.Migrate(ctx, reg, tenantID, reg.DefaultTenantDir(tenantID))
}

// verifyTreesEqual checks that every regular file under src exists in dst
// with an identical checksum.
func verifyTreesEqual(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		srcSum, err := filex.SHA256File(path)
		if err != nil {
			return err
		}
		dstSum, err := filex.SHA256File(filepath.Join(dst, rel))
		if err != nil {
			return fmt.Errorf("verify copy of %s: %w", rel, err)
		}
		if srcSum != dstSum {
			return fmt.Errorf("verify copy of %s: checksum mismatch", rel)
		}
		return nil
	})
}
