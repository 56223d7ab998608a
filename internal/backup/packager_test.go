package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/filex"
	"github.com/abrahampo1/cryptogest-sub001/internal/logging"
	"github.com/abrahampo1/cryptogest-sub001/internal/registry"
)

// newTestTenant lays out a fake at-rest tenant directory: db.enc, salt and a
// couple of attachment blobs. The packager never looks inside the files, so
// arbitrary bytes are enough.
func newTestTenant(t *testing.T) registry.Tenant {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tenant")
	require.NoError(t, filex.EnsureDir(filepath.Join(dir, common.AttachmentsDirName)))

	files := map[string][]byte{
		common.EncryptedDBFileName:                        []byte("sealed-database-bytes"),
		common.SaltFileName:                               bytes.Repeat([]byte{0xA5}, 32),
		filepath.Join(common.AttachmentsDirName, "blob1"): []byte("sealed attachment one"),
		filepath.Join(common.AttachmentsDirName, "blob2"): []byte("sealed attachment two"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}
	return registry.Tenant{ID: "t-1", Name: "Acme SL", DataPath: dir}
}

func readTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestPackagerExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(logging.Nop())
	tenant := newTestTenant(t)

	archive, err := p.Export(ctx, tenant, "before upgrade", t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, archive)

	target := filepath.Join(t.TempDir(), "restored")
	manifest, err := p.Import(ctx, archive, target)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, manifest.FormatVersion)
	assert.Equal(t, tenant.ID, manifest.TenantID)
	assert.Equal(t, "before upgrade", manifest.Note)
	assert.Len(t, manifest.Files, 4)

	assert.Equal(t, readTree(t, tenant.DataPath), readTree(t, target))
}

func TestPackagerExportLeavesNoPartialFileOnError(t *testing.T) {
	p := NewPackager(logging.Nop())
	dest := t.TempDir()

	// tenant dir without db.enc
	tenant := registry.Tenant{ID: "t-2", DataPath: filepath.Join(t.TempDir(), "missing")}
	_, err := p.Export(context.Background(), tenant, "", dest)
	require.ErrorIs(t, err, common.ErrExportFailed)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// rewriteArchive copies src into a new zip, letting mutate replace the raw
// bytes of selected entries while the manifest stays untouched.
func rewriteArchive(t *testing.T, src string, mutate func(name string, data []byte) []byte) string {
	t.Helper()
	zr, err := zip.OpenReader(src)
	require.NoError(t, err)
	defer zr.Close()

	out := filepath.Join(t.TempDir(), "mutated.zip")
	f, err := os.Create(out)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		w, err := zw.Create(zf.Name)
		require.NoError(t, err)
		_, err = w.Write(mutate(zf.Name, data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return out
}

func TestPackagerImportDetectsTampering(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(logging.Nop())
	tenant := newTestTenant(t)

	archive, err := p.Export(ctx, tenant, "", t.TempDir())
	require.NoError(t, err)

	tampered := rewriteArchive(t, archive, func(name string, data []byte) []byte {
		if name == common.EncryptedDBFileName {
			data[0] ^= 0xFF
		}
		return data
	})

	target := filepath.Join(t.TempDir(), "restored")
	_, err = p.Import(ctx, tampered, target)
	require.ErrorIs(t, err, common.ErrCorruptArchive)
	assert.NoDirExists(t, target)
	assert.NoDirExists(t, target+".staging")
}

func TestPackagerImportRejectsNewerFormat(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(logging.Nop())
	tenant := newTestTenant(t)

	archive, err := p.Export(ctx, tenant, "", t.TempDir())
	require.NoError(t, err)

	future := rewriteArchive(t, archive, func(name string, data []byte) []byte {
		if name != ManifestName {
			return data
		}
		var m Manifest
		require.NoError(t, json.Unmarshal(data, &m))
		m.FormatVersion = FormatVersion + 1
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	})

	_, err = p.Import(ctx, future, filepath.Join(t.TempDir(), "restored"))
	require.ErrorIs(t, err, common.ErrUnsupportedFormat)
}

func TestPackagerImportRefusesConfiguredTarget(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(logging.Nop())
	tenant := newTestTenant(t)

	archive, err := p.Export(ctx, tenant, "", t.TempDir())
	require.NoError(t, err)

	// the tenant's own directory already holds a db.enc
	_, err = p.Import(ctx, archive, tenant.DataPath)
	require.ErrorIs(t, err, common.ErrAlreadyConfigured)
}

func TestPackagerImportRejectsGarbageFile(t *testing.T) {
	p := NewPackager(logging.Nop())
	garbage := filepath.Join(t.TempDir(), "not-a-zip.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a zip"), 0o600))

	_, err := p.Import(context.Background(), garbage, filepath.Join(t.TempDir(), "x"))
	require.ErrorIs(t, err, common.ErrCorruptArchive)
}

func TestPackagerMigrate(t *testing.T) {
	ctx := context.Background()
	p := NewPackager(logging.Nop())

	root := t.TempDir()
	reg, err := registry.Open(root)
	require.NoError(t, err)
	tenant, err := reg.Add("Acme SL", "")
	require.NoError(t, err)

	require.NoError(t, filex.EnsureDir(filepath.Join(tenant.DataPath, common.AttachmentsDirName)))
	require.NoError(t, os.WriteFile(filepath.Join(tenant.DataPath, common.EncryptedDBFileName), []byte("sealed"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(tenant.DataPath, common.SaltFileName), []byte("salt"), 0o600))
	before := readTree(t, tenant.DataPath)

	custom := filepath.Join(t.TempDir(), "external-disk", "acme")
	require.NoError(t, p.Migrate(ctx, reg, tenant.ID, custom))

	moved, err := reg.Get(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, custom, moved.DataPath)
	assert.Equal(t, before, readTree(t, custom))
	assert.NoDirExists(t, tenant.DataPath)

	t.Run("to occupied path", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "occupied")
		require.NoError(t, filex.EnsureDir(other))
		require.NoError(t, os.WriteFile(filepath.Join(other, common.EncryptedDBFileName), []byte("x"), 0o600))

		err := p.Migrate(ctx, reg, tenant.ID, other)
		require.ErrorIs(t, err, common.ErrAlreadyConfigured)

		// still usable at the custom path
		cur, err := reg.Get(tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, custom, cur.DataPath)
		assert.Equal(t, before, readTree(t, custom))
	})

	t.Run("back to default", func(t *testing.T) {
		require.NoError(t, p.ResetToDefault(ctx, reg, tenant.ID))

		cur, err := reg.Get(tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, reg.DefaultTenantDir(tenant.ID), cur.DataPath)
		assert.Equal(t, before, readTree(t, cur.DataPath))
	})

	t.Run("unknown tenant", func(t *testing.T) {
		err := p.Migrate(ctx, reg, "nope", filepath.Join(t.TempDir(), "y"))
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}
