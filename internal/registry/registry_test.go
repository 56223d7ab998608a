package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
)

func TestOpen_EmptyRoot(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, r.List())
	assert.Empty(t, r.LastUsed())
}

func TestAdd_DefaultsAndPersistence(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	require.NoError(t, err)

	tenant, err := r.Add("Acme S.L.", "")
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, "Acme S.L.", tenant.Name)
	assert.Equal(t, r.DefaultTenantDir(tenant.ID), tenant.DataPath)
	assert.False(t, tenant.CreatedAt.IsZero())

	// re-open from disk and verify the entry survived
	r2, err := Open(root)
	require.NoError(t, err)
	got, err := r2.Get(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)
	assert.Equal(t, "Acme S.L.", got.Name)
}

func TestAdd_CustomPath(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)

	custom := filepath.Join(t.TempDir(), "external-volume", "acme")
	tenant, err := r.Add("Acme", custom)
	require.NoError(t, err)
	assert.Equal(t, custom, tenant.DataPath)
}

func TestGet_Missing(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_OrderedByCreation(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)

	a, err := r.Add("First", "")
	require.NoError(t, err)
	b, err := r.Add("Second", "")
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestRename(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	require.NoError(t, err)

	tenant, err := r.Add("Old Name", "")
	require.NoError(t, err)
	require.NoError(t, r.Rename(tenant.ID, "New Name"))

	r2, err := Open(root)
	require.NoError(t, err)
	got, err := r2.Get(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)

	assert.ErrorIs(t, r.Rename("missing", "x"), common.ErrNotFound)
}

func TestRemove_WithData(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	require.NoError(t, err)

	tenant, err := r.Add("Doomed", "")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(tenant.DataPath, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(tenant.DataPath, "db.enc"), []byte("x"), 0o600))
	require.NoError(t, r.SetLastUsed(tenant.ID))

	require.NoError(t, r.Remove(tenant.ID, true))

	_, err = r.Get(tenant.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, r.LastUsed(), "last-used pointer must be cleared")

	_, err = os.Stat(tenant.DataPath)
	assert.True(t, os.IsNotExist(err), "data directory must be gone")
}

func TestLastUsed_RoundTrip(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	require.NoError(t, err)

	tenant, err := r.Add("Acme", "")
	require.NoError(t, err)
	require.NoError(t, r.SetLastUsed(tenant.ID))

	r2, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, r2.LastUsed())

	assert.ErrorIs(t, r.SetLastUsed("missing"), common.ErrNotFound)
}
