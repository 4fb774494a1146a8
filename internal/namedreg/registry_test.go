package namedreg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/kestrel/internal/alloc"
	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/btree"
)

func openTestRegistry(t *testing.T) (*alloc.Allocator, *Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reg.db")
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	a, err := alloc.Open(f, alloc.Options{BlockSize: 64})
	require.NoError(t, err)

	require.NoError(t, f.Begin())
	reg, err := Open(a, 4)
	require.NoError(t, err)
	require.NoError(t, f.Commit())
	return a, reg
}

func TestRegistryRoundTrip(t *testing.T) {
	alc, reg := openTestRegistry(t)
	f := alc.File()

	require.NoError(t, f.Begin())
	require.NoError(t, reg.SetValue("users", bfile.Ptr(1024)))
	require.NoError(t, reg.SetValue("orders", bfile.Ptr(2048)))
	require.NoError(t, f.Commit())

	ptr, ok, err := reg.GetValue("users")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1024, ptr)

	_, ok, err = reg.GetValue("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.Begin())
	deleted, err := reg.DeleteValue("orders")
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, f.Commit())

	_, ok, err = reg.GetValue("orders")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegistryObjectRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg3.db")
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)

	a, err := alloc.Open(f, alloc.Options{BlockSize: 64})
	require.NoError(t, err)
	require.NoError(t, f.Begin())
	reg, err := Open(a, 4)
	require.NoError(t, err)

	ignoreList := btree.NewStringArrayValue()
	ignoreList.Value = []string{"*.tmp", "node_modules", ".git"}
	require.NoError(t, reg.SetObject("ignore_list", ignoreList))
	require.NoError(t, f.Commit())
	require.NoError(t, f.Close())

	f2, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f2.Close() })
	a2, err := alloc.Open(f2, alloc.Options{})
	require.NoError(t, err)
	reg2, err := Open(a2, 4)
	require.NoError(t, err)

	obj, ok, err := reg2.GetObject("ignore_list")
	require.NoError(t, err)
	require.True(t, ok)
	got, ok := obj.(*btree.ArrayValue[string])
	require.True(t, ok)
	require.Equal(t, []string{"*.tmp", "node_modules", ".git"}, got.Value)

	_, ok, err = reg2.GetObject("missing")
	require.NoError(t, err)
	require.False(t, ok)

	// Replacing the object frees the old block rather than leaking it.
	require.NoError(t, f2.Begin())
	replacement := btree.NewStringArrayValue()
	replacement.Value = []string{"*.log"}
	require.NoError(t, reg2.SetObject("ignore_list", replacement))
	require.NoError(t, f2.Commit())

	obj, ok, err = reg2.GetObject("ignore_list")
	require.NoError(t, err)
	require.True(t, ok)
	got, ok = obj.(*btree.ArrayValue[string])
	require.True(t, ok)
	require.Equal(t, []string{"*.log"}, got.Value)
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg2.db")
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)

	a, err := alloc.Open(f, alloc.Options{BlockSize: 64})
	require.NoError(t, err)
	require.NoError(t, f.Begin())
	reg, err := Open(a, 4)
	require.NoError(t, err)
	require.NoError(t, reg.SetValue("root-key", bfile.Ptr(42)))
	require.NoError(t, f.Commit())
	require.NoError(t, f.Close())

	f2, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f2.Close() })
	a2, err := alloc.Open(f2, alloc.Options{})
	require.NoError(t, err)
	reg2, err := Open(a2, 4)
	require.NoError(t, err)

	ptr, ok, err := reg2.GetValue("root-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, ptr)
}
