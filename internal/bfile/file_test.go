package bfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	f, err := Open(path, ReadWrite, Options{PageSize: 64, PageCount: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteOutsideTransactionFails(t *testing.T) {
	f := openTemp(t)
	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(64))
	require.NoError(t, f.Commit())

	err := f.WriteAt(0, []byte("x"))
	require.Error(t, err)
}

func TestCommitPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	f, err := Open(path, ReadWrite, Options{PageSize: 64, PageCount: 4})
	require.NoError(t, err)

	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(128))
	require.NoError(t, f.WriteAt(0, []byte("hello, world!!!!")))
	require.NoError(t, f.Commit())
	require.NoError(t, f.Close())

	f2, err := Open(path, ReadWrite, Options{PageSize: 64, PageCount: 4})
	require.NoError(t, err)
	defer f2.Close()

	buf := make([]byte, 16)
	require.NoError(t, f2.ReadAt(0, buf))
	require.Equal(t, "hello, world!!!!", string(buf))
	require.Equal(t, int64(128), f2.Size())
}

func TestRollbackRestoresOriginalBytes(t *testing.T) {
	f := openTemp(t)

	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(64))
	require.NoError(t, f.WriteAt(0, []byte("original")))
	require.NoError(t, f.Commit())

	require.NoError(t, f.Begin())
	require.NoError(t, f.WriteAt(0, []byte("mutated!")))
	require.NoError(t, f.Rollback())

	buf := make([]byte, 8)
	require.NoError(t, f.ReadAt(0, buf))
	require.Equal(t, "original", string(buf))
	require.Equal(t, 0, f.Depth())
}

func TestRollbackUndoesGrowth(t *testing.T) {
	f := openTemp(t)
	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(64))
	require.NoError(t, f.Commit())

	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(1000))
	require.NoError(t, f.Rollback())

	require.Equal(t, int64(64), f.Size())
}

func TestNestedTransactionOnlyOutermostFlushes(t *testing.T) {
	f := openTemp(t)

	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(64))
	require.NoError(t, f.Begin()) // nested
	require.NoError(t, f.WriteAt(0, []byte("nested!!")))
	require.NoError(t, f.Commit()) // inner commit: no-op on disk
	require.Equal(t, 1, f.Depth())
	require.NoError(t, f.Commit()) // outer commit: flushes
	require.Equal(t, 0, f.Depth())

	buf := make([]byte, 8)
	require.NoError(t, f.ReadAt(0, buf))
	require.Equal(t, "nested!!", string(buf))
}

func TestReadAcrossPageBoundary(t *testing.T) {
	f := openTemp(t) // page size 64
	require.NoError(t, f.Begin())
	require.NoError(t, f.SetSize(256))
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, f.WriteAt(30, data))
	require.NoError(t, f.Commit())

	out := make([]byte, 100)
	require.NoError(t, f.ReadAt(30, out))
	require.Equal(t, data, out)
}
