package alloc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/kestrel/internal/bfile"
)

func openTemp(t *testing.T, secure bool) (*bfile.File, *Allocator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kdb")
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{PageSize: 512, PageCount: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	a, err := Open(f, Options{BlockSize: 64, Secure: secure})
	require.NoError(t, err)
	return f, a
}

func TestAllocWritesHeaderOnCreate(t *testing.T) {
	_, a := openTemp(t, false)
	require.EqualValues(t, 64, a.BlockSize())
	require.EqualValues(t, 0, a.RootBlock())
}

func TestAllocFreeReuse(t *testing.T) {
	_, a := openTemp(t, false)

	tx, err := a.Begin()
	require.NoError(t, err)
	p1, err := a.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, a.Write(p1, []byte("0123456789")))
	require.NoError(t, tx.Commit())

	sizeAfterFirstAlloc := a.file.Size()

	tx, err = a.Begin()
	require.NoError(t, err)
	require.NoError(t, a.Free(p1, 10))
	require.NoError(t, tx.Commit())

	// Freeing the only block, which sits at EOF, truncates it away.
	require.Less(t, a.file.Size(), sizeAfterFirstAlloc)
	require.EqualValues(t, 0, a.freeHead)
}

func TestAllocFreeLinksWhenNotAtEOF(t *testing.T) {
	_, a := openTemp(t, false)

	tx, err := a.Begin()
	require.NoError(t, err)
	p1, err := a.Alloc(10)
	require.NoError(t, err)
	p2, err := a.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, err = a.Begin()
	require.NoError(t, err)
	require.NoError(t, a.Free(p1, 10)) // p1 precedes p2, not at EOF
	require.NoError(t, tx.Commit())

	require.EqualValues(t, p1, a.freeHead)

	// A subsequent alloc of the same size reuses p1.
	tx, err = a.Begin()
	require.NoError(t, err)
	p3, err := a.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Equal(t, p1, p3)
	_ = p2
}

func TestRollbackUndoesAllocation(t *testing.T) {
	_, a := openTemp(t, false)
	sizeBefore := a.file.Size()

	tx, err := a.Begin()
	require.NoError(t, err)
	_, err = a.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.Equal(t, sizeBefore, a.file.Size())
	require.EqualValues(t, 0, a.freeHead)
}

func TestSecureFreeZeroesPayload(t *testing.T) {
	_, a := openTemp(t, true)

	tx, err := a.Begin()
	require.NoError(t, err)
	p1, err := a.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, a.Write(p1, []byte("0123456789")))
	p2, err := a.Alloc(10) // keep p1 away from EOF so Free links it
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	_ = p2

	tx, err = a.Begin()
	require.NoError(t, err)
	require.NoError(t, a.Free(p1, 10))
	require.NoError(t, tx.Commit())

	buf := make([]byte, 10)
	require.NoError(t, a.Read(p1, buf))
	require.Equal(t, make([]byte, 10), buf)
}

func TestReopenPreservesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.kdb")
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{PageSize: 512, PageCount: 16})
	require.NoError(t, err)

	a, err := Open(f, Options{BlockSize: 128})
	require.NoError(t, err)
	tx, err := a.Begin()
	require.NoError(t, err)
	ptr, err := a.Alloc(20)
	require.NoError(t, err)
	require.NoError(t, a.SetRootBlock(ptr))
	require.NoError(t, tx.Commit())
	require.NoError(t, f.Close())

	f2, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{PageSize: 512, PageCount: 16})
	require.NoError(t, err)
	defer f2.Close()
	a2, err := Open(f2, Options{})
	require.NoError(t, err)
	require.EqualValues(t, 128, a2.BlockSize())
	require.Equal(t, ptr, a2.RootBlock())
}
