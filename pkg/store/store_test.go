package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-db/kestrel/internal/alloc"
	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/btree"
	"github.com/kestrel-db/kestrel/internal/namedreg"
	"github.com/kestrel-db/kestrel/pkg/config"
)

func zeroLogger() zerolog.Logger { return zerolog.Nop() }

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.kdb")
	db, err := Open(path, config.Config{BlockSize: 64, EntriesPerNode: 4, EntriesPerNodeRegistry: 4}, zeroLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenTreeCreatesAndRegisters(t *testing.T) {
	db := openTestDB(t)

	tr, err := db.OpenTree("users", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tr.Insert(&btree.StringKey{Value: "alice"}, &btree.StringValue{Value: "admin"}))
	require.NoError(t, tx.Commit())

	// Reopening by name returns the same tree.
	tr2, err := db.OpenTree("users", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)
	v, ok, err := tr2.Find(&btree.StringKey{Value: "alice"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin", v.(*btree.StringValue).Value)
}

func TestDropTreeRemovesRegistryEntry(t *testing.T) {
	db := openTestDB(t)

	_, err := db.OpenTree("scratch", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)

	_, ok, err := db.Roots().GetValue("scratch")
	require.NoError(t, err)
	require.True(t, ok)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, db.DropTree("scratch"))
	require.NoError(t, tx.Commit())

	_, ok, err = db.Roots().GetValue("scratch")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t)
	tr, err := db.OpenTree("tx-test", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tr.Insert(&btree.StringKey{Value: "k"}, &btree.StringValue{Value: "v"}))
	require.NoError(t, tx.Rollback())

	_, ok, err := tr.Find(&btree.StringKey{Value: "k"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReopenDatabasePreservesTrees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store2.kdb")
	cfg := config.Config{BlockSize: 64, EntriesPerNode: 4, EntriesPerNodeRegistry: 4}

	db, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	tr, err := db.OpenTree("people", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, tr.Insert(&btree.StringKey{Value: "bob"}, &btree.StringValue{Value: "eng"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	db2, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	defer db2.Close()
	tr2, err := db2.OpenTree("people", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)
	v, ok, err := tr2.Find(&btree.StringKey{Value: "bob"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "eng", v.(*btree.StringValue).Value)
}

// The remaining tests cover the end-to-end scenarios S1-S6: insert/iterate,
// split, prefix seek, registry round-trip, rollback, and endian portability.

func TestScenarioS1InsertIterate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.kdb")
	cfg := config.Config{BlockSize: 512, EntriesPerNode: 8, EntriesPerNodeRegistry: 8}

	db, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	tr, err := db.OpenTree("words", "kestrel.StringKey", "kestrel.StringValue", 8)
	require.NoError(t, err)

	words := []string{"apple", "banana", "cherry", "date", "elderberry"}
	tx, err := db.Begin()
	require.NoError(t, err)
	for _, w := range words {
		require.NoError(t, tr.Insert(&btree.StringKey{Value: w}, &btree.StringValue{Value: w}))
	}
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	db2, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	defer db2.Close()
	tr2, err := db2.OpenTree("words", "kestrel.StringKey", "kestrel.StringValue", 8)
	require.NoError(t, err)

	it, err := tr2.First()
	require.NoError(t, err)
	var got []string
	for !it.IsFinished() {
		got = append(got, it.GetKey().(*btree.StringKey).Value)
		v, err := it.GetValue()
		require.NoError(t, err)
		require.Equal(t, it.GetKey().(*btree.StringKey).Value, v.(*btree.StringValue).Value)
		require.NoError(t, it.Next())
	}
	require.Equal(t, words, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size()%512, "file size must be a multiple of block_size")
}

func TestScenarioS2Split(t *testing.T) {
	db := openTestDB(t)
	tr, err := db.OpenTree("decimals", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		k := fmt.Sprintf("%02d", i)
		require.NoError(t, tr.Insert(&btree.StringKey{Value: k}, &btree.StringValue{Value: k}))
	}
	require.NoError(t, tx.Commit())

	it, err := tr.First()
	require.NoError(t, err)
	var got []string
	for !it.IsFinished() {
		got = append(got, it.GetKey().(*btree.StringKey).Value)
		require.NoError(t, it.Next())
	}
	want := []string{"00", "01", "02", "03", "04", "05", "06", "07", "08", "09"}
	require.Equal(t, want, got)
}

func TestScenarioS3PrefixSeek(t *testing.T) {
	db := openTestDB(t)
	tr, err := db.OpenTree("prefixes", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)

	keys := []string{"pya", "pyb", "pyc", "pythia", "python", "python38", "qa"}
	tx, err := db.Begin()
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, tr.Insert(
			&btree.StringKey{Value: k, IgnoreCase: true},
			&btree.StringValue{Value: k},
		))
	}
	require.NoError(t, tx.Commit())

	it, err := tr.FindFirst(&btree.StringKey{Value: "py", IgnoreCase: true})
	require.NoError(t, err)
	prefix := &btree.StringKey{Value: "py", IgnoreCase: true}
	var got []string
	for !it.IsFinished() && btree.HasPrefix(it.GetKey(), prefix) {
		got = append(got, it.GetKey().(*btree.StringKey).Value)
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"pya", "pyb", "pyc", "pythia", "python", "python38"}, got)
}

func TestScenarioS4RegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s4.kdb")
	cfg := config.Config{BlockSize: 64, EntriesPerNode: 4, EntriesPerNodeRegistry: 4}

	db, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	ignoreList := btree.NewStringArrayValue()
	ignoreList.Value = []string{"node_modules", ".git"}

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, db.Roots().SetObject("ignore_list", ignoreList))
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	db2, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	defer db2.Close()

	obj, ok, err := db2.Roots().GetObject("ignore_list")
	require.NoError(t, err)
	require.True(t, ok)
	got, ok := obj.(*btree.ArrayValue[string])
	require.True(t, ok)
	require.Equal(t, ignoreList.Value, got.Value)
}

func TestScenarioS5Rollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s5.kdb")
	cfg := config.Config{BlockSize: 64, EntriesPerNode: 8, EntriesPerNodeRegistry: 4}

	db, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	tr, err := db.OpenTree("bulk", "kestrel.StringKey", "kestrel.StringValue", 8)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	preSize, err := os.Stat(path)
	require.NoError(t, err)

	db2, err := Open(path, cfg, zeroLogger())
	require.NoError(t, err)
	defer db2.Close()
	tr2, err := db2.OpenTree("bulk", "kestrel.StringKey", "kestrel.StringValue", 8)
	require.NoError(t, err)

	tx, err := db2.Begin()
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		k := fmt.Sprintf("key-%04d", i)
		require.NoError(t, tr2.Insert(&btree.StringKey{Value: k}, &btree.StringValue{Value: k}))
	}
	require.NoError(t, tx.Rollback())

	it, err := tr2.First()
	require.NoError(t, err)
	require.True(t, it.IsFinished(), "tree must be empty after rollback")

	postSize, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, preSize.Size(), postSize.Size())
}

func TestScenarioS6EndianPortability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s6.kdb")

	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	foreign := binary.ByteOrder(binary.BigEndian)
	if probe[0] != 1 {
		foreign = binary.LittleEndian
	}

	// Build the store by hand so the very first header write (normally
	// host-native) is forced to the order a foreign-endian host would use,
	// simulating a file created elsewhere and copied in.
	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{})
	require.NoError(t, err)
	f.SetEndianness(foreign, false)

	a, err := alloc.Open(f, alloc.Options{BlockSize: 64})
	require.NoError(t, err)

	require.NoError(t, f.Begin())
	reg, err := namedreg.Open(a, 4)
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	cfg := config.Config{BlockSize: 64, EntriesPerNode: 4, EntriesPerNodeRegistry: 4}.WithDefaults()
	db := &Database{cfg: cfg, file: f, alloc: a, registry: reg, log: zeroLogger()}

	tr, err := db.OpenTree("letters", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)
	tx, err := db.Begin()
	require.NoError(t, err)
	for _, k := range []string{"apple", "banana", "cherry"} {
		require.NoError(t, tr.Insert(&btree.StringKey{Value: k}, &btree.StringValue{Value: k}))
	}
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	// Reopening through the public entry point must autodetect the foreign
	// byte order from the header magic and read every value back correctly.
	db2, err := Open(path, config.Config{BlockSize: 64, EntriesPerNode: 4, EntriesPerNodeRegistry: 4}, zeroLogger())
	require.NoError(t, err)
	defer db2.Close()

	tr2, err := db2.OpenTree("letters", "kestrel.StringKey", "kestrel.StringValue", 4)
	require.NoError(t, err)
	it, err := tr2.First()
	require.NoError(t, err)
	var got []string
	for !it.IsFinished() {
		got = append(got, it.GetKey().(*btree.StringKey).Value)
		v, err := it.GetValue()
		require.NoError(t, err)
		require.Equal(t, it.GetKey().(*btree.StringKey).Value, v.(*btree.StringValue).Value)
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"apple", "banana", "cherry"}, got)
}
