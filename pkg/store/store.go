// Package store assembles the Buffered File, File Allocator, B-tree and
// Named Registry components into the single entry point a caller opens:
// Database.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrel-db/kestrel/internal/alloc"
	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/btree"
	"github.com/kestrel-db/kestrel/internal/namedreg"
	"github.com/kestrel-db/kestrel/pkg/config"
)

// Database is a single open store file: one Buffered File, one File
// Allocator, and the Named Registry rooted at its header's root block.
type Database struct {
	mu       sync.RWMutex
	cfg      config.Config
	file     *bfile.File
	alloc    *alloc.Allocator
	registry *namedreg.Registry
	log      zerolog.Logger
	closed   bool
}

// Open opens (creating if necessary) the store file at path. cfg.DataDir is
// not consulted here; callers build path from it themselves.
func Open(path string, cfg config.Config, logger zerolog.Logger) (*Database, error) {
	cfg = cfg.WithDefaults()

	f, err := bfile.Open(path, bfile.ReadWrite, bfile.Options{
		PageCount:   cfg.PageCachePages,
		Logger:      logger,
		LockTimeout: cfg.OpenTimeout,
	})
	if err != nil {
		return nil, err
	}

	a, err := alloc.Open(f, alloc.Options{
		BlockSize: cfg.BlockSize,
		Secure:    cfg.Secure,
		Logger:    logger,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	needsTx := f.Depth() == 0 && a.RootBlock() == bfile.NullPtr
	if needsTx {
		if err := f.Begin(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	reg, err := namedreg.Open(a, cfg.EntriesPerNodeRegistry)
	if err != nil {
		if needsTx {
			_ = f.Rollback()
		}
		_ = f.Close()
		return nil, err
	}
	if needsTx {
		if err := f.Commit(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	db := &Database{cfg: cfg, file: f, alloc: a, registry: reg, log: logger}
	db.log.Info().Str("path", path).Msg("store opened")
	return db, nil
}

// Close closes the underlying file. Any in-progress transaction is rolled
// back.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return fmt.Errorf("store: already closed")
	}
	db.closed = true
	return db.file.Close()
}

func (db *Database) checkOpen() error {
	if db.closed {
		return errors.New("store: use of closed database")
	}
	return nil
}

// Begin starts a transaction. Every mutating call below (through the
// returned Tx or directly against trees opened from this Database) must
// happen between Begin and the matching Commit/Rollback.
func (db *Database) Begin() (*Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if err := db.file.Begin(); err != nil {
		return nil, err
	}
	return &Tx{db: db}, nil
}

// Tx is a scoped transaction guard, mirroring alloc.Tx at the database
// level: `tx := db.Begin(); defer tx.Rollback(); ...; tx.Commit()`.
type Tx struct {
	db   *Database
	done bool
}

func (tx *Tx) Commit() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.db.file.Commit()
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.db.file.Rollback()
}

// Roots returns the store's named registry, the directory of well-known
// trees and other structures kept at the allocator's root block.
func (db *Database) Roots() *namedreg.Registry {
	return db.registry
}

// Allocator exposes the underlying allocator for components that need to
// open their own structures directly (e.g. a caller building a tree of
// trees).
func (db *Database) Allocator() *alloc.Allocator { return db.alloc }

// OpenTree opens, or creates and registers under name, a B-tree of the
// given key/value types. On create, entriesPerNode sizes the new tree and
// its header Ptr is recorded in the named registry under name.
func (db *Database) OpenTree(name, keyType, valueType string, entriesPerNode uint16) (*btree.BTree, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen(); err != nil {
		return nil, err
	}

	headerPtr, ok, err := db.registry.GetValue(name)
	if err != nil {
		return nil, err
	}
	if ok {
		return btree.Open(db.alloc, headerPtr, keyType, valueType, entriesPerNode)
	}

	needsTx := db.file.Depth() == 0
	if needsTx {
		if err := db.file.Begin(); err != nil {
			return nil, err
		}
	}
	tree, err := btree.Open(db.alloc, bfile.NullPtr, keyType, valueType, entriesPerNode)
	if err != nil {
		if needsTx {
			_ = db.file.Rollback()
		}
		return nil, err
	}
	if err := db.registry.SetValue(name, tree.HeaderPtr()); err != nil {
		if needsTx {
			_ = db.file.Rollback()
		}
		return nil, err
	}
	if needsTx {
		if err := db.file.Commit(); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// DropTree frees every block of the named tree and removes it from the
// registry. Must run inside a transaction.
func (db *Database) DropTree(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.checkOpen(); err != nil {
		return err
	}
	headerPtr, ok, err := db.registry.GetValue(name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := btree.Delete(db.alloc, headerPtr); err != nil {
		return err
	}
	_, err = db.registry.DeleteValue(name)
	return err
}
