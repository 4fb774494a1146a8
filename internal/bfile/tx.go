package bfile

import (
	"fmt"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Begin starts (or nests into) a transaction. On the first Begin at depth
// zero, a fresh undo log is created and the pre-transaction size is
// recorded. Nested Begin calls only bump the depth counter.
func (f *File) Begin() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.access == ReadOnly {
		return fmt.Errorf("bfile: cannot begin a transaction on a read-only file: %w", kerr.InvalidState)
	}
	if f.txDepth == 0 {
		f.txOrig = make(map[uint64][]byte)
		f.txStartLen = f.size
	}
	f.txDepth++
	return nil
}

// Depth reports the current transaction nesting depth (0 = no transaction).
func (f *File) Depth() int { return f.txDepth }

// Commit ends one level of nesting. Only the outermost Commit actually
// flushes dirty pages, reconciles the on-disk size, and syncs.
func (f *File) Commit() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.txDepth == 0 {
		return fmt.Errorf("bfile: commit without a transaction: %w", kerr.InvalidState)
	}
	f.txDepth--
	if f.txDepth > 0 {
		return nil
	}

	if f.size != f.physSize {
		if err := f.resize(f.physSize, f.size); err != nil {
			return err
		}
		f.physSize = f.size
	}
	for idx := range f.txOrig {
		el, ok := f.cache[idx]
		if !ok {
			continue // page was evicted during a mid-transaction shrink/regrow
		}
		pg := el.Value.(*page)
		offset := int64(idx) * int64(f.pageSize)
		n := f.pageSize
		if tail := f.physSize - offset; tail < int64(n) {
			n = int(tail)
		}
		if n <= 0 {
			continue
		}
		if _, err := f.f.WriteAt(pg.data[:n], offset); err != nil {
			return fmt.Errorf("bfile: flush page %d: %w", idx, kerr.Io)
		}
		pg.dirty = false
	}
	if err := fdatasync(f.f); err != nil {
		return fmt.Errorf("bfile: sync %q: %w", f.path, kerr.Io)
	}

	f.txOrig = nil
	f.evictIfNeeded()
	return nil
}

// Rollback aborts the outermost transaction regardless of the depth it is
// called from: every logged pre-image is restored, the logical size
// reverts to its pre-transaction value, and the undo log is cleared. The
// on-disk file was never touched, since flushing only happens on commit.
func (f *File) Rollback() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.txDepth == 0 {
		return fmt.Errorf("bfile: rollback without a transaction: %w", kerr.InvalidState)
	}
	for idx, preimage := range f.txOrig {
		if el, ok := f.cache[idx]; ok {
			pg := el.Value.(*page)
			copy(pg.data, preimage)
			pg.dirty = false
			f.lru.MoveToFront(el)
		} else {
			f.insertPage(&page{idx: idx, data: append([]byte(nil), preimage...)})
		}
	}
	f.size = f.txStartLen
	f.txDepth = 0
	f.txOrig = nil
	f.evictIfNeeded()
	return nil
}

// resize reconciles the physical file with the logical size at commit
// time. Growing relies on the platform's sparse-file zero-fill; see
// reserve in sync_unix.go / sync_other.go for the fallocate reservation hint.
func (f *File) resize(oldSize, newSize int64) error {
	if newSize < oldSize {
		if err := f.f.Truncate(newSize); err != nil {
			return fmt.Errorf("bfile: truncate %q to %d: %w", f.path, newSize, kerr.Io)
		}
		return nil
	}
	if err := reserve(f.f, oldSize, newSize); err != nil {
		f.log.Debug().Err(err).Msg("fallocate reservation failed; falling back to truncate")
	}
	if err := f.f.Truncate(newSize); err != nil {
		return fmt.Errorf("bfile: grow %q to %d: %w", f.path, newSize, kerr.OutOfSpace)
	}
	return nil
}
