package bfile

import (
	"fmt"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// ReadAt copies len(buf) bytes starting at offset into buf. Legal at any
// time, transaction or not; it observes whatever is currently cached,
// including the calling thread's own uncommitted writes.
func (f *File) ReadAt(offset int64, buf []byte) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if offset < 0 || offset+int64(len(buf)) > f.size {
		return fmt.Errorf("bfile: read [%d,%d) out of bounds (size=%d): %w", offset, offset+int64(len(buf)), f.size, kerr.Io)
	}
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		idx := uint64(pos) / uint64(f.pageSize)
		pageOff := int(uint64(pos) % uint64(f.pageSize))
		pg, err := f.getPage(idx)
		if err != nil {
			return err
		}
		n := copy(remaining, pg.data[pageOff:])
		remaining = remaining[n:]
		pos += int64(n)
	}
	return nil
}

// WriteAt copies buf into the file starting at offset. Only legal inside a
// transaction.
func (f *File) WriteAt(offset int64, buf []byte) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.txDepth == 0 {
		return fmt.Errorf("bfile: write outside a transaction: %w", kerr.InvalidState)
	}
	if offset < 0 || offset+int64(len(buf)) > f.size {
		return fmt.Errorf("bfile: write [%d,%d) out of bounds (size=%d): %w", offset, offset+int64(len(buf)), f.size, kerr.Io)
	}
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		idx := uint64(pos) / uint64(f.pageSize)
		pageOff := int(uint64(pos) % uint64(f.pageSize))
		pg, err := f.getPage(idx)
		if err != nil {
			return err
		}
		if _, logged := f.txOrig[idx]; !logged {
			preimage := make([]byte, len(pg.data))
			copy(preimage, pg.data)
			f.txOrig[idx] = preimage
		}
		n := copy(pg.data[pageOff:], remaining)
		pg.dirty = true
		remaining = remaining[n:]
		pos += int64(n)
	}
	return nil
}

// SetSize grows or shrinks the logical file size. New bytes read as zero
// until committed. Only legal inside a transaction.
func (f *File) SetSize(n int64) error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.txDepth == 0 {
		return fmt.Errorf("bfile: set_size outside a transaction: %w", kerr.InvalidState)
	}
	if n < 0 {
		return fmt.Errorf("bfile: negative size %d: %w", n, kerr.Io)
	}
	if n < f.size {
		// Shrinking: drop any cached pages that fall entirely beyond the
		// new size so stale dirty pages don't get resurrected on commit.
		lastPage := uint64(0)
		if n > 0 {
			lastPage = uint64(n-1) / uint64(f.pageSize)
		}
		for idx, el := range f.cache {
			if n == 0 || idx > lastPage {
				if _, dirty := f.txOrig[idx]; !dirty {
					f.lru.Remove(el)
					delete(f.cache, idx)
				}
			}
		}
	}
	f.size = n
	return nil
}
