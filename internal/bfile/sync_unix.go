//go:build linux || freebsd

package bfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync flushes file data (not metadata) to stable storage, matching
// the commit durability guarantee without paying for a full fsync.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

// reserve pre-allocates [oldSize, newSize) so the subsequent Truncate (and
// the page writes that follow) don't pay for on-demand block allocation.
// Best-effort: callers fall back to a plain Truncate if this fails.
func reserve(f *os.File, oldSize, newSize int64) error {
	if newSize <= oldSize {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, oldSize, newSize-oldSize)
}
