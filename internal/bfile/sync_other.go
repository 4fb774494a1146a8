//go:build !linux && !freebsd

package bfile

import "os"

// fdatasync falls back to a full sync on platforms without a distinct
// data-only sync call (e.g. darwin, windows).
func fdatasync(f *os.File) error {
	return f.Sync()
}

// reserve is a no-op where there is no portable fallocate equivalent;
// Truncate's zero-fill still makes the grow correct, just not pre-reserved.
func reserve(f *os.File, oldSize, newSize int64) error {
	return nil
}
