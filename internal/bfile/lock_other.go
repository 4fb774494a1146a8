//go:build !linux && !freebsd && !darwin

package bfile

import "os"

// tryLockFile is a no-op on platforms without a portable advisory-lock
// syscall wired up here; OpenTimeout has nothing to wait on and Open
// proceeds unlocked.
func tryLockFile(f *os.File) (bool, error) { return true, nil }

func unlockFile(f *os.File) error { return nil }
