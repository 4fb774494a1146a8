// Package bfile implements the Buffered File (component C1): a seekable,
// endian-aware byte interface over a host file, backed by a fixed-count LRU
// page cache, with a single-writer transactional undo log.
//
// Writes are only legal inside a transaction (Begin/Commit/Rollback).
// Outside a transaction the file behaves as a plain, cached reader.
package bfile

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Ptr is a 64-bit absolute byte offset into the host file. The zero value
// is the null pointer.
type Ptr uint64

// NullPtr is the sentinel "no pointer" value.
const NullPtr Ptr = 0

// AccessMode controls whether Open may create the file and accept writes.
type AccessMode int

const (
	// ReadOnly opens an existing file and rejects any transaction.
	ReadOnly AccessMode = iota
	// ReadWrite opens (creating if necessary) and allows transactions.
	ReadWrite
)

const defaultPageCount = 512

type page struct {
	idx   uint64
	data  []byte
	dirty bool
}

// File is the Buffered File itself.
type File struct {
	f        *os.File
	path     string
	access   AccessMode
	pageSize int
	order    binary.ByteOrder
	native   bool // true if order matches this host's native endianness

	maxPages int
	cache    map[uint64]*list.Element
	lru      *list.List // front = most recently used

	physSize int64 // size as currently committed to disk
	size     int64 // logical size, may exceed physSize mid-transaction

	txDepth    int
	txOrig     map[uint64][]byte // pageIdx -> pre-image, outermost transaction only
	txStartLen int64

	closed bool
	locked bool
	log    zerolog.Logger
}

// Options configures Open.
type Options struct {
	PageSize  int // must be a power of two; defaults to 4096
	PageCount int // page cache capacity; defaults to 512
	Logger    zerolog.Logger
	// LockTimeout bounds how long Open waits to acquire an exclusive
	// advisory lock on path when access is ReadWrite, guarding against a
	// second process opening the same store file for writing. Zero means
	// Open does not attempt to lock at all.
	LockTimeout time.Duration
}

const lockPollInterval = 20 * time.Millisecond

// Open opens or creates path. On create, a zero-length file is written; it
// is the allocator's job to initialize the header.
func Open(path string, access AccessMode, opts Options) (*File, error) {
	flags := os.O_RDONLY
	if access == ReadWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	osf, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("bfile: open %q: %w", path, kerr.Io)
	}
	info, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("bfile: stat %q: %w", path, kerr.Io)
	}

	locked := false
	if access == ReadWrite && opts.LockTimeout > 0 {
		deadline := time.Now().Add(opts.LockTimeout)
		for {
			ok, lerr := tryLockFile(osf)
			if lerr != nil {
				osf.Close()
				return nil, fmt.Errorf("bfile: lock %q: %w", path, lerr)
			}
			if ok {
				locked = true
				break
			}
			if time.Now().After(deadline) {
				osf.Close()
				return nil, fmt.Errorf("bfile: timed out waiting for exclusive lock on %q: %w", path, kerr.TimedOut)
			}
			time.Sleep(lockPollInterval)
		}
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = 4096
	}
	if pageSize&(pageSize-1) != 0 {
		if locked {
			_ = unlockFile(osf)
		}
		osf.Close()
		return nil, fmt.Errorf("bfile: page size %d is not a power of two", pageSize)
	}
	pageCount := opts.PageCount
	if pageCount == 0 {
		pageCount = defaultPageCount
	}

	f := &File{
		f:        osf,
		path:     path,
		access:   access,
		pageSize: pageSize,
		order:    binary.NativeEndian,
		native:   true,
		maxPages: pageCount,
		cache:    make(map[uint64]*list.Element),
		lru:      list.New(),
		physSize: info.Size(),
		size:     info.Size(),
		locked:   locked,
		log:      opts.Logger,
	}
	return f, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// PageSize returns the cache's page size in bytes.
func (f *File) PageSize() int { return f.pageSize }

// Size returns the logical size of the file (which may be larger than what
// is physically on disk during an uncommitted growth).
func (f *File) Size() int64 { return f.size }

// SetEndianness forces the byte order used for primitive reads/writes. This
// is called once, right after Open, by whatever reads the file's magic
// number (the allocator header) and discovers the file is foreign-endian.
func (f *File) SetEndianness(order binary.ByteOrder, native bool) {
	f.order = order
	f.native = native
}

// Order returns the byte order currently in effect.
func (f *File) Order() binary.ByteOrder { return f.order }

// Close closes the underlying host file. Any open transaction is rolled
// back first.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	if f.txDepth > 0 {
		f.log.Warn().Str("path", f.path).Msg("closing buffered file with an open transaction; rolling back")
		_ = f.Rollback()
	}
	f.closed = true
	if f.locked {
		_ = unlockFile(f.f)
	}
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("bfile: close %q: %w", f.path, kerr.Io)
	}
	return nil
}

func (f *File) checkOpen() error {
	if f.closed {
		return fmt.Errorf("bfile: use of closed file: %w", kerr.InvalidState)
	}
	return nil
}
