// Package alloc implements the File Allocator (component C2): variable-size
// block allocation inside a single host file, with a free list and a
// header persisted at offset 0.
package alloc

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Allocator manages block allocation inside one buffered file.
type Allocator struct {
	mu sync.Mutex

	file      *bfile.File
	blockSize uint32
	freeHead  bfile.Ptr
	rootBlock bfile.Ptr
	secure    bool
	log       zerolog.Logger
}

// Options configures Open.
type Options struct {
	// BlockSize is the allocator's minimum allocation unit, fixed at file
	// creation and never changed thereafter. Ignored when opening an
	// existing file (the stored value wins).
	BlockSize uint32
	// Secure, when true, overwrites a freed block's payload with zeros
	// before it is re-linked into the free list.
	Secure bool
	Logger zerolog.Logger
}

// Open constructs an Allocator over file. If the file is empty, the header
// is written and committed; otherwise the existing header is read and its
// endianness detected.
func Open(file *bfile.File, opts Options) (*Allocator, error) {
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = 4096
	}

	a := &Allocator{
		file:      file,
		blockSize: blockSize,
		secure:    opts.Secure,
		log:       opts.Logger,
	}

	if file.Size() == 0 {
		if err := file.Begin(); err != nil {
			return nil, err
		}
		if err := file.SetSize(HeaderSize); err != nil {
			_ = file.Rollback()
			return nil, err
		}
		if err := a.writeHeader(); err != nil {
			_ = file.Rollback()
			return nil, err
		}
		if err := file.Commit(); err != nil {
			return nil, err
		}
		a.log.Debug().Uint32("block_size", blockSize).Msg("initialized new store header")
		return a, nil
	}

	if err := a.readHeader(); err != nil {
		return nil, err
	}
	return a, nil
}

// BlockSize returns the allocator's fixed minimum allocation unit.
func (a *Allocator) BlockSize() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blockSize
}

// RootBlock returns the user-visible root pointer from the header.
func (a *Allocator) RootBlock() bfile.Ptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rootBlock
}

// SetRootBlock updates the user-visible root pointer. Must run inside a
// transaction.
func (a *Allocator) SetRootBlock(ptr bfile.Ptr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file.Depth() == 0 {
		return fmt.Errorf("alloc: set_root_block outside a transaction: %w", kerr.InvalidState)
	}
	a.rootBlock = ptr
	return a.writeHeader()
}

func roundUp(size, unit uint32) uint32 {
	if unit == 0 {
		return size
	}
	n := (size + unit - 1) / unit
	return n * unit
}

// Read is a thin pass-through to the buffered file, reading len(buf) bytes
// of a block's payload starting at ptr.
func (a *Allocator) Read(ptr bfile.Ptr, buf []byte) error {
	return a.file.ReadAt(int64(ptr), buf)
}

// Write is a thin pass-through to the buffered file; must run inside a
// transaction (enforced by the underlying buffered file).
func (a *Allocator) Write(ptr bfile.Ptr, buf []byte) error {
	return a.file.WriteAt(int64(ptr), buf)
}

// File exposes the underlying buffered file, e.g. for callers that need to
// bracket several allocator calls in one transaction via File().Begin().
func (a *Allocator) File() *bfile.File { return a.file }

// Logger returns the allocator's logger, for sibling components (the B-tree,
// the named registry) that want to log at the same sink.
func (a *Allocator) Logger() zerolog.Logger { return a.log }
