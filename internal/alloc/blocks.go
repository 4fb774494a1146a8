package alloc

import (
	"fmt"

	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/kerr"
)

// blockSizeFieldLen is the width of a block's leading [size] field.
const blockSizeFieldLen = 4

// Alloc rounds size up to a block_size multiple and returns a Ptr to the
// start of the block's payload. If a free block of sufficient size sits at
// the free-list head, it is unlinked and reused; otherwise a new block is
// appended at end-of-file. Must run inside a transaction.
func (a *Allocator) Alloc(size uint32) (bfile.Ptr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file.Depth() == 0 {
		return 0, fmt.Errorf("alloc: alloc outside a transaction: %w", kerr.InvalidState)
	}
	need := roundUp(size, a.blockSize)

	if a.freeHead != 0 {
		headStart := int64(a.freeHead) - blockSizeFieldLen
		storedSize, err := a.file.ReadUint32(headStart)
		if err != nil {
			return 0, err
		}
		if storedSize >= need {
			next, err := a.file.ReadPtr(int64(a.freeHead))
			if err != nil {
				return 0, err
			}
			reused := a.freeHead
			a.freeHead = next
			if err := a.writeHeader(); err != nil {
				return 0, err
			}
			a.log.Debug().Uint64("ptr", uint64(reused)).Uint32("size", storedSize).Msg("reused free block")
			return reused, nil
		}
	}

	blockStart := a.file.Size()
	newFileSize := blockStart + blockSizeFieldLen + int64(need)
	if err := a.file.SetSize(newFileSize); err != nil {
		return 0, err
	}
	if err := a.file.WriteUint32(blockStart, need); err != nil {
		return 0, err
	}
	ptr := bfile.Ptr(blockStart + blockSizeFieldLen)
	a.log.Debug().Uint64("ptr", uint64(ptr)).Uint32("size", need).Msg("allocated new block")
	return ptr, nil
}

// Free returns ptr's block to the allocator. If it sits immediately before
// end-of-file, the file is truncated and any free-list-head blocks that
// become newly adjacent to the new end-of-file are truncated too (tail
// coalescing, bounded to the blocks currently at the free-list head — see
// SPEC_FULL.md REDESIGN FLAGS). Otherwise the block is linked at the
// free-list head. Must run inside a transaction.
func (a *Allocator) Free(ptr bfile.Ptr, size uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file.Depth() == 0 {
		return fmt.Errorf("alloc: free outside a transaction: %w", kerr.InvalidState)
	}
	need := roundUp(size, a.blockSize)
	blockStart := int64(ptr) - blockSizeFieldLen
	blockEnd := blockStart + blockSizeFieldLen + int64(need)

	if a.secure {
		if err := a.zeroPayload(ptr, need); err != nil {
			return err
		}
	}

	if blockEnd == a.file.Size() {
		newEOF := blockStart
		for a.freeHead != 0 {
			headStart := int64(a.freeHead) - blockSizeFieldLen
			headSize, err := a.file.ReadUint32(headStart)
			if err != nil {
				return err
			}
			headEnd := headStart + blockSizeFieldLen + int64(headSize)
			if headEnd != newEOF {
				break
			}
			next, err := a.file.ReadPtr(int64(a.freeHead))
			if err != nil {
				return err
			}
			newEOF = headStart
			a.freeHead = next
		}
		if err := a.file.SetSize(newEOF); err != nil {
			return err
		}
		return a.writeHeader()
	}

	if err := a.file.WritePtr(int64(ptr), a.freeHead); err != nil {
		return err
	}
	a.freeHead = ptr
	return a.writeHeader()
}

func (a *Allocator) zeroPayload(ptr bfile.Ptr, size uint32) error {
	const chunk = 4096
	zeros := make([]byte, chunk)
	remaining := int64(size)
	offset := int64(ptr)
	for remaining > 0 {
		n := int64(chunk)
		if remaining < n {
			n = remaining
		}
		if err := a.file.WriteAt(offset, zeros[:n]); err != nil {
			return err
		}
		offset += n
		remaining -= n
	}
	return nil
}
