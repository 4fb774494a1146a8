package alloc

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Magic identifies a kestrel store file and doubles as the endianness
// marker described in spec §3: read directly it is host-endian; byte
// swapped, it still matches, and the file is foreign-endian.
const Magic uint32 = 0x4B455354 // "KEST"

// HeaderSize is the fixed-size file prologue: magic, block size, free-list
// head, and root block, each either 4 or 8 bytes.
const HeaderSize = 4 + 4 + 8 + 8

const (
	offMagic     = 0
	offBlockSize = 4
	offFreeHead  = 8
	offRootBlock = 16
)

func isNativeOrder(order binary.ByteOrder) bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 0x0102)
	return order.Uint16(buf[:]) == 0x0102
}

// detectEndianness peeks the raw magic bytes at offset 0 and returns the
// byte order that decodes them to Magic.
func detectEndianness(f *bfile.File) (binary.ByteOrder, error) {
	var raw [4]byte
	if err := f.ReadAt(0, raw[:]); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(raw[:]) == Magic {
		return binary.LittleEndian, nil
	}
	if binary.BigEndian.Uint32(raw[:]) == Magic {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("alloc: bad magic number: %w", kerr.Corrupt)
}

func (a *Allocator) readHeader() error {
	order, err := detectEndianness(a.file)
	if err != nil {
		return err
	}
	a.file.SetEndianness(order, isNativeOrder(order))
	a.log.Debug().Bool("native_endian", isNativeOrder(order)).Msg("detected store endianness")

	blockSize, err := a.file.ReadUint32(offBlockSize)
	if err != nil {
		return err
	}
	freeHead, err := a.file.ReadPtr(offFreeHead)
	if err != nil {
		return err
	}
	rootBlock, err := a.file.ReadPtr(offRootBlock)
	if err != nil {
		return err
	}
	a.blockSize = blockSize
	a.freeHead = freeHead
	a.rootBlock = rootBlock
	return nil
}

// writeHeader persists the in-memory header fields. Must be called with an
// active transaction; it participates in that transaction's undo log like
// any other write.
func (a *Allocator) writeHeader() error {
	if err := a.file.WriteUint32(offMagic, Magic); err != nil {
		return err
	}
	if err := a.file.WriteUint32(offBlockSize, a.blockSize); err != nil {
		return err
	}
	if err := a.file.WritePtr(offFreeHead, a.freeHead); err != nil {
		return err
	}
	if err := a.file.WritePtr(offRootBlock, a.rootBlock); err != nil {
		return err
	}
	return nil
}
