package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/kerr"
)

// header is the small fixed structure persisted at a tree's header block:
// the branching factor and the two registered type names fixed at tree
// creation, plus the current root node pointer. Unlike keys and values,
// the header is not routed through the serial registry — it is an
// internal structure private to this package, not a type a caller could
// plug in a replacement for.
type header struct {
	entriesPerNode uint16
	keyType        string
	valueType      string
	root           bfile.Ptr
}

func (h *header) encodedSize() uint32 {
	return 2 + 2 + uint32(len(h.keyType)) + 2 + uint32(len(h.valueType)) + 8
}

func (h *header) encode(order binary.ByteOrder) []byte {
	buf := make([]byte, h.encodedSize())
	off := 0
	order.PutUint16(buf[off:], h.entriesPerNode)
	off += 2
	order.PutUint16(buf[off:], uint16(len(h.keyType)))
	off += 2
	off += copy(buf[off:], h.keyType)
	order.PutUint16(buf[off:], uint16(len(h.valueType)))
	off += 2
	off += copy(buf[off:], h.valueType)
	order.PutUint64(buf[off:], uint64(h.root))
	return buf
}

func decodeHeader(buf []byte, order binary.ByteOrder) (*header, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("btree: header too small: %w", kerr.Corrupt)
	}
	h := &header{}
	off := 0
	h.entriesPerNode = order.Uint16(buf[off:])
	off += 2
	klen := int(order.Uint16(buf[off:]))
	off += 2
	if off+klen > len(buf) {
		return nil, fmt.Errorf("btree: header key type truncated: %w", kerr.Corrupt)
	}
	h.keyType = string(buf[off : off+klen])
	off += klen
	if off+2 > len(buf) {
		return nil, fmt.Errorf("btree: header truncated: %w", kerr.Corrupt)
	}
	vlen := int(order.Uint16(buf[off:]))
	off += 2
	if off+vlen+8 > len(buf) {
		return nil, fmt.Errorf("btree: header value type truncated: %w", kerr.Corrupt)
	}
	h.valueType = string(buf[off : off+vlen])
	off += vlen
	h.root = bfile.Ptr(order.Uint64(buf[off:]))
	return h, nil
}

// headerBlockSize is the fixed allocation size reserved for any tree
// header, generous enough for long registered type names.
const headerBlockSize = 256

func (t *BTree) readHeaderFrom(ptr bfile.Ptr) (*header, error) {
	buf := make([]byte, headerBlockSize)
	if err := t.alloc.Read(ptr, buf); err != nil {
		return nil, err
	}
	return decodeHeader(buf, t.order)
}

func (t *BTree) writeHeader() error {
	h := &header{
		entriesPerNode: t.entriesPerNode,
		keyType:        t.keyType,
		valueType:      t.valueType,
		root:           t.root,
	}
	buf := make([]byte, headerBlockSize)
	copy(buf, h.encode(t.order))
	return t.alloc.Write(t.headerPtr, buf)
}
