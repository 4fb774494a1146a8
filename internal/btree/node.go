package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/kerr"
	"github.com/kestrel-db/kestrel/internal/serial"
)

// entry is one (key, value-or-child) pair inside a node. key is decoded
// eagerly when the node is loaded, since comparisons happen constantly;
// the value/child Ptr is resolved lazily.
type entry struct {
	keyPtr bfile.Ptr
	key    Key
	ptr    bfile.Ptr // value blob ptr (leaf) or left-child node ptr (internal)
}

// node is one B-tree node, always exactly one allocated block.
type node struct {
	self      bfile.Ptr
	isLeaf    bool
	parent    bfile.Ptr
	entries   []entry
	rightmost bfile.Ptr // only meaningful when !isLeaf
}

// nodeBlockSize returns the fixed block size every node of a tree with the
// given branching factor is allocated at: a small header plus
// entriesPerNode (keyPtr, valueOrChildPtr) pairs plus a trailing
// rightmost-child pointer (reserved even in leaves, to keep the block size
// constant regardless of node type).
func nodeBlockSize(entriesPerNode uint16) uint32 {
	const headerLen = 2 + 1 + 8 // entry_count + is_leaf + parent
	const entryLen = 8 + 8
	const trailerLen = 8
	return headerLen + uint32(entriesPerNode)*entryLen + trailerLen
}

func newLeaf(parent bfile.Ptr) *node {
	return &node{isLeaf: true, parent: parent}
}

func newInternal(parent bfile.Ptr) *node {
	return &node{isLeaf: false, parent: parent}
}

// encode serializes n into exactly size bytes (nodeBlockSize(entriesPerNode)).
func (n *node) encode(order binary.ByteOrder, size uint32) []byte {
	buf := make([]byte, size)
	order.PutUint16(buf[0:2], uint16(len(n.entries)))
	if n.isLeaf {
		buf[2] = 1
	}
	order.PutUint64(buf[3:11], uint64(n.parent))
	off := 11
	for _, e := range n.entries {
		order.PutUint64(buf[off:off+8], uint64(e.keyPtr))
		order.PutUint64(buf[off+8:off+16], uint64(e.ptr))
		off += 16
	}
	// The trailer always occupies its reserved slot so the block size
	// stays fixed; only internal nodes give it meaning.
	order.PutUint64(buf[len(buf)-8:], uint64(n.rightmost))
	return buf
}

func decodeNode(self bfile.Ptr, data []byte, order binary.ByteOrder) (*node, error) {
	if len(data) < 11+8 {
		return nil, fmt.Errorf("btree: node %d too small: %w", self, kerr.Corrupt)
	}
	count := order.Uint16(data[0:2])
	isLeaf := data[2] != 0
	parent := bfile.Ptr(order.Uint64(data[3:11]))

	n := &node{self: self, isLeaf: isLeaf, parent: parent, entries: make([]entry, count)}
	off := 11
	for i := 0; i < int(count); i++ {
		if off+16 > len(data)-8 {
			return nil, fmt.Errorf("btree: node %d entry %d out of bounds: %w", self, i, kerr.Corrupt)
		}
		n.entries[i].keyPtr = bfile.Ptr(order.Uint64(data[off : off+8]))
		n.entries[i].ptr = bfile.Ptr(order.Uint64(data[off+8 : off+16]))
		off += 16
	}
	n.rightmost = bfile.Ptr(order.Uint64(data[len(data)-8:]))
	return n, nil
}

// loadNode reads and decodes a node, eagerly resolving each entry's key
// object since comparisons happen on nearly every access.
func (t *BTree) loadNode(ptr bfile.Ptr) (*node, error) {
	buf := make([]byte, nodeBlockSize(t.entriesPerNode))
	if err := t.alloc.Read(ptr, buf); err != nil {
		return nil, err
	}
	n, err := decodeNode(ptr, buf, t.order)
	if err != nil {
		return nil, err
	}
	for i := range n.entries {
		key, err := t.readKey(n.entries[i].keyPtr)
		if err != nil {
			return nil, err
		}
		n.entries[i].key = key
	}
	return n, nil
}

// readBlobObject decodes a length-prefixed serialized object previously
// written by writeBlob, shared by key and value reads.
func (t *BTree) readBlobObject(ptr bfile.Ptr) (serial.Object, error) {
	sizeBuf := make([]byte, 4)
	if err := t.alloc.Read(ptr, sizeBuf); err != nil {
		return nil, err
	}
	n := t.order.Uint32(sizeBuf)
	buf := make([]byte, 4+n)
	if err := t.alloc.Read(ptr, buf); err != nil {
		return nil, err
	}
	return serial.Decode(buf[4:], t.order)
}

// readKey decodes a key blob previously allocated by writeKey.
func (t *BTree) readKey(ptr bfile.Ptr) (Key, error) {
	obj, err := t.readBlobObject(ptr)
	if err != nil {
		return nil, err
	}
	key, ok := obj.(Key)
	if !ok {
		return nil, fmt.Errorf("btree: type %q is not a Key: %w", obj.TypeName(), kerr.Corrupt)
	}
	return key, nil
}

// readValue decodes a value blob previously allocated by writeBlob.
func (t *BTree) readValue(ptr bfile.Ptr) (Value, error) {
	return t.readBlobObject(ptr)
}

// writeKey allocates a fresh blob for key and returns its Ptr. The blob is
// length-prefixed with a u32 so readKey knows how much to read back; this
// mirrors how value blobs are read (see readBlobObject above).
func (t *BTree) writeKey(key Key) (bfile.Ptr, error) {
	return t.writeBlob(key)
}

// writeBlob allocates and writes a length-prefixed serialized object,
// shared by key and value storage.
func (t *BTree) writeBlob(obj serial.Object) (bfile.Ptr, error) {
	encoded, err := serial.Encode(obj, t.order)
	if err != nil {
		return 0, err
	}
	full := make([]byte, 4+len(encoded))
	t.order.PutUint32(full[:4], uint32(len(encoded)))
	copy(full[4:], encoded)

	ptr, err := t.alloc.Alloc(uint32(len(full)))
	if err != nil {
		return 0, err
	}
	if err := t.alloc.Write(ptr, full); err != nil {
		return 0, err
	}
	return ptr, nil
}

// blobSize returns the on-disk footprint of a previously written blob, for
// freeing it later.
func (t *BTree) blobSize(ptr bfile.Ptr) (uint32, error) {
	sizeBuf := make([]byte, 4)
	if err := t.alloc.Read(ptr, sizeBuf); err != nil {
		return 0, err
	}
	return 4 + t.order.Uint32(sizeBuf), nil
}

func (t *BTree) freeBlob(ptr bfile.Ptr) error {
	size, err := t.blobSize(ptr)
	if err != nil {
		return err
	}
	return t.alloc.Free(ptr, size)
}

func (t *BTree) allocNode(n *node) (bfile.Ptr, error) {
	size := nodeBlockSize(t.entriesPerNode)
	ptr, err := t.alloc.Alloc(size)
	if err != nil {
		return 0, err
	}
	n.self = ptr
	if err := t.writeNode(n); err != nil {
		return 0, err
	}
	return ptr, nil
}

func (t *BTree) writeNode(n *node) error {
	size := nodeBlockSize(t.entriesPerNode)
	return t.alloc.Write(n.self, n.encode(t.order, size))
}

func (t *BTree) freeNode(n *node) error {
	return t.alloc.Free(n.self, nodeBlockSize(t.entriesPerNode))
}

// childPtrFor returns the node ptr that should be followed for key, for an
// internal node: entries[i].ptr for the first i whose key is > the probe,
// else rightmost.
func (n *node) childPtrFor(cmp func(Key) int) bfile.Ptr {
	for _, e := range n.entries {
		if cmp(e.key) < 0 {
			return e.ptr
		}
	}
	return n.rightmost
}

// childIndexFor returns the slot index whose child subtree key would
// descend into (0..len(entries)), where index == len(entries) means
// "follow rightmost".
func (n *node) childIndexFor(cmp func(Key) int) int {
	for i, e := range n.entries {
		if cmp(e.key) < 0 {
			return i
		}
	}
	return len(n.entries)
}

// childAt returns the ptr of the child at index (0..len(entries)).
func (n *node) childAt(index int) bfile.Ptr {
	if index == len(n.entries) {
		return n.rightmost
	}
	return n.entries[index].ptr
}

// setChildAt updates the child pointer at index.
func (n *node) setChildAt(index int, ptr bfile.Ptr) {
	if index == len(n.entries) {
		n.rightmost = ptr
	} else {
		n.entries[index].ptr = ptr
	}
}
