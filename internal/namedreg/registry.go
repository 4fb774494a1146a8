// Package namedreg implements the Named Registry (component C5): a single
// B-tree of StringKey -> PtrValue entries rooted at the allocator's
// well-known root block, used to look up other trees and structures by a
// stable name instead of threading their block pointers through every
// caller.
package namedreg

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-db/kestrel/internal/alloc"
	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/btree"
	"github.com/kestrel-db/kestrel/internal/kerr"
	"github.com/kestrel-db/kestrel/internal/serial"
)

const (
	keyTypeName   = "kestrel.StringKey"
	valueTypeName = "kestrel.PtrValue"
)

// Registry is the named root directory: name -> Ptr, plus name ->
// SerializableObject for entries that hold a whole serialized value (e.g.
// an ignore list) rather than a pointer to a tree header.
type Registry struct {
	tree  *btree.BTree
	alloc *alloc.Allocator
	order binary.ByteOrder
}

// Open opens the registry rooted at the allocator's RootBlock, creating it
// (and recording the new header as the allocator's root block) if one
// doesn't exist yet. Must run inside a transaction when the registry does
// not yet exist.
func Open(a *alloc.Allocator, entriesPerNode uint16) (*Registry, error) {
	root := a.RootBlock()
	tree, err := btree.Open(a, root, keyTypeName, valueTypeName, entriesPerNode)
	if err != nil {
		return nil, err
	}
	if root == bfile.NullPtr {
		if err := a.SetRootBlock(tree.HeaderPtr()); err != nil {
			return nil, err
		}
	}
	return &Registry{tree: tree, alloc: a, order: a.File().Order()}, nil
}

func nameKey(name string) *btree.StringKey {
	return &btree.StringKey{Value: name}
}

// GetValue looks up name, returning its Ptr and true if present.
func (r *Registry) GetValue(name string) (bfile.Ptr, bool, error) {
	v, ok, err := r.tree.Find(nameKey(name))
	if err != nil || !ok {
		return bfile.NullPtr, ok, err
	}
	pv, ok := v.(*btree.PtrValue)
	if !ok {
		return bfile.NullPtr, false, fmt.Errorf("namedreg: entry %q has wrong value type: %w", name, kerr.Corrupt)
	}
	return pv.Value, true, nil
}

// SetValue records name -> ptr, inserting or replacing as needed. Must run
// inside a transaction.
func (r *Registry) SetValue(name string, ptr bfile.Ptr) error {
	return r.tree.SetValue(nameKey(name), &btree.PtrValue{Value: ptr})
}

// DeleteValue removes name, returning false if it was not present. Must
// run inside a transaction.
func (r *Registry) DeleteValue(name string) (bool, error) {
	return r.tree.Remove(nameKey(name))
}

// Tree exposes the underlying B-tree, e.g. for iterating every registered
// name (used by admin/inspection tooling).
func (r *Registry) Tree() *btree.BTree { return r.tree }

// SetObject serializes obj into a fresh allocator block and records name ->
// that block's Ptr, freeing whichever block the name previously pointed to.
// Must run inside a transaction.
func (r *Registry) SetObject(name string, obj serial.Object) error {
	encoded, err := serial.Encode(obj, r.order)
	if err != nil {
		return err
	}
	full := make([]byte, 4+len(encoded))
	r.order.PutUint32(full[:4], uint32(len(encoded)))
	copy(full[4:], encoded)

	ptr, err := r.alloc.Alloc(uint32(len(full)))
	if err != nil {
		return err
	}
	if err := r.alloc.Write(ptr, full); err != nil {
		return err
	}

	oldPtr, hadOld, err := r.GetValue(name)
	if err != nil {
		return err
	}
	if err := r.SetValue(name, ptr); err != nil {
		return err
	}
	if hadOld {
		oldSize, err := r.objectBlockSize(oldPtr)
		if err != nil {
			return err
		}
		if err := r.alloc.Free(oldPtr, oldSize); err != nil {
			return err
		}
	}
	return nil
}

// GetObject looks up name and decodes the serial.Object stored in the block
// it points to, returning false if name is not present.
func (r *Registry) GetObject(name string) (serial.Object, bool, error) {
	ptr, ok, err := r.GetValue(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	sizeBuf := make([]byte, 4)
	if err := r.alloc.Read(ptr, sizeBuf); err != nil {
		return nil, false, err
	}
	n := r.order.Uint32(sizeBuf)
	buf := make([]byte, 4+n)
	if err := r.alloc.Read(ptr, buf); err != nil {
		return nil, false, err
	}
	obj, err := serial.Decode(buf[4:], r.order)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// DeleteObject removes name and frees the block its value pointed to,
// returning false if it was not present. Must run inside a transaction.
func (r *Registry) DeleteObject(name string) (bool, error) {
	ptr, ok, err := r.GetValue(name)
	if err != nil || !ok {
		return false, err
	}
	size, err := r.objectBlockSize(ptr)
	if err != nil {
		return false, err
	}
	if _, err := r.DeleteValue(name); err != nil {
		return false, err
	}
	return true, r.alloc.Free(ptr, size)
}

// objectBlockSize returns the on-disk footprint of a block previously
// written by SetObject, for freeing it.
func (r *Registry) objectBlockSize(ptr bfile.Ptr) (uint32, error) {
	sizeBuf := make([]byte, 4)
	if err := r.alloc.Read(ptr, sizeBuf); err != nil {
		return 0, err
	}
	return 4 + r.order.Uint32(sizeBuf), nil
}
