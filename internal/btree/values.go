package btree

import (
	"github.com/kestrel-db/kestrel/internal/bfile"
	"github.com/kestrel-db/kestrel/internal/serial"
)

// Value is a B-tree leaf payload. It is just serial.Object under a more
// descriptive name, matching how the spec's BTree::Value distinguishes the
// leaf-payload role from a general serializable object.
type Value interface {
	serial.Object
}

func init() {
	serial.Register("kestrel.StringValue", func() serial.Object { return &StringValue{} })
	serial.Register("kestrel.PtrValue", func() serial.Object { return &PtrValue{} })
	serial.Register("kestrel.StringArrayValue", func() serial.Object { return NewStringArrayValue() })
	serial.Register("kestrel.GUIDArrayValue", func() serial.Object { return NewGUIDArrayValue() })
}

// StringValue is a leaf value holding a single string, e.g. a file's
// display name keyed by a content GUID.
type StringValue struct {
	Value string
}

func (v *StringValue) TypeName() string      { return "kestrel.StringValue" }
func (v *StringValue) SchemaVersion() uint16 { return 1 }
func (v *StringValue) PayloadSize() uint32   { return serial.SizeOfString(v.Value) }
func (v *StringValue) WriteTo(w *serial.Writer) error {
	return w.WriteString(v.Value)
}
func (v *StringValue) ReadFrom(h serial.Header, r *serial.Reader) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	v.Value = s
	return nil
}

// PtrValue is a leaf value holding a bare block Ptr, e.g. a named registry
// entry pointing at another tree's header block.
type PtrValue struct {
	Value bfile.Ptr
}

func (v *PtrValue) TypeName() string      { return "kestrel.PtrValue" }
func (v *PtrValue) SchemaVersion() uint16 { return 1 }
func (v *PtrValue) PayloadSize() uint32   { return 8 }
func (v *PtrValue) WriteTo(w *serial.Writer) error {
	return w.WriteUint64(uint64(v.Value))
}
func (v *PtrValue) ReadFrom(h serial.Header, r *serial.Reader) error {
	u, err := r.ReadUint64()
	if err != nil {
		return err
	}
	v.Value = bfile.Ptr(u)
	return nil
}

// ArrayValue is a length-prefixed sequence of T, parameterized by the
// element codec supplied at construction time (see NewStringArrayValue,
// NewGUIDArrayValue). Go generics stand in for the original's
// ArrayValue<T> template; since the registry resolves types by string
// name, each instantiation still needs its own registered type name and
// factory, wired up below.
type ArrayValue[T any] struct {
	Value    []T
	typeName string
	size     func(v T) uint32
	encode   func(w *serial.Writer, v T) error
	decode   func(r *serial.Reader) (T, error)
}

func (v *ArrayValue[T]) TypeName() string      { return v.typeName }
func (v *ArrayValue[T]) SchemaVersion() uint16 { return 1 }

func (v *ArrayValue[T]) PayloadSize() uint32 {
	total := uint32(4)
	for _, elem := range v.Value {
		total += v.size(elem)
	}
	return total
}

func (v *ArrayValue[T]) WriteTo(w *serial.Writer) error {
	if err := w.WriteUint32(uint32(len(v.Value))); err != nil {
		return err
	}
	for _, elem := range v.Value {
		if err := v.encode(w, elem); err != nil {
			return err
		}
	}
	return nil
}

func (v *ArrayValue[T]) ReadFrom(h serial.Header, r *serial.Reader) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	v.Value = make([]T, n)
	for i := range v.Value {
		elem, err := v.decode(r)
		if err != nil {
			return err
		}
		v.Value[i] = elem
	}
	return nil
}

// NewStringArrayValue returns an empty ArrayValue[string], registered
// under "kestrel.StringArrayValue".
func NewStringArrayValue() *ArrayValue[string] {
	return &ArrayValue[string]{
		typeName: "kestrel.StringArrayValue",
		size:     func(v string) uint32 { return serial.SizeOfString(v) },
		encode:   func(w *serial.Writer, v string) error { return w.WriteString(v) },
		decode:   func(r *serial.Reader) (string, error) { return r.ReadString() },
	}
}

// NewGUIDArrayValue returns an empty ArrayValue[GUID], registered under
// "kestrel.GUIDArrayValue". Used by the path indexer to record, for each
// path component, the GUIDs of every indexed path containing it.
func NewGUIDArrayValue() *ArrayValue[GUID] {
	return &ArrayValue[GUID]{
		typeName: "kestrel.GUIDArrayValue",
		size:     func(v GUID) uint32 { return 16 },
		encode: func(w *serial.Writer, v GUID) error {
			return w.WriteRaw(v[:])
		},
		decode: func(r *serial.Reader) (GUID, error) {
			var g GUID
			b, err := r.ReadRaw(16)
			if err != nil {
				return g, err
			}
			copy(g[:], b)
			return g, nil
		},
	}
}
