package btree

import (
	"bytes"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/kestrel-db/kestrel/internal/digest"
	"github.com/kestrel-db/kestrel/internal/serial"
)

// Key is a B-tree key: a serializable value with a byte-wise comparison
// form. Comparisons and prefix matches always operate on CompareBytes, so
// every concrete key type (GuidKey, StringKey, ...) plugs into the same
// tree logic regardless of its wire shape.
type Key interface {
	serial.Object
	CompareBytes() []byte
}

// CompareKeys orders two keys by their comparison bytes.
func CompareKeys(a, b Key) int {
	return bytes.Compare(a.CompareBytes(), b.CompareBytes())
}

// HasPrefix reports whether key's comparison bytes begin with prefix's,
// the primitive behind BTree.FindFirst's prefix seek.
func HasPrefix(key, prefix Key) bool {
	return bytes.HasPrefix(key.CompareBytes(), prefix.CompareBytes())
}

// GUID is a 16-byte content- or randomly-derived identifier, the Go
// stand-in for the original's util::GUID.
type GUID [16]byte

// NewGUID returns a random GUID.
func NewGUID() GUID {
	return GUID(uuid.New())
}

// GUIDFromContent derives a deterministic GUID from data the way a
// content-addressed path index would: a version-5 (SHA-1) UUID keyed off a
// fixed namespace, so the same content always maps to the same key. The
// digest itself runs through internal/digest rather than uuid.NewSHA1, so
// the RFC 4122 version/variant bits are the only part of this not shared
// with the Hash Digest component.
func GUIDFromContent(data []byte) GUID {
	ns := uuid.NameSpaceOID
	sum, err := digest.Sum(digest.SHA1, append(ns[:], data...))
	if err != nil {
		panic(err) // SHA1 is always a supported algorithm
	}
	var g GUID
	copy(g[:], sum[:16])
	g[6] = (g[6] & 0x0f) | 0x50 // version 5
	g[8] = (g[8] & 0x3f) | 0x80 // RFC 4122 variant
	return g
}

func (g GUID) Bytes() []byte  { return g[:] }
func (g GUID) String() string { return uuid.UUID(g).String() }

// GuidKey is a B-tree key backed by a GUID.
type GuidKey struct {
	ID GUID
}

func init() {
	serial.Register("kestrel.GuidKey", func() serial.Object { return &GuidKey{} })
	serial.Register("kestrel.StringKey", func() serial.Object { return &StringKey{} })
}

func (k *GuidKey) TypeName() string      { return "kestrel.GuidKey" }
func (k *GuidKey) SchemaVersion() uint16 { return 1 }
func (k *GuidKey) PayloadSize() uint32   { return 16 }

func (k *GuidKey) WriteTo(w *serial.Writer) error {
	return w.WriteRaw(k.ID[:])
}

func (k *GuidKey) ReadFrom(h serial.Header, r *serial.Reader) error {
	b, err := r.ReadRaw(16)
	if err != nil {
		return err
	}
	copy(k.ID[:], b)
	return nil
}

func (k *GuidKey) CompareBytes() []byte { return k.ID[:] }

// foldCaser normalizes case for case-insensitive StringKey comparisons;
// shared because constructing a cases.Caser allocates.
var foldCaser = cases.Fold()

// StringKey is a B-tree key backed by a string, optionally compared
// case-insensitively (e.g. for a path-component index that should treat
// "Foo" and "foo" as the same segment).
type StringKey struct {
	Value      string
	IgnoreCase bool
}

func (k *StringKey) TypeName() string      { return "kestrel.StringKey" }
func (k *StringKey) SchemaVersion() uint16 { return 1 }
func (k *StringKey) PayloadSize() uint32   { return serial.SizeOfString(k.Value) + 1 }

func (k *StringKey) WriteTo(w *serial.Writer) error {
	if err := w.WriteString(k.Value); err != nil {
		return err
	}
	return w.WriteBool(k.IgnoreCase)
}

func (k *StringKey) ReadFrom(h serial.Header, r *serial.Reader) error {
	v, err := r.ReadString()
	if err != nil {
		return err
	}
	ic, err := r.ReadBool()
	if err != nil {
		return err
	}
	k.Value, k.IgnoreCase = v, ic
	return nil
}

func (k *StringKey) CompareBytes() []byte {
	if k.IgnoreCase {
		return []byte(foldCaser.String(k.Value))
	}
	return []byte(k.Value)
}
