// Package serial implements the size-prefixed, schema-tagged serialization
// format (component C3) and the process-wide type registry it resolves
// concrete types through at read time.
//
// Every serialized object begins with an envelope —
//
//	{u16 name_len}{name bytes}{u16 schema_version}{u32 payload_size}{payload}
//
// — followed by a type-specific payload. Types register a factory for
// their zero value once, at package init time; the registry itself is
// immutable after that point.
package serial

import (
	"fmt"
	"sync"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Object is implemented by every serializable type: B-tree keys, B-tree
// values, and the small header structures the allocator and B-tree persist.
type Object interface {
	// TypeName is the registry key this type was registered under.
	TypeName() string
	// SchemaVersion is an opaque tag passed back to ReadFrom; the framework
	// never interprets it.
	SchemaVersion() uint16
	// PayloadSize returns the exact number of bytes WriteTo will emit.
	PayloadSize() uint32
	// WriteTo emits this object's payload (not the envelope) to w.
	WriteTo(w *Writer) error
	// ReadFrom populates this object from its payload (not the envelope),
	// given the envelope's header for context.
	ReadFrom(h Header, r *Reader) error
}

// Header is the envelope that precedes every serialized object's payload.
type Header struct {
	TypeName      string
	SchemaVersion uint16
	PayloadSize   uint32
}

var (
	registryMu sync.RWMutex
	factories  = make(map[string]func() Object)
)

// Register installs factory under name. Called from defining packages'
// init() functions; panics on a duplicate name since that indicates two
// types accidentally sharing a registry key, a programming error.
func Register(name string, factory func() Object) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("serial: duplicate type registration for %q", name))
	}
	factories[name] = factory
}

// New constructs a zero-value Object for name, or UnknownType if nothing
// registered under that name.
func New(name string) (Object, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("serial: %q: %w", name, kerr.UnknownType)
	}
	return factory(), nil
}
