package serial

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kestrel-db/kestrel/internal/kerr"
)

// Writer accumulates a payload's bytes in the primitive encodings §4.3
// specifies: integers in the file's byte order, strings as a u32 length
// prefix plus raw bytes, sequences as a u32 count prefix plus elements.
type Writer struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

// NewWriter returns an empty Writer using order for integer encoding.
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.buf.Write(b)
	return err
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.buf.WriteByte(1)
	}
	return w.buf.WriteByte(0)
}

func (w *Writer) WriteUint16(v uint16) error {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	_, err := w.buf.Write(b[:])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	_, err := w.buf.Write(b[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	_, err := w.buf.Write(b[:])
	return err
}

func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	_, err := w.buf.WriteString(s)
	return err
}

// Reader parses a payload previously produced by a Writer.
type Reader struct {
	r     *bytes.Reader
	order binary.ByteOrder
}

func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{r: bytes.NewReader(data), order: order}
}

func (r *Reader) ReadRaw(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, fmt.Errorf("serial: short read: %w", kerr.Corrupt)
	}
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("serial: short read: %w", kerr.Corrupt)
	}
	return b != 0, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadRaw(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SizeOfString returns the encoded size of s including its length prefix.
func SizeOfString(s string) uint32 { return 4 + uint32(len(s)) }

// Encode writes obj's full envelope-plus-payload form.
func Encode(obj Object, order binary.ByteOrder) ([]byte, error) {
	w := NewWriter(order)
	if err := obj.WriteTo(w); err != nil {
		return nil, err
	}
	payload := w.Bytes()

	env := NewWriter(order)
	if err := env.WriteUint16(uint16(len(obj.TypeName()))); err != nil {
		return nil, err
	}
	if err := env.WriteRaw([]byte(obj.TypeName())); err != nil {
		return nil, err
	}
	if err := env.WriteUint16(obj.SchemaVersion()); err != nil {
		return nil, err
	}
	if err := env.WriteUint32(uint32(len(payload))); err != nil {
		return nil, err
	}
	if err := env.WriteRaw(payload); err != nil {
		return nil, err
	}
	return env.Bytes(), nil
}

// Decode parses an envelope-plus-payload blob previously produced by Encode
// and returns the resolved, populated Object.
func Decode(data []byte, order binary.ByteOrder) (Object, error) {
	r := NewReader(data, order)
	nameLen, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	nameBytes, err := r.ReadRaw(int(nameLen))
	if err != nil {
		return nil, err
	}
	name := string(nameBytes)
	schemaVersion, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	payloadSize, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	payload, err := r.ReadRaw(int(payloadSize))
	if err != nil {
		return nil, err
	}

	obj, err := New(name)
	if err != nil {
		return nil, err
	}
	pr := NewReader(payload, order)
	h := Header{TypeName: name, SchemaVersion: schemaVersion, PayloadSize: payloadSize}
	if err := obj.ReadFrom(h, pr); err != nil {
		return nil, fmt.Errorf("serial: decode %q: %w", name, kerr.Corrupt)
	}
	return obj, nil
}

// EnvelopeSize returns the total encoded size (envelope + payload) for an
// object with the given type name and payload size, useful for callers
// that need to size-check a block before writing.
func EnvelopeSize(typeName string, payloadSize uint32) uint32 {
	return 2 + uint32(len(typeName)) + 2 + 4 + payloadSize
}
