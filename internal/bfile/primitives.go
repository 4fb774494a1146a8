package bfile

// ReadUint16 reads a uint16 at offset using the file's current byte order.
func (f *File) ReadUint16(offset int64) (uint16, error) {
	var buf [2]byte
	if err := f.ReadAt(offset, buf[:]); err != nil {
		return 0, err
	}
	return f.order.Uint16(buf[:]), nil
}

// WriteUint16 writes v at offset using the file's current byte order.
func (f *File) WriteUint16(offset int64, v uint16) error {
	var buf [2]byte
	f.order.PutUint16(buf[:], v)
	return f.WriteAt(offset, buf[:])
}

// ReadUint32 reads a uint32 at offset using the file's current byte order.
func (f *File) ReadUint32(offset int64) (uint32, error) {
	var buf [4]byte
	if err := f.ReadAt(offset, buf[:]); err != nil {
		return 0, err
	}
	return f.order.Uint32(buf[:]), nil
}

// WriteUint32 writes v at offset using the file's current byte order.
func (f *File) WriteUint32(offset int64, v uint32) error {
	var buf [4]byte
	f.order.PutUint32(buf[:], v)
	return f.WriteAt(offset, buf[:])
}

// ReadUint64 reads a uint64 at offset using the file's current byte order.
func (f *File) ReadUint64(offset int64) (uint64, error) {
	var buf [8]byte
	if err := f.ReadAt(offset, buf[:]); err != nil {
		return 0, err
	}
	return f.order.Uint64(buf[:]), nil
}

// WriteUint64 writes v at offset using the file's current byte order.
func (f *File) WriteUint64(offset int64, v uint64) error {
	var buf [8]byte
	f.order.PutUint64(buf[:], v)
	return f.WriteAt(offset, buf[:])
}

// ReadPtr reads a Ptr at offset.
func (f *File) ReadPtr(offset int64) (Ptr, error) {
	v, err := f.ReadUint64(offset)
	return Ptr(v), err
}

// WritePtr writes a Ptr at offset.
func (f *File) WritePtr(offset int64, p Ptr) error {
	return f.WriteUint64(offset, uint64(p))
}
