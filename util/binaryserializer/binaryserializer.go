// Package binaryserializer reads and writes the fixed width primitives of the
// on-disk record formats. Integers are little endian. Variable length byte
// strings are prefixed with their uint32 length.
package binaryserializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxVarBytesLength bounds the length prefix accepted by VarBytes
const MaxVarBytesLength = 1 << 16

// maxItems is the number of buffers to keep in the free
// list to use for binary serialization and deserialization.
const maxItems = 1024

// binaryFreeList is a concurrent safe free list of 8 byte buffers used for
// primitive values, reducing allocations on hot serialization paths.
var binaryFreeList = make(chan []byte, maxItems)

func borrow() []byte {
	var buf []byte
	select {
	case buf = <-binaryFreeList:
	default:
		buf = make([]byte, 8)
	}
	return buf[:8]
}

func giveBack(buf []byte) {
	select {
	case binaryFreeList <- buf[:8]:
	default:
		// Let it go to the garbage collector.
	}
}

// Uint8 reads a single byte from r
func Uint8(r io.Reader) (uint8, error) {
	buf := borrow()
	defer giveBack(buf)
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, errors.WithStack(err)
	}
	return buf[0], nil
}

// PutUint8 writes a single byte to w
func PutUint8(w io.Writer, val uint8) error {
	buf := borrow()
	defer giveBack(buf)
	buf[0] = val
	_, err := w.Write(buf[:1])
	return errors.WithStack(err)
}

// Uint32 reads a little endian uint32 from r
func Uint32(r io.Reader) (uint32, error) {
	buf := borrow()
	defer giveBack(buf)
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint32(buf[:4]), nil
}

// PutUint32 writes val to w as a little endian uint32
func PutUint32(w io.Writer, val uint32) error {
	buf := borrow()
	defer giveBack(buf)
	binary.LittleEndian.PutUint32(buf[:4], val)
	_, err := w.Write(buf[:4])
	return errors.WithStack(err)
}

// Uint64 reads a little endian uint64 from r
func Uint64(r io.Reader) (uint64, error) {
	buf := borrow()
	defer giveBack(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, errors.WithStack(err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// PutUint64 writes val to w as a little endian uint64
func PutUint64(w io.Writer, val uint64) error {
	buf := borrow()
	defer giveBack(buf)
	binary.LittleEndian.PutUint64(buf, val)
	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// Bool reads a boolean encoded as a single 0 or 1 byte
func Bool(r io.Reader) (bool, error) {
	b, err := Uint8(r)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Errorf("invalid boolean byte %d", b)
}

// PutBool writes val as a single 0 or 1 byte
func PutBool(w io.Writer, val bool) error {
	if val {
		return PutUint8(w, 1)
	}
	return PutUint8(w, 0)
}

// OptionalUint64 reads a presence flag followed, if set, by a uint64
func OptionalUint64(r io.Reader) (*uint64, error) {
	present, err := Bool(r)
	if err != nil || !present {
		return nil, err
	}
	val, err := Uint64(r)
	if err != nil {
		return nil, err
	}
	return &val, nil
}

// PutOptionalUint64 writes a presence flag followed, if val is not nil, by
// *val
func PutOptionalUint64(w io.Writer, val *uint64) error {
	err := PutBool(w, val != nil)
	if err != nil || val == nil {
		return err
	}
	return PutUint64(w, *val)
}

// VarBytes reads a length prefixed byte string
func VarBytes(r io.Reader) ([]byte, error) {
	length, err := Uint32(r)
	if err != nil {
		return nil, err
	}
	if length > MaxVarBytesLength {
		return nil, errors.Errorf("byte string length %d exceeds maximum %d", length, MaxVarBytesLength)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// PutVarBytes writes data prefixed with its length
func PutVarBytes(w io.Writer, data []byte) error {
	if len(data) > MaxVarBytesLength {
		return errors.Errorf("byte string length %d exceeds maximum %d", len(data), MaxVarBytesLength)
	}
	err := PutUint32(w, uint32(len(data)))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.WithStack(err)
}
