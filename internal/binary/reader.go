// Package binary reads and writes the primitive encodings of the
// WebAssembly binary format: LEB128 integers, names and sections.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

var (
	// ErrOverflow is returned when a LEB128 value does not fit its type.
	ErrOverflow = errors.New("leb128: overflow")
	// ErrInvalidName is returned for names that are not valid UTF-8.
	ErrInvalidName = errors.New("name is not valid UTF-8")
)

// Reader consumes a byte slice front to back. Slices it returns alias the
// underlying data.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the offset of the next unread byte.
func (r *Reader) Position() int {
	return r.off
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.off
}

// Slice returns data[from:to] of the underlying buffer.
func (r *Reader) Slice(from, to int) []byte {
	return r.data[from:to]
}

// ReadByte returns the next byte, or io.EOF at the end of the data.
func (r *Reader) ReadByte() (byte, error) {
	if r.Len() == 0 {
		return 0, io.EOF
	}
	r.off++
	return r.data[r.off-1], nil
}

// ReadBytes returns the next n bytes. A short read consumes nothing.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.fail(io.ErrUnexpectedEOF)
	}
	start := r.off
	r.off += n
	return r.data[start:r.off:r.off], nil
}

// ReadRemaining consumes and returns every unread byte.
func (r *Reader) ReadRemaining() []byte {
	rest := r.data[r.off:]
	r.off = len(r.data)
	return rest
}

// leb decodes at most maxBytes 7-bit groups and returns the accumulated
// value, the number of bits it covers and the final group byte.
func (r *Reader) leb(maxBytes int) (v uint64, bits uint, last byte, err error) {
	for range maxBytes {
		if r.Len() == 0 {
			return 0, 0, 0, r.fail(io.ErrUnexpectedEOF)
		}
		last = r.data[r.off]
		r.off++
		v |= uint64(last&0x7f) << bits
		bits += 7
		if last&0x80 == 0 {
			return v, bits, last, nil
		}
	}
	return 0, 0, 0, r.fail(ErrOverflow)
}

// ReadU32 reads an unsigned LEB128 uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, _, _, err := r.leb(5)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, r.fail(ErrOverflow)
	}
	return uint32(v), nil
}

// ReadU64 reads an unsigned LEB128 uint64.
func (r *Reader) ReadU64() (uint64, error) {
	v, bits, last, err := r.leb(10)
	if err != nil {
		return 0, err
	}
	if bits == 70 && last > 0x01 {
		return 0, r.fail(ErrOverflow)
	}
	return v, nil
}

// ReadS64 reads a signed LEB128 int64.
func (r *Reader) ReadS64() (int64, error) {
	v, bits, last, err := r.leb(10)
	if err != nil {
		return 0, err
	}
	n := int64(v)
	if bits < 64 && last&0x40 != 0 {
		n |= int64(-1) << bits
	}
	return n, nil
}

// ReadName reads a length-prefixed UTF-8 name.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.fail(ErrInvalidName)
	}
	return string(b), nil
}

// ReadU32LE reads a fixed 4-byte little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) fail(err error) error {
	return fmt.Errorf("offset %d: %w", r.off, err)
}

// ParseError locates a decoding failure inside a named part of the
// binary, e.g. "import section" or "limits".
type ParseError struct {
	Err     error
	Section string
	Offset  int
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("%s, offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError returns err as a ParseError at the current offset.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{Err: err, Section: section, Offset: r.off}
}
