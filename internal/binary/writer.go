package binary

import "encoding/binary"

// Writer appends WebAssembly encodings to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes. The slice aliases the buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte appends one byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes appends p unchanged.
func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteU32 appends v as unsigned LEB128, the same encoding as a uvarint.
func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.AppendUvarint(w.buf, uint64(v))
}

// WriteName appends a length-prefixed name.
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteU32LE appends v as 4 little-endian bytes.
func (w *Writer) WriteU32LE(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteSection appends a section: id, payload size, payload.
func (w *Writer) WriteSection(id byte, payload []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(payload)))
	w.WriteBytes(payload)
}

// WriteCustomSection appends a custom section carrying name and payload.
func (w *Writer) WriteCustomSection(name string, payload []byte) {
	nameLen := uint32(len(name))
	size := uint32(sizeU32(nameLen)) + nameLen + uint32(len(payload))
	w.Byte(0)
	w.WriteU32(size)
	w.WriteName(name)
	w.WriteBytes(payload)
}

// sizeU32 returns the LEB128 length of v.
func sizeU32(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
