package packet

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/cyberinferno/go-l2server/protocol"
)

// Writer serializes packet fields in declaration order, little-endian,
// fixed width.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteOpcode writes op as it appears on the wire: one byte, or the prefix
// byte followed by the uint16 sub-opcode for extended opcodes.
func (w *Writer) WriteOpcode(op protocol.Opcode) {
	w.WriteUint8(op.Prefix())
	if op.IsExtended() {
		w.WriteUint16(op.Sub())
	}
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteString writes s as UTF-16LE followed by a NUL code unit.
func (w *Writer) WriteString(s string) {
	for _, u := range utf16.Encode([]rune(s)) {
		w.WriteUint16(u)
	}

	w.WriteUint16(0)
}

// Bytes returns the serialized bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reader decodes little-endian fields from an inbound payload. The first
// short read records an error wrapping ErrMalformedPacket; every later read
// returns a zero value, so decoders can read all fields and check Err once.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}

	if len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: %s needs %d bytes, %d left", ErrMalformedPacket, field, n, len(r.buf)-r.off)
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) ReadUint8() uint8 {
	b := r.take(1, "uint8")
	if b == nil {
		return 0
	}

	return b[0]
}

func (r *Reader) ReadUint16() uint16 {
	b := r.take(2, "uint16")
	if b == nil {
		return 0
	}

	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

func (r *Reader) ReadInt32() int32 {
	b := r.take(4, "int32")
	if b == nil {
		return 0
	}

	return int32(binary.LittleEndian.Uint32(b))
}

func (r *Reader) ReadInt64() int64 {
	b := r.take(8, "int64")
	if b == nil {
		return 0
	}

	return int64(binary.LittleEndian.Uint64(b))
}

func (r *Reader) ReadFloat64() float64 {
	b := r.take(8, "float64")
	if b == nil {
		return 0
	}

	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// ReadBytes returns the next n bytes. The slice aliases the payload.
func (r *Reader) ReadBytes(n int) []byte {
	return r.take(n, "bytes")
}

// ReadString reads a NUL-terminated UTF-16LE string. A missing terminator is
// a malformed packet.
func (r *Reader) ReadString() string {
	var units []uint16
	for {
		if r.err != nil {
			return ""
		}

		b := r.take(2, "string")
		if b == nil {
			return ""
		}

		u := binary.LittleEndian.Uint16(b)
		if u == 0 {
			return string(utf16.Decode(units))
		}

		units = append(units, u)
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Err returns the first decoding error, if any.
func (r *Reader) Err() error {
	return r.err
}
