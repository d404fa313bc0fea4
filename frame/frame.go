// Package frame splits and assembles the length-prefixed frames of the game
// protocol.
//
// A frame is [length uint16 LE][payload], where length counts the whole frame
// including the two length bytes. The payload (opcode and fields) is what the
// cipher transforms; the length prefix is always cleartext.
package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the width of the length prefix.
	HeaderSize = 2

	// MinFrameSize is the smallest legal frame: the prefix plus an opcode byte.
	MinFrameSize = HeaderSize + 1

	// MaxFrameSize is the largest length the prefix can declare.
	MaxFrameSize = 0xFFFF
)

var (
	// ErrFrameTooShort is returned when the declared length cannot hold an opcode.
	ErrFrameTooShort = errors.New("declared frame length too short")

	// ErrFrameTooLarge is returned when a frame exceeds the configured maximum.
	ErrFrameTooLarge = errors.New("declared frame length exceeds maximum")
)

// Reader extracts complete frames from a byte stream. Partial frames are
// buffered until the declared length is available; no partial payload is
// ever returned.
type Reader struct {
	r        *bufio.Reader
	maxFrame int
	header   [HeaderSize]byte
}

// NewReader returns a Reader over r that rejects frames longer than maxFrame
// bytes. A maxFrame outside [MinFrameSize, MaxFrameSize] is clamped to
// MaxFrameSize.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame < MinFrameSize || maxFrame > MaxFrameSize {
		maxFrame = MaxFrameSize
	}

	return &Reader{
		r:        bufio.NewReaderSize(r, 4096),
		maxFrame: maxFrame,
	}
}

// ReadFrame blocks until one whole frame is buffered and returns its payload
// with the length prefix stripped. The returned slice is owned by the caller.
//
// Returns:
//   - The frame payload (opcode and fields)
//   - io.EOF on a clean end of stream before any header byte,
//     io.ErrUnexpectedEOF on a truncated frame, ErrFrameTooShort or
//     ErrFrameTooLarge on an illegal declared length
func (fr *Reader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		return nil, err
	}

	length := int(binary.LittleEndian.Uint16(fr.header[:]))
	if length < MinFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooShort, length)
	}

	if length > fr.maxFrame {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, fr.maxFrame)
	}

	payload := make([]byte, length-HeaderSize)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return payload, nil
}

// Encode prepends the length prefix to payload. The payload must already be
// cipher-transformed.
//
// Returns:
//   - A new slice holding the complete frame
//   - An error if payload is empty or the frame would exceed MaxFrameSize
func Encode(payload []byte) ([]byte, error) {
	length := len(payload) + HeaderSize
	if length < MinFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooShort, length)
	}

	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, MaxFrameSize)
	}

	out := make([]byte, length)
	binary.LittleEndian.PutUint16(out, uint16(length))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// WriteFrame encodes payload and writes the whole frame to w in one call so
// that frames from a single writer are never interleaved.
func WriteFrame(w io.Writer, payload []byte) error {
	out, err := Encode(payload)
	if err != nil {
		return err
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}
