package frame

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("length prefix counts the whole frame", func(t *testing.T) {
		out, err := Encode([]byte{0x9d, 0x05, 0x00, 0x00, 0x00})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x07, 0x00, 0x9d, 0x05, 0x00, 0x00, 0x00}, out)
	})

	t.Run("empty payload is rejected", func(t *testing.T) {
		_, err := Encode(nil)
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("oversized payload is rejected", func(t *testing.T) {
		_, err := Encode(make([]byte, MaxFrameSize))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestReader_ReadFrame(t *testing.T) {
	t.Run("round trips encoded payloads", func(t *testing.T) {
		var stream bytes.Buffer
		payloads := [][]byte{{0x0e, 0x0f, 0x01, 0x00, 0x00}, {0x11}, bytes.Repeat([]byte{0xaa}, 1000)}
		for _, p := range payloads {
			require.NoError(t, WriteFrame(&stream, p))
		}

		fr := NewReader(&stream, MaxFrameSize)
		for _, want := range payloads {
			got, err := fr.ReadFrame()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		_, err := fr.ReadFrame()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("reassembles frames delivered one byte at a time", func(t *testing.T) {
		var stream bytes.Buffer
		require.NoError(t, WriteFrame(&stream, []byte{0x2a, 1, 2, 3, 4}))
		require.NoError(t, WriteFrame(&stream, []byte{0x9d, 5, 0, 0, 0}))

		fr := NewReader(iotest.OneByteReader(&stream), MaxFrameSize)
		first, err := fr.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, []byte{0x2a, 1, 2, 3, 4}, first)

		second, err := fr.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, []byte{0x9d, 5, 0, 0, 0}, second)
	})

	t.Run("declared length zero is a framing error", func(t *testing.T) {
		fr := NewReader(bytes.NewReader([]byte{0x00, 0x00, 0x01}), MaxFrameSize)
		_, err := fr.ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("declared length equal to the prefix is a framing error", func(t *testing.T) {
		fr := NewReader(bytes.NewReader([]byte{0x02, 0x00}), MaxFrameSize)
		_, err := fr.ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("declared length above the maximum is a framing error", func(t *testing.T) {
		fr := NewReader(bytes.NewReader([]byte{0x00, 0x10}), 1024)
		_, err := fr.ReadFrame()
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("truncated frame is never returned", func(t *testing.T) {
		fr := NewReader(bytes.NewReader([]byte{0x08, 0x00, 0x9d, 0x01}), MaxFrameSize)
		got, err := fr.ReadFrame()
		assert.Nil(t, got)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("truncated header is an unexpected EOF", func(t *testing.T) {
		fr := NewReader(bytes.NewReader([]byte{0x08}), MaxFrameSize)
		_, err := fr.ReadFrame()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("invalid max frame falls back to the protocol maximum", func(t *testing.T) {
		fr := NewReader(bytes.NewReader(nil), 0)
		assert.Equal(t, MaxFrameSize, fr.maxFrame)
	})
}
