// Package cipher implements the game protocol stream cipher: a 16-byte key
// XOR transform with ciphertext feedback whose key counter advances after
// every processed frame.
//
// A GameCipher is owned by exactly one direction of one session. It is not
// safe for concurrent use; the session guarantees that only its reader (for
// the inbound instance) or its writer (for the outbound instance) touches it.
package cipher

import (
	"encoding/binary"
	"fmt"
)

// KeySize is the size of the cipher key in bytes.
const KeySize = 16

// counterOffset is where the little-endian frame counter lives inside the key.
const counterOffset = 8

// GameCipher holds the mutable key material of one stream direction.
type GameCipher struct {
	key     [KeySize]byte
	enabled bool
}

// New returns a disabled cipher. Transforms are identity until Enable or
// EnableWithKey is called.
func New() *GameCipher {
	return &GameCipher{}
}

// Enable generates a fresh legacy-compatible key, installs it and turns the
// transform on. The generated key is returned so it can be sent to the peer.
//
// Returns:
//   - The installed key
//   - An error wrapping ErrKeyGeneration if randomness could not be read
func (c *GameCipher) Enable() ([KeySize]byte, error) {
	key, err := GenerateKey(nil)
	if err != nil {
		return key, fmt.Errorf("enable cipher: %w", err)
	}

	c.EnableWithKey(key)
	return key, nil
}

// EnableWithKey installs key and turns the transform on. It is used for the
// mirrored instance that must start from the same key as one produced by
// Enable.
func (c *GameCipher) EnableWithKey(key [KeySize]byte) {
	c.SetKey(key)
	c.enabled = true
}

// SetKey replaces the key material without changing the enabled flag.
func (c *GameCipher) SetKey(key [KeySize]byte) {
	c.key = key
}

// Key returns a copy of the current key material.
func (c *GameCipher) Key() [KeySize]byte {
	return c.key
}

// Enabled reports whether transforms are active.
func (c *GameCipher) Enabled() bool {
	return c.enabled
}

// Decrypt transforms one frame's ciphertext into plaintext in place. The
// feedback byte is the previous ciphertext byte of this call.
func (c *GameCipher) Decrypt(buf []byte) {
	if !c.enabled {
		return
	}

	var prev byte
	for i, b := range buf {
		buf[i] = b ^ c.key[i&15] ^ prev
		prev = b
	}

	c.advance(len(buf))
}

// Encrypt transforms one frame's plaintext into ciphertext in place. The
// feedback byte is the previous ciphertext byte produced by this call, which
// mirrors Decrypt so both peers see the same feedback sequence.
func (c *GameCipher) Encrypt(buf []byte) {
	if !c.enabled {
		return
	}

	var prev byte
	for i, b := range buf {
		prev = b ^ c.key[i&15] ^ prev
		buf[i] = prev
	}

	c.advance(len(buf))
}

// advance adds n to the little-endian counter stored in key[8:12], wrapping
// modulo 2^32.
func (c *GameCipher) advance(n int) {
	counter := binary.LittleEndian.Uint32(c.key[counterOffset:])
	counter += uint32(n)
	binary.LittleEndian.PutUint32(c.key[counterOffset:], counter)
}
