package cipher

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// KeyHeadSize is the number of random leading key bytes. Only these bytes
// travel in the handshake packet; the rest is the constant tail.
const KeyHeadSize = 8

// ErrKeyGeneration is returned when key material cannot be produced.
var ErrKeyGeneration = errors.New("cipher key generation failed")

// keyTail is the fixed second half of every key issued by the legacy key
// generator. Clients know it and rebuild the full key from the head alone.
var keyTail = [KeySize - KeyHeadSize]byte{0xc8, 0x27, 0x93, 0x01, 0xa1, 0x6c, 0x31, 0x97}

// GenerateKey builds a new key from KeyHeadSize random bytes followed by the
// constant tail.
//
// Parameters:
//   - r: Source of randomness; nil means crypto/rand.Reader
//
// Returns:
//   - The generated key
//   - An error wrapping ErrKeyGeneration if r fails
func GenerateKey(r io.Reader) ([KeySize]byte, error) {
	if r == nil {
		r = rand.Reader
	}

	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:KeyHeadSize]); err != nil {
		return key, fmt.Errorf("%w: %w", ErrKeyGeneration, err)
	}

	copy(key[KeyHeadSize:], keyTail[:])
	return key, nil
}

// KeyFromHead completes a key received in a handshake packet.
func KeyFromHead(head []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(head) != KeyHeadSize {
		return key, fmt.Errorf("key head size = %d; want %d", len(head), KeyHeadSize)
	}

	copy(key[:], head)
	copy(key[KeyHeadSize:], keyTail[:])
	return key, nil
}
