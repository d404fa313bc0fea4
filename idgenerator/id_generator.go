package idgenerator

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrExhausted is returned once every ID in a generator's range was handed
// out.
var ErrExhausted = errors.New("id range exhausted")

// Object ID ranges shared with the client's view of the world.
const (
	PlayerFirstID uint32 = 0x10000000
	PlayerLastID  uint32 = 0x7FFFFFFF
)

// IdGenerator hands out unique uint32 IDs from an inclusive range in
// ascending order. It is safe for concurrent use.
type IdGenerator struct {
	first uint32
	last  uint32
	next  atomic.Uint64
}

// NewIdGenerator creates a generator for the range [first, last].
//
// Parameters:
//   - first: The first ID returned
//   - last: The last ID returned before the generator reports ErrExhausted
//
// Returns:
//   - A new IdGenerator, or an error if the range is empty
func NewIdGenerator(first, last uint32) (*IdGenerator, error) {
	if last < first {
		return nil, fmt.Errorf("invalid id range [%d, %d]", first, last)
	}

	gen := &IdGenerator{first: first, last: last}
	gen.next.Store(uint64(first))
	return gen, nil
}

// NewPlayerIdGenerator returns a generator over the player object range.
func NewPlayerIdGenerator() *IdGenerator {
	gen, _ := NewIdGenerator(PlayerFirstID, PlayerLastID)
	return gen
}

// Id returns the next unused ID.
//
// Returns:
//   - The ID, or ErrExhausted once the range is used up
func (g *IdGenerator) Id() (uint32, error) {
	id := g.next.Add(1) - 1
	if id > uint64(g.last) {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrExhausted, g.first, g.last)
	}

	return uint32(id), nil
}

// Remaining returns how many IDs can still be handed out.
func (g *IdGenerator) Remaining() uint64 {
	next := g.next.Load()
	if next > uint64(g.last) {
		return 0
	}

	return uint64(g.last) - next + 1
}
