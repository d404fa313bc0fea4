package idgenerator

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdGenerator(t *testing.T) {
	t.Run("rejects empty range", func(t *testing.T) {
		_, err := NewIdGenerator(10, 9)
		assert.Error(t, err)
	})

	t.Run("first id is the range start", func(t *testing.T) {
		gen, err := NewIdGenerator(100, 200)
		require.NoError(t, err)

		id, err := gen.Id()
		require.NoError(t, err)
		assert.Equal(t, uint32(100), id)
	})

	t.Run("player range starts at the player base", func(t *testing.T) {
		id, err := NewPlayerIdGenerator().Id()
		require.NoError(t, err)
		assert.Equal(t, PlayerFirstID, id)
	})
}

func TestIdGenerator_Id(t *testing.T) {
	t.Run("ids are sequential", func(t *testing.T) {
		gen, err := NewIdGenerator(1, 10)
		require.NoError(t, err)
		for want := uint32(1); want <= 10; want++ {
			got, err := gen.Id()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("exhausted range fails", func(t *testing.T) {
		gen, err := NewIdGenerator(5, 6)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), gen.Remaining())

		_, _ = gen.Id()
		_, _ = gen.Id()
		_, err = gen.Id()
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, uint64(0), gen.Remaining())

		_, err = gen.Id()
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("range ending at max uint32 does not wrap", func(t *testing.T) {
		gen, err := NewIdGenerator(math.MaxUint32, math.MaxUint32)
		require.NoError(t, err)

		id, err := gen.Id()
		require.NoError(t, err)
		assert.Equal(t, uint32(math.MaxUint32), id)

		_, err = gen.Id()
		assert.ErrorIs(t, err, ErrExhausted)
	})
}

func TestIdGenerator_concurrent(t *testing.T) {
	gen, err := NewIdGenerator(1, 300)
	require.NoError(t, err)

	const n = 500
	ids := make([]uint32, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			ids[idx], errs[idx] = gen.Id()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool)
	failed := 0
	for i, id := range ids {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], ErrExhausted)
			failed++
			continue
		}
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	assert.Len(t, seen, 300)
	assert.Equal(t, 200, failed)
}
