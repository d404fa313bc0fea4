package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-l2server/async"
	"github.com/cyberinferno/go-l2server/cacher"
	"github.com/cyberinferno/go-l2server/idgenerator"
)

func newStore() *MemoryCharacterStore {
	return NewMemoryCharacterStore(idgenerator.NewPlayerIdGenerator())
}

func TestMemoryCharacterStore(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	a, err := s.Create(ctx, Character{Account: "alice", Name: "First", Level: 1})
	require.NoError(t, err)
	b, err := s.Create(ctx, Character{Account: "alice", Name: "Second", Level: 2})
	require.NoError(t, err)
	_, err = s.Create(ctx, Character{Account: "bob", Name: "Other"})
	require.NoError(t, err)

	t.Run("assigns ids from the player range", func(t *testing.T) {
		assert.Equal(t, int32(idgenerator.PlayerFirstID), a.ID)
		assert.Equal(t, a.ID+1, b.ID)
	})

	t.Run("lists by account in slot order", func(t *testing.T) {
		chars, err := s.ListByAccount(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, chars, 2)
		assert.Equal(t, "First", chars[0].Name)
		assert.Equal(t, 0, chars[0].Slot)
		assert.Equal(t, 1, chars[1].Slot)
	})

	t.Run("unknown account is empty", func(t *testing.T) {
		chars, err := s.ListByAccount(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, chars)
	})

	t.Run("get and move", func(t *testing.T) {
		require.NoError(t, s.Move(b.ID, Point{X: 1, Y: 2, Z: 3}))
		got, err := s.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, Point{X: 1, Y: 2, Z: 3}, got.Point)

		_, err = s.Get(ctx, 1)
		assert.ErrorIs(t, err, ErrCharacterNotFound)
		assert.ErrorIs(t, s.Move(1, Point{}), ErrCharacterNotFound)
	})

	t.Run("create validates", func(t *testing.T) {
		_, err := s.Create(ctx, Character{Account: "alice"})
		assert.Error(t, err)
	})

	t.Run("create fails when ids run out", func(t *testing.T) {
		ids, err := idgenerator.NewIdGenerator(1, 1)
		require.NoError(t, err)
		small := NewMemoryCharacterStore(ids)
		_, err = small.Create(ctx, Character{Account: "a", Name: "x"})
		require.NoError(t, err)
		_, err = small.Create(ctx, Character{Account: "a", Name: "y"})
		assert.ErrorIs(t, err, idgenerator.ErrExhausted)
	})
}

type countingService struct {
	CharacterService
	lists int
	gets  int
}

func (c *countingService) ListByAccount(ctx context.Context, account string) ([]Character, error) {
	c.lists++
	return c.CharacterService.ListByAccount(ctx, account)
}

func (c *countingService) Get(ctx context.Context, id int32) (Character, error) {
	c.gets++
	return c.CharacterService.Get(ctx, id)
}

func TestCachedCharacterService(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	inner := &countingService{CharacterService: store}
	svc := NewCachedCharacterService(inner, cacher.NewMemoryCacher[[]Character](cache.NoExpiration, time.Minute), time.Minute)

	created, err := svc.Create(ctx, Character{Account: "alice", Name: "One"})
	require.NoError(t, err)

	t.Run("lists are cached", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			chars, err := svc.ListByAccount(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, chars, 1)
		}
		assert.Equal(t, 1, inner.lists)
	})

	t.Run("get bypasses the cache", func(t *testing.T) {
		require.NoError(t, store.Move(created.ID, Point{X: 5}))
		got, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(5), got.Point.X)

		_, err = svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.gets)
	})

	t.Run("create invalidates the account list", func(t *testing.T) {
		_, err := svc.Create(ctx, Character{Account: "alice", Name: "Two"})
		require.NoError(t, err)

		chars, err := svc.ListByAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, chars, 2)
		assert.Equal(t, 2, inner.lists)
	})
}

func TestStaticAuthenticator(t *testing.T) {
	ctx := context.Background()
	key := SessionKey{PlayKey1: 1, PlayKey2: 2, LoginKey1: 3, LoginKey2: 4}

	t.Run("empty table accepts any account", func(t *testing.T) {
		a := NewStaticAuthenticator()
		assert.NoError(t, a.Authenticate(ctx, "anyone", SessionKey{}))
		assert.ErrorIs(t, a.Authenticate(ctx, "", SessionKey{}), ErrAuthFailed)
	})

	t.Run("checks granted keys", func(t *testing.T) {
		a := NewStaticAuthenticator()
		a.Grant("alice", key)

		assert.NoError(t, a.Authenticate(ctx, "alice", key))
		assert.ErrorIs(t, a.Authenticate(ctx, "alice", SessionKey{}), ErrAuthFailed)
		assert.ErrorIs(t, a.Authenticate(ctx, "bob", key), ErrAuthFailed)
	})
}

func TestPhysicalAttackCalculator(t *testing.T) {
	var calc PhysicalAttackCalculator
	assert.Equal(t, float64(70), calc.Calculate(Character{Attack: 10}, Character{Defence: 10}))
	assert.Equal(t, float64(1), calc.Calculate(Character{Attack: 0}, Character{Defence: 10}))
	assert.Equal(t, float64(700), calc.Calculate(Character{Attack: 10}, Character{Defence: 0}))
}

func TestAttackService(t *testing.T) {
	pool, err := async.NewPool(2)
	require.NoError(t, err)
	defer pool.Close()

	var mu sync.Mutex
	var hits []AttackHit
	svc := NewAttackService(pool, PhysicalAttackCalculator{}, func(h AttackHit) {
		mu.Lock()
		hits = append(hits, h)
		mu.Unlock()
	})
	ctx := context.Background()

	attacker := Character{ID: 1, Attack: 20}
	target := Character{ID: 2, Defence: 10}

	t.Run("resolves a hit", func(t *testing.T) {
		hit, err := svc.Attack(ctx, attacker, target).Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(140), hit.Damage)
		assert.Equal(t, int32(2), hit.Target.ID)

		mu.Lock()
		assert.Len(t, hits, 1)
		mu.Unlock()
	})

	t.Run("refuses self attack", func(t *testing.T) {
		_, err := svc.Attack(ctx, attacker, attacker).Wait(ctx)
		assert.ErrorIs(t, err, ErrSelfAttack)
	})
}

func TestOnlineRegistry(t *testing.T) {
	r := NewOnlineRegistry()

	require.NoError(t, r.Enter(7, 1))
	assert.ErrorIs(t, r.Enter(7, 1), ErrAlreadyOnline)
	assert.ErrorIs(t, r.Enter(7, 2), ErrAlreadyOnline)
	assert.True(t, r.Contains(7))
	assert.Equal(t, 1, r.Len())

	t.Run("other session cannot leave", func(t *testing.T) {
		assert.False(t, r.Leave(7, 2))
		assert.True(t, r.Contains(7))
		owner, ok := r.Owner(7)
		require.True(t, ok)
		assert.Equal(t, uint32(1), owner)
	})

	t.Run("owner leaves", func(t *testing.T) {
		assert.True(t, r.Leave(7, 1))
		assert.False(t, r.Leave(7, 1))
		assert.False(t, r.Contains(7))
		assert.NoError(t, r.Enter(7, 2))
	})
}
