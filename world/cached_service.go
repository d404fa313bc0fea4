package world

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberinferno/go-l2server/cacher"
)

const characterListKeyPrefix = "chars:"

// CachedCharacterService caches an account's character list in front of
// another CharacterService. Single-character reads go straight through
// because positions change while a character is in game.
type CachedCharacterService struct {
	inner CharacterService
	cache cacher.Cacher[[]Character]

	listByAccount func(ctx context.Context, account string) ([]Character, error)
	get           func(ctx context.Context, id int32) (Character, error)
}

// NewCachedCharacterService wraps inner.
//
// Parameters:
//   - inner: The service doing the real lookups
//   - cache: Cache for character lists
//   - ttl: How long a cached list stays valid
//
// Returns:
//   - A new CachedCharacterService
func NewCachedCharacterService(inner CharacterService, cache cacher.Cacher[[]Character], ttl time.Duration) *CachedCharacterService {
	return &CachedCharacterService{
		inner: inner,
		cache: cache,
		listByAccount: cacher.Wrap(cache, ttl, cacher.Method[string, []Character]{
			Call: inner.ListByAccount,
			Key:  characterListKey,
		}),
		get: cacher.Wrap[int32, Character](nil, ttl, cacher.Method[int32, Character]{
			Call:   inner.Get,
			Bypass: true,
		}),
	}
}

func characterListKey(account string) string {
	return characterListKeyPrefix + account
}

func (s *CachedCharacterService) ListByAccount(ctx context.Context, account string) ([]Character, error) {
	return s.listByAccount(ctx, account)
}

func (s *CachedCharacterService) Get(ctx context.Context, id int32) (Character, error) {
	return s.get(ctx, id)
}

// Create stores c and drops the account's cached list.
func (s *CachedCharacterService) Create(ctx context.Context, c Character) (Character, error) {
	created, err := s.inner.Create(ctx, c)
	if err != nil {
		return Character{}, err
	}

	if err := s.cache.Delete(ctx, characterListKey(created.Account)); err != nil {
		return created, fmt.Errorf("invalidate character list of %s: %w", created.Account, err)
	}

	return created, nil
}
