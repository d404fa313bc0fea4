package world

import (
	"context"
	"fmt"
	"sync"

	"github.com/cyberinferno/go-l2server/idgenerator"
)

// MemoryCharacterStore is a CharacterService kept in process memory.
type MemoryCharacterStore struct {
	ids *idgenerator.IdGenerator

	mu        sync.RWMutex
	byID      map[int32]Character
	byAccount map[string][]int32
}

// NewMemoryCharacterStore returns an empty store assigning IDs from ids.
func NewMemoryCharacterStore(ids *idgenerator.IdGenerator) *MemoryCharacterStore {
	return &MemoryCharacterStore{
		ids:       ids,
		byID:      make(map[int32]Character),
		byAccount: make(map[string][]int32),
	}
}

func (s *MemoryCharacterStore) ListByAccount(ctx context.Context, account string) ([]Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[account]
	chars := make([]Character, 0, len(ids))
	for _, id := range ids {
		chars = append(chars, s.byID[id])
	}

	return chars, nil
}

func (s *MemoryCharacterStore) Get(ctx context.Context, id int32) (Character, error) {
	if err := ctx.Err(); err != nil {
		return Character{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return Character{}, fmt.Errorf("%w: %d", ErrCharacterNotFound, id)
	}

	return c, nil
}

func (s *MemoryCharacterStore) Create(ctx context.Context, c Character) (Character, error) {
	if err := ctx.Err(); err != nil {
		return Character{}, err
	}
	if c.Account == "" || c.Name == "" {
		return Character{}, fmt.Errorf("character needs an account and a name")
	}

	id, err := s.ids.Id()
	if err != nil {
		return Character{}, fmt.Errorf("allocate character id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = int32(id)
	c.Slot = len(s.byAccount[c.Account])
	s.byID[c.ID] = c
	s.byAccount[c.Account] = append(s.byAccount[c.Account], c.ID)
	return c, nil
}

// Move updates a character's position.
func (s *MemoryCharacterStore) Move(id int32, p Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrCharacterNotFound, id)
	}

	c.Point = p
	s.byID[id] = c
	return nil
}
