package world

import (
	"fmt"
	"sync"
)

// OnlineRegistry maps the characters currently in game to the session that
// brought them in.
type OnlineRegistry struct {
	mu     sync.RWMutex
	owners map[int32]uint32
}

func NewOnlineRegistry() *OnlineRegistry {
	return &OnlineRegistry{owners: make(map[int32]uint32)}
}

// Enter marks id as in game for session owner.
//
// Returns:
//   - ErrAlreadyOnline if id is already in game, whoever owns it
func (r *OnlineRegistry) Enter(id int32, owner uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyOnline, id)
	}

	r.owners[id] = owner
	return nil
}

// Leave removes id if owner brought it in game. It reports whether an entry
// was removed; leaving twice or leaving another session's character is
// harmless.
func (r *OnlineRegistry) Leave(id int32, owner uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.owners[id]; !ok || cur != owner {
		return false
	}

	delete(r.owners, id)
	return true
}

func (r *OnlineRegistry) Contains(id int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.owners[id]
	return ok
}

// Owner returns the session that has id in game.
func (r *OnlineRegistry) Owner(id int32) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[id]
	return owner, ok
}

func (r *OnlineRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
