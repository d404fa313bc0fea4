package tcpserver

import "sync"

// sessionRegistry tracks live sessions by ID with a capacity limit checked
// atomically with insertion.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uint32]TCPServerSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[uint32]TCPServerSession)}
}

// tryAdd stores session unless limit sessions are already registered. A
// limit of zero or less means no limit.
func (r *sessionRegistry) tryAdd(session TCPServerSession, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > 0 && len(r.sessions) >= limit {
		return false
	}

	r.sessions[session.ID()] = session
	return true
}

func (r *sessionRegistry) remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) get(id uint32) (TCPServerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns the sessions registered at the time of the call.
func (r *sessionRegistry) snapshot() []TCPServerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TCPServerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}

	return out
}
