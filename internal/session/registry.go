package session

import (
	"sync"

	"github.com/eleven-am/transcribe-relay/internal/shared"
)

// Registry maps session ids to live sessions. One registry instance is
// owned by the relay process; it is not a package-level singleton.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Create generates an id, inserts a session with status connecting, and
// returns it.
func (r *Registry) Create() *Session {
	s := newSession(shared.NewID("sess_"))

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Get returns the live session for id, or shared.ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

// Remove deletes the registry entry and closes the adapter handle if one
// is still open.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if s == nil {
		return
	}
	if h := s.DetachHandle(); h != nil {
		_ = h.Close()
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns a snapshot of live sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
