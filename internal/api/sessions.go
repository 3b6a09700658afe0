package api

import (
	"sync"
	"time"

	"tour-booking-system/internal/wizard"
)

// sessionStore holds live checkout sessions in memory. Sessions are
// transient by design: closing the wizard or letting it idle past the TTL
// discards all draft state.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
}

type sessionEntry struct {
	ctrl     *wizard.Controller
	lastSeen time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	s := &sessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
	}
	go s.sweep()
	return s
}

func (s *sessionStore) Put(id string, ctrl *wizard.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &sessionEntry{ctrl: ctrl, lastSeen: time.Now()}
}

func (s *sessionStore) Get(id string) (*wizard.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = time.Now()
	return entry.ctrl, true
}

func (s *sessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *sessionStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-s.ttl)
		s.mu.Lock()
		for id, entry := range s.sessions {
			if entry.lastSeen.Before(cutoff) {
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
}
