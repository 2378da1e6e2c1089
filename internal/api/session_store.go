package api

import (
	"sync"
	"time"

	"github.com/soaringjerry/cracks/internal/services"
)

// memorySessionStore keeps visit sessions in process memory. Sessions are
// never persisted; a restart starts every visitor afresh.
type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*services.Session
}

func NewMemorySessionStore() services.SessionStore {
	return &memorySessionStore{sessions: map[string]*services.Session{}}
}

func (s *memorySessionStore) PutSession(sess *services.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *memorySessionStore) GetSession(id string) (*services.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

// cleanup sessions expiring at or before cutoff, return removed count
func (s *memorySessionStore) DeleteSessionsBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
