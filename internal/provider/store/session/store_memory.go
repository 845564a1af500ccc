package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

// InMemory stores issued-token sessions keyed by JTI.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewInMemory constructs an empty session store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]models.Session)}
}

func (s *InMemory) Save(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

// FindByID returns the session without checking expiry; callers compare
// ExpiresAt against their own clock.
func (s *InMemory) FindByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return &sess, nil
}

// DeleteExpired removes sessions whose token lapsed before now.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(now) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
