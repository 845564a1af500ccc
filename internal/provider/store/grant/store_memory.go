package grant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

// Error Contract:
// - Consume returns ErrNotFound for unknown or already redeemed codes
// - Consume returns ErrExpired for codes past their expiry; the code is
//   removed either way
// - Other errors are infrastructure failures

// InMemory stores pending grants in memory for tests/dev.
type InMemory struct {
	mu     sync.Mutex
	grants map[string]*models.Grant
	now    func() time.Time
}

// NewInMemory constructs an empty in-memory grant store.
func NewInMemory() *InMemory {
	return &InMemory{
		grants: make(map[string]*models.Grant),
		now:    time.Now,
	}
}

func (s *InMemory) Save(_ context.Context, g *models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.Code]; ok {
		return fmt.Errorf("grant code collision: %w", sentinel.ErrConflict)
	}
	stored := *g
	s.grants[g.Code] = &stored
	return nil
}

// Consume removes and returns the grant in one step, so a code can be
// redeemed at most once.
func (s *InMemory) Consume(_ context.Context, code string) (*models.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[code]
	if !ok {
		return nil, fmt.Errorf("grant not found: %w", sentinel.ErrNotFound)
	}
	delete(s.grants, code)
	if g.IsExpired(s.now()) {
		return nil, fmt.Errorf("grant expired: %w", sentinel.ErrExpired)
	}
	return g, nil
}

// DeleteExpired removes all grants that have expired as of now.
func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for code, g := range s.grants {
		if g.IsExpired(now) {
			delete(s.grants, code)
			deleted++
		}
	}
	return deleted, nil
}
