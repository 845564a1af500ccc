package memory

import (
	"context"
	"sync"

	audit "mcpauth/pkg/platform/audit"
)

// DefaultCapacity is how many events the store keeps before overwriting the
// oldest.
const DefaultCapacity = 10000

// InMemoryStore keeps the most recent events in a fixed-size ring.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	events   []audit.Event
	next     int
}

type Option func(*InMemoryStore)

// WithCapacity bounds the number of retained events. Non-positive values keep
// the default.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.next = 0
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) < s.capacity {
		s.events = append(s.events, event)
		return nil
	}
	s.events[s.next] = event
	s.next = (s.next + 1) % s.capacity
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Event{}
	for _, e := range s.ordered() {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns up to limit events in append order, newest last.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.ordered()
	start := max(len(all)-limit, 0)
	return append([]audit.Event{}, all[start:]...), nil
}

// ordered returns the retained events oldest first. Callers hold mu.
func (s *InMemoryStore) ordered() []audit.Event {
	if s.next == 0 {
		return s.events
	}
	out := make([]audit.Event, 0, len(s.events))
	out = append(out, s.events[s.next:]...)
	return append(out, s.events[:s.next]...)
}
