package client

import (
	"context"
	"fmt"
	"sync"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

// InMemory is a goroutine-safe client registry for tests and single-node dev.
type InMemory struct {
	mu      sync.RWMutex
	clients map[string]models.Client
}

// NewInMemory constructs an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[string]models.Client)}
}

func (s *InMemory) Create(_ context.Context, c *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ClientID]; ok {
		return fmt.Errorf("client %s: %w", c.ClientID, sentinel.ErrConflict)
	}
	s.clients[c.ClientID] = *c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, clientID string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	return &c, nil
}
