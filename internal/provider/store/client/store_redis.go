package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

const clientKeyPrefix = "mcpauth:client:"

// clientRecord keeps the secret hash, which models.Client hides from JSON.
type clientRecord struct {
	models.Client
	SecretHash string `json:"client_secret_hash,omitempty"`
}

// RedisStore persists registrations without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed registry.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Create uses SETNX so concurrent registrations of one id cannot overwrite.
func (s *RedisStore) Create(ctx context.Context, c *models.Client) error {
	data, err := json.Marshal(clientRecord{Client: *c, SecretHash: c.ClientSecretHash})
	if err != nil {
		return fmt.Errorf("marshal client: %w", err)
	}
	ok, err := s.client.SetNX(ctx, clientKeyPrefix+c.ClientID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}
	if !ok {
		return fmt.Errorf("client %s: %w", c.ClientID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, clientID string) (*models.Client, error) {
	data, err := s.client.Get(ctx, clientKeyPrefix+clientID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	var rec clientRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode client: %w", err)
	}
	c := rec.Client
	c.ClientSecretHash = rec.SecretHash
	return &c, nil
}
