package grant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mcpauth/internal/provider/models"
	"mcpauth/pkg/platform/sentinel"
)

const grantKeyPrefix = "mcpauth:grant:"

// RedisStore keeps grants under a TTL matching their expiry. Expired codes
// simply disappear, so Consume reports them as ErrNotFound.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis constructs a Redis-backed grant store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, g *models.Grant) error {
	ttl := g.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("grant already expired: %w", sentinel.ErrExpired)
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}
	ok, err := s.client.SetNX(ctx, grantKeyPrefix+g.Code, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store grant: %w", err)
	}
	if !ok {
		return fmt.Errorf("grant code collision: %w", sentinel.ErrConflict)
	}
	return nil
}

// Consume uses GETDEL so two concurrent redemptions cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, code string) (*models.Grant, error) {
	data, err := s.client.GetDel(ctx, grantKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("grant not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume grant: %w", err)
	}
	var g models.Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode grant: %w", err)
	}
	if g.IsExpired(s.now()) {
		return nil, fmt.Errorf("grant expired: %w", sentinel.ErrExpired)
	}
	return &g, nil
}
