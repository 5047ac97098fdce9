package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portal-gateway/internal/domain"
	"portal-gateway/pkg/platform/sentinel"
)

const stateKeyPrefix = "portal:state:"

// RedisStore backs browser state with Redis, using key TTLs for expiry.
// This is the store to run when more than one gateway instance serves the
// same cookie domain.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, id string, state domain.BrowserState, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("browser state %q: non-positive ttl", id)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal browser state: %w", err)
	}
	return s.client.Set(ctx, stateKeyPrefix+id, payload, ttl).Err()
}

// Find returns the stored record. Redis evicts on TTL, so an expired record
// is indistinguishable from a missing one; both report ErrNotFound and the
// caller treats that as an expired or absent flow.
func (s *RedisStore) Find(ctx context.Context, id string) (domain.BrowserState, error) {
	payload, err := s.client.Get(ctx, stateKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BrowserState{}, fmt.Errorf("browser state %q: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return domain.BrowserState{}, fmt.Errorf("load browser state: %w", err)
	}
	var state domain.BrowserState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.BrowserState{}, fmt.Errorf("unmarshal browser state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, stateKeyPrefix+id).Err()
}
