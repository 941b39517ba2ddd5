package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisScopeCache stores resolved supervisor member sets as JSON arrays.
type RedisScopeCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisScopeCache creates a cache. keyPrefix defaults to "portfolio:scope:".
func NewRedisScopeCache(client redis.UniversalClient, keyPrefix string) *RedisScopeCache {
	if keyPrefix == "" {
		keyPrefix = "portfolio:scope:"
	}
	return &RedisScopeCache{client: client, keyPrefix: keyPrefix}
}

// Get returns the cached member ids for supervisorID. found is false on a miss.
func (c *RedisScopeCache) Get(ctx context.Context, supervisorID uuid.UUID) ([]uuid.UUID, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+supervisorID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read scope cache: %w", err)
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false, fmt.Errorf("decode scope cache: %w", err)
	}
	return ids, true, nil
}

// Set stores member ids for supervisorID with the given ttl.
func (c *RedisScopeCache) Set(ctx context.Context, supervisorID uuid.UUID, ids []uuid.UUID, ttl time.Duration) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode scope cache: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+supervisorID.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("write scope cache: %w", err)
	}
	return nil
}
