package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stencilhq/stencil/core/tenanturl"
)

// CacheStore implements tenanturl.CacheStore on Redis. Pattern eviction uses
// SCAN in batches so bulk invalidation never blocks the server the way KEYS
// or FLUSHDB would.
type CacheStore struct {
	client        *redis.Client
	scanBatchSize int
}

// NewCacheStore creates a cache store over the client. batchSize bounds how
// many keys a single SCAN iteration returns; zero selects a sensible default.
func NewCacheStore(client *redis.Client, batchSize int) *CacheStore {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &CacheStore{client: client, scanBatchSize: batchSize}
}

// Get returns the value for the key or tenanturl.ErrCacheMiss.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, tenanturl.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores the value under the key with the given TTL.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeletePattern removes every key matching the glob pattern, scanning and
// deleting in batches.
func (s *CacheStore) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, int64(s.scanBatchSize)).Result()
		if err != nil {
			return fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del batch: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
