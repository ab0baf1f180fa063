package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

// StateCacheRepository implements service.CacheRepository against Redis,
// JSON-encoding values on the way in and translating redis.Nil into the
// ambient ErrCacheMiss sentinel on the way out.
type StateCacheRepository struct {
	client *redis.Client
}

// NewStateCacheRepository constructs a StateCacheRepository.
func NewStateCacheRepository(client *redis.Client) *StateCacheRepository {
	return &StateCacheRepository{client: client}
}

// Get decodes the cached value into dest, returning ErrCacheMiss if absent.
func (r *StateCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Set JSON-encodes value and stores it with the given TTL.
func (r *StateCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

// DeleteByPattern scans and removes every key matching pattern.
func (r *StateCacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
