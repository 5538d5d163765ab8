package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"charterly/internal/config"
	"charterly/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "cache:entry:"
	tagKeyPrefix   = "cache:tag:"
	rateKeyPrefix  = "rate_limit:"

	// keyGrace keeps entries in Redis a little past their logical expiry so
	// expiry is decided by the cache clock, not by Redis.
	keyGrace = time.Minute
)

// RedisStore keeps cache entries as JSON strings and tag membership as sets.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, entryKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry from redis: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &entry, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	expire := ttl + keyGrace
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+key, data, expire)
	for _, tag := range entry.Tags {
		pipe.SAdd(ctx, tagKeyPrefix+tag, key)
		pipe.Expire(ctx, tagKeyPrefix+tag, expire)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set cache entry in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, entryKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry from redis: %w", err)
	}
	return nil
}

func (r *RedisStore) InvalidateTag(ctx context.Context, tag string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	members, err := r.client.SMembers(ctx, tagKeyPrefix+tag).Result()
	if err != nil {
		return fmt.Errorf("failed to read cache tag %q: %w", tag, err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, entryKeyPrefix+m)
	}
	keys = append(keys, tagKeyPrefix+tag)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache tag %q: %w", tag, err)
	}
	return nil
}

func (r *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	rkey := rateKeyPrefix + key
	count, err := r.client.Incr(ctx, rkey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, rkey, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client if set.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
