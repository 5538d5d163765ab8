// Package cache memoizes producer results by key with a time-based expiry and
// tag-based group invalidation.
//
// Expiry is evaluated against an injected Clock so callers control time.
// Concurrent misses for one key are not coalesced: every caller that misses
// runs its own producer and the last write wins.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"charterly/internal/domain"
	"charterly/internal/metrics"
	"charterly/internal/models"

	"github.com/rs/zerolog"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Options control a single Fetch.
type Options struct {
	Revalidate time.Duration
	Tags       []string
}

type Cache struct {
	store  domain.CacheStore
	clock  Clock
	logger zerolog.Logger
}

func New(store domain.CacheStore, clock Clock, logger *zerolog.Logger) *Cache {
	if clock == nil {
		clock = SystemClock
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "cache").Logger()
	}
	return &Cache{store: store, clock: clock, logger: l}
}

// Fetch returns the cached value for key if it has not expired, otherwise it
// runs producer and caches its result. A producer error is returned as is and
// nothing is cached. Store failures are logged and treated as a miss.
func Fetch[T any](ctx context.Context, c *Cache, key string, producer func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	now := c.clock.Now()

	if entry, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if entry != nil {
		if now.Before(entry.ExpiresAt) {
			var v T
			if err := json.Unmarshal(entry.Value, &v); err == nil {
				metrics.IncCache(true)
				return v, nil
			}
			c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
		}
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
		}
	}
	metrics.IncCache(false)

	v, err := producer(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return v, nil
	}

	entry := &models.CacheEntry{
		Value:     raw,
		ExpiresAt: c.clock.Now().Add(opts.Revalidate),
		Tags:      opts.Tags,
	}
	if err := c.store.Set(ctx, key, entry, opts.Revalidate); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}

// InvalidateTags drops every entry associated with any of tags.
func (c *Cache) InvalidateTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if err := c.store.InvalidateTag(ctx, tag); err != nil {
			return err
		}
	}
	return nil
}

// Delete drops one key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
