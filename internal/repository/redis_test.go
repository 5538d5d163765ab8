package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"charterly/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return s, client
}

func TestRedisStore(t *testing.T) {
	s, client := newRedis(t)
	repo := NewRedisStore(client)
	ctx := context.Background()
	exp := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SetAndGet", func(t *testing.T) {
		entry := &models.CacheEntry{Value: json.RawMessage(`{"id":"b1"}`), ExpiresAt: exp, Tags: []string{"bookings", "booking-b1"}}
		require.NoError(t, repo.Set(ctx, "booking:b1", entry, time.Minute))

		got, err := repo.Get(ctx, "booking:b1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.JSONEq(t, `{"id":"b1"}`, string(got.Value))
		assert.True(t, exp.Equal(got.ExpiresAt))

		members, err := client.SMembers(ctx, "cache:tag:booking-b1").Result()
		require.NoError(t, err)
		assert.Equal(t, []string{"booking:b1"}, members)

		ttl := s.TTL("cache:entry:booking:b1")
		assert.Equal(t, time.Minute+keyGrace, ttl)
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := repo.Get(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidateTag", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "user:u1", &models.CacheEntry{Value: json.RawMessage(`[]`), Tags: []string{"bookings", "user-bookings-u1"}}, time.Minute))
		require.NoError(t, repo.Set(ctx, "boat:x", &models.CacheEntry{Value: json.RawMessage(`[]`), Tags: []string{"boat-bookings-x"}}, time.Minute))

		require.NoError(t, repo.InvalidateTag(ctx, "bookings"))

		got, err := repo.Get(ctx, "user:u1")
		require.NoError(t, err)
		assert.Nil(t, got)
		got, err = repo.Get(ctx, "booking:b1")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = repo.Get(ctx, "boat:x")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.False(t, s.Exists("cache:tag:bookings"))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "boat:x"))
		got, err := repo.Get(ctx, "boat:x")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GarbageEntry", func(t *testing.T) {
		require.NoError(t, s.Set("cache:entry:bad", "not-json"))
		_, err := repo.Get(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		window := time.Second

		allowed, err := repo.Allow(ctx, "verify:+15551234567", 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.Allow(ctx, "verify:+15551234567", 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.Allow(ctx, "verify:+15551234567", 2, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.Allow(ctx, "verify:+15551234567", 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStore(nil)
		_, err := repo.Get(ctx, "k")
		assert.ErrorContains(t, err, "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, client := newRedis(t)
	repo := NewRedisStore(client)
	s.Close()

	_, err := repo.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, Close(nil))
}
