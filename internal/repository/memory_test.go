package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"charterly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	repo := NewMemoryStore()
	ctx := context.Background()

	t.Run("SetGetCopy", func(t *testing.T) {
		entry := &models.CacheEntry{Value: json.RawMessage(`1`), Tags: []string{"a"}}
		require.NoError(t, repo.Set(ctx, "k1", entry, time.Minute))
		entry.Tags[0] = "mutated"

		got, err := repo.Get(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"a"}, got.Tags)
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("InvalidateTag", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "k2", &models.CacheEntry{Tags: []string{"a", "b"}}, time.Minute))
		require.NoError(t, repo.Set(ctx, "k3", &models.CacheEntry{Tags: []string{"b"}}, time.Minute))

		require.NoError(t, repo.InvalidateTag(ctx, "a"))

		got, _ := repo.Get(ctx, "k1")
		assert.Nil(t, got)
		got, _ = repo.Get(ctx, "k2")
		assert.Nil(t, got)
		got, _ = repo.Get(ctx, "k3")
		assert.NotNil(t, got)

		// k2 must be gone from tag b as well
		require.NoError(t, repo.InvalidateTag(ctx, "b"))
		assert.Equal(t, 0, repo.Len())
	})

	t.Run("RetagOnOverwrite", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "k4", &models.CacheEntry{Tags: []string{"old"}}, time.Minute))
		require.NoError(t, repo.Set(ctx, "k4", &models.CacheEntry{Tags: []string{"new"}}, time.Minute))

		require.NoError(t, repo.InvalidateTag(ctx, "old"))
		got, _ := repo.Get(ctx, "k4")
		assert.NotNil(t, got)

		require.NoError(t, repo.Delete(ctx, "k4"))
		got, _ = repo.Get(ctx, "k4")
		assert.Nil(t, got)
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = repo.Set(ctx, "race", &models.CacheEntry{Tags: []string{"r"}}, time.Minute)
				_, _ = repo.Get(ctx, "race")
				_ = repo.InvalidateTag(ctx, "r")
			}()
		}
		wg.Wait()
	})
}

func TestMemoryStoreExpiry(t *testing.T) {
	repo := NewMemoryStore()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("short-%d", i)
		require.NoError(t, repo.Set(ctx, key, &models.CacheEntry{Tags: []string{"t"}}, time.Millisecond))
	}
	require.NoError(t, repo.Set(ctx, "long", &models.CacheEntry{}, time.Hour))
	assert.Equal(t, 1001, repo.Len())

	now = now.Add(20 * time.Millisecond)
	got, err := repo.Get(ctx, "short-1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries are not served")

	require.NoError(t, repo.Set(ctx, "fresh", &models.CacheEntry{}, time.Minute))
	assert.Equal(t, 2, repo.Len(), "expired entries are swept on write")

	got, err = repo.Get(ctx, "long")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// the tag index no longer points at swept keys
	require.NoError(t, repo.InvalidateTag(ctx, "t"))
	assert.Equal(t, 2, repo.Len())

	require.NoError(t, repo.Set(ctx, "forever", &models.CacheEntry{}, 0))
	now = now.Add(24 * time.Hour)
	require.NoError(t, repo.Set(ctx, "after", &models.CacheEntry{}, time.Minute))
	got, _ = repo.Get(ctx, "forever")
	assert.NotNil(t, got, "zero ttl never expires")
	got, _ = repo.Get(ctx, "long")
	assert.Nil(t, got)
}

func TestMemoryStoreRateLimit(t *testing.T) {
	repo := NewMemoryStore()
	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _ := repo.Allow(ctx, "k", 3, time.Minute)
	assert.False(t, allowed)

	allowed, _ = repo.Allow(ctx, "other", 3, time.Minute)
	assert.True(t, allowed)

	now = now.Add(time.Minute + time.Second)
	allowed, _ = repo.Allow(ctx, "k", 3, time.Minute)
	assert.True(t, allowed)
}
