package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"charterly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CacheEntry), args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error {
	return m.Called(ctx, key, entry, ttl).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) InvalidateTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverStore(t *testing.T) {
	primary := new(mockStore)
	fallback := NewMemoryStore()
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStore(primary, fallback, &logger)

	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	entry := &models.CacheEntry{Tags: []string{"t"}}

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, "k").Return(entry, nil).Once()

		got, err := repo.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, entry, got)
		assert.False(t, repo.Degraded())
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("Set", ctx, "k", entry, time.Minute).Return(errors.New("redis down")).Once()

		require.NoError(t, repo.Set(ctx, "k", entry, time.Minute))
		assert.True(t, repo.Degraded())

		// primary is not consulted while degraded
		got, err := repo.Get(ctx, "k")
		require.NoError(t, err)
		assert.NotNil(t, got)

		allowed, err := repo.Allow(ctx, "rl", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("InvalidateClearsFallback", func(t *testing.T) {
		require.NoError(t, repo.InvalidateTag(ctx, "t"))
		got, _ := fallback.Get(ctx, "k")
		assert.Nil(t, got)
	})

	t.Run("Recovery", func(t *testing.T) {
		now = now.Add(recoverAfter + time.Second)
		primary.On("Get", ctx, "k2").Return(nil, nil).Once()

		got, err := repo.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.False(t, repo.Degraded())
	})

	primary.AssertExpectations(t)
}
