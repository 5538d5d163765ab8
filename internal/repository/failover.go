package repository

import (
	"context"
	"sync/atomic"
	"time"

	"charterly/internal/models"

	"github.com/rs/zerolog"
)

// Store is what the failover wrapper needs from each side.
type Store interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	InvalidateTag(ctx context.Context, tag string) error
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const recoverAfter = time.Minute

// FailoverStore uses primary until it fails, then serves from fallback and
// retries primary once a minute.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// Degraded reports whether calls are currently served by the fallback.
func (r *FailoverStore) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoverAfter
}

func (r *FailoverStore) observe(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary cache store recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary cache store failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

func (r *FailoverStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	if r.usePrimary() {
		entry, err := r.primary.Get(ctx, key)
		r.observe(err)
		if err == nil {
			return entry, nil
		}
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverStore) Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.Set(ctx, key, entry, ttl)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.Set(ctx, key, entry, ttl)
}

func (r *FailoverStore) Delete(ctx context.Context, key string) error {
	// Both sides may hold the key after a failover period.
	fbErr := r.fallback.Delete(ctx, key)
	if r.usePrimary() {
		err := r.primary.Delete(ctx, key)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return fbErr
}

func (r *FailoverStore) InvalidateTag(ctx context.Context, tag string) error {
	fbErr := r.fallback.InvalidateTag(ctx, tag)
	if r.usePrimary() {
		err := r.primary.InvalidateTag(ctx, tag)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return fbErr
}

func (r *FailoverStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.Allow(ctx, key, limit, window)
}
