package repository

import (
	"context"
	"sync"
	"time"

	"charterly/internal/models"
)

// MemoryStore keeps cache entries and rate-limit windows in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	expires map[string]time.Time
	tags    map[string]map[string]struct{}

	// nextExpiry is the earliest deadline in expires, zero when none.
	nextExpiry time.Time

	rateLimits sync.Map
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*models.CacheEntry),
		expires: make(map[string]time.Time),
		tags:    make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (r *MemoryStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if deadline, ok := r.expires[key]; ok && !r.now().Before(deadline) {
		r.removeLocked(key)
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (r *MemoryStore) Set(ctx context.Context, key string, entry *models.CacheEntry, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.nextExpiry.IsZero() && !now.Before(r.nextExpiry) {
		r.sweepLocked(now)
	}

	r.removeLocked(key)

	cp := *entry
	cp.Tags = append([]string(nil), entry.Tags...)
	r.entries[key] = &cp
	if ttl > 0 {
		deadline := now.Add(ttl)
		r.expires[key] = deadline
		if r.nextExpiry.IsZero() || deadline.Before(r.nextExpiry) {
			r.nextExpiry = deadline
		}
	}
	for _, tag := range cp.Tags {
		keys, ok := r.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			r.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (r *MemoryStore) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(key)
	return nil
}

func (r *MemoryStore) InvalidateTag(ctx context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.tags[tag] {
		r.removeLocked(key)
	}
	delete(r.tags, tag)
	return nil
}

// Len reports the number of stored entries.
func (r *MemoryStore) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// removeLocked drops key, its deadline and its tag links. Caller holds mu.
func (r *MemoryStore) removeLocked(key string) {
	entry, ok := r.entries[key]
	if !ok {
		return
	}
	for _, tag := range entry.Tags {
		if keys, ok := r.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(r.tags, tag)
			}
		}
	}
	delete(r.entries, key)
	delete(r.expires, key)
}

// sweepLocked evicts every entry whose TTL has passed and recomputes
// nextExpiry. Caller holds mu.
func (r *MemoryStore) sweepLocked(now time.Time) {
	var next time.Time
	for key, deadline := range r.expires {
		if !now.Before(deadline) {
			r.removeLocked(key)
			continue
		}
		if next.IsZero() || deadline.Before(next) {
			next = deadline
		}
	}
	r.nextExpiry = next

	r.rateLimits.Range(func(k, v any) bool {
		entry := v.(*rateLimitEntry)
		entry.mu.Lock()
		stale := now.After(entry.expiresAt)
		entry.mu.Unlock()
		if stale {
			r.rateLimits.CompareAndDelete(k, v)
		}
		return true
	})
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.now()
	val, _ := r.rateLimits.LoadOrStore(key, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
