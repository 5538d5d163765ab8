package models

import (
	"encoding/json"
	"time"
)

// CacheEntry is one memoized producer result.
type CacheEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
	Tags      []string        `json:"tags,omitempty"`
}
