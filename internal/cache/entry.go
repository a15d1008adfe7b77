package cache

import (
	"strings"
	"time"

	"livefeed/internal/core"
)

// Key uniquely identifies one cache slot. Identifiers are case-normalized so
// "AAPL" and "aapl" land in the same slot; "*" is the conventional identifier
// for list-style aggregates.
type Key struct {
	Type core.ResourceType
	ID   string
}

// NewKey builds a normalized cache key.
func NewKey(rt core.ResourceType, id string) Key {
	return Key{Type: rt, ID: strings.ToLower(id)}
}

// Entry is one versioned cache slot. Entries are owned exclusively by the
// cache; Get returns a copy so callers never hold a reference into the map.
type Entry struct {
	Value     any       `json:"value"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
	HitCount  int64     `json:"hit_count"`
}

// Expired reports whether the entry is logically dead at now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// TTLRemaining returns the time until expiry, clamped at zero.
func (e *Entry) TTLRemaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
