// Package cache provides the versioned, TTL-bounded in-memory store behind
// the live data endpoints. Each entry carries a content-derived version token
// so callers can answer "did anything change" without deep value comparison.
//
// The cache is constructed explicitly and passed by handle to the route layer
// and the scheduler; there is no package-level singleton. Implementations of
// upstream fetches happen in scheduler callbacks before Set is called, never
// inside the cache, so no I/O ever runs under the lock.
package cache

import (
	"sync"
	"time"

	"livefeed/internal/core"
)

// DefaultMaxEntries caps the cache when no explicit capacity is configured.
const DefaultMaxEntries = 1000

// Stats is a snapshot of the cache's process-wide counters. Hits, Misses and
// Evictions increase monotonically; Size reflects the current entry count.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Evictions      int64   `json:"evictions"`
	Size           int     `json:"size"`
	HitRatePercent float64 `json:"hit_rate_percent"`
}

// VersionedCache is a thread-safe key/value store keyed by
// (resource type, identifier). Safe for concurrent use.
type VersionedCache struct {
	mu         sync.RWMutex
	entries    map[Key]*Entry
	maxEntries int

	hits      int64
	misses    int64
	evictions int64

	// now is swapped in tests to drive TTL expiry deterministically.
	now func() time.Time
}

// New creates a VersionedCache holding at most maxEntries entries.
// maxEntries <= 0 selects DefaultMaxEntries.
func New(maxEntries int) *VersionedCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &VersionedCache{
		entries:    make(map[Key]*Entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves the entry for (rt, id). Returns nil, false when the key is
// absent or expired; an expired entry is removed on the spot (lazy expiry, no
// reaper thread). A successful read increments the entry's hit counter.
//
// Version comparison against a caller-known version is left to the caller:
// the cache returns the entry and the caller compares Entry.Version itself.
func (c *VersionedCache) Get(rt core.ResourceType, id string) (*Entry, bool) {
	key := NewKey(rt, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if ent.Expired(c.now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	ent.HitCount++
	c.hits++

	cp := *ent
	return &cp, true
}

// Set stores value under (rt, id), computing its version token from the
// canonical serialization. An existing entry keeps its CreatedAt and HitCount;
// Value, Version, UpdatedAt and ExpiresAt are refreshed. When the cache is at
// capacity and the key is new, the entry with the oldest CreatedAt is evicted
// first. ttl <= 0 selects the resource type's policy TTL.
//
// Set never fails on a well-formed value; see ComputeVersion for the
// serialization-failure fallback.
func (c *VersionedCache) Set(rt core.ResourceType, id string, value any, ttl time.Duration) *Entry {
	if ttl <= 0 {
		ttl = core.PolicyFor(rt).TTL
	}
	key := NewKey(rt, id)
	version := ComputeVersion(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if ent, ok := c.entries[key]; ok {
		ent.Value = value
		ent.Version = version
		ent.UpdatedAt = now
		ent.ExpiresAt = now.Add(ttl)
		cp := *ent
		return &cp
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	ent := &Entry{
		Value:     value,
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	c.entries[key] = ent
	cp := *ent
	return &cp
}

// evictOldestLocked removes the entry with the oldest CreatedAt.
// Caller must hold the write lock.
func (c *VersionedCache) evictOldestLocked() {
	var oldestKey Key
	var oldest time.Time
	first := true
	for key, ent := range c.entries {
		if first || ent.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = ent.CreatedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Invalidate removes one entry and reports whether it existed.
func (c *VersionedCache) Invalidate(rt core.ResourceType, id string) bool {
	key := NewKey(rt, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// InvalidateType removes every entry of the given resource type and returns
// the count removed.
func (c *VersionedCache) InvalidateType(rt core.ResourceType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.Type == rt {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear removes everything and returns the prior size.
func (c *VersionedCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[Key]*Entry)
	return n
}

// Snapshot returns the raw counters for metrics export.
func (c *VersionedCache) Snapshot() (hits, misses, evictions int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, c.evictions, len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *VersionedCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatePercent = float64(c.hits) / float64(total) * 100
	}
	return s
}
