package index

import (
	"time"

	"github.com/google/uuid"
)

// cacheEntry is one cached query result.
type cacheEntry struct {
	opts        QueryOptions
	ids         []uuid.UUID
	total       int
	usedIndex   bool
	insertedAt  time.Time
	accessCount uint64
}

// queryCache is the bounded, invalidation-aware query result cache.
// Not safe for concurrent use; the index serializes access.
type queryCache struct {
	capacity int
	ttl      time.Duration
	entries  map[string]*cacheEntry

	evictions     uint64
	invalidations uint64
}

func newQueryCache(capacity int, ttl time.Duration) *queryCache {
	return &queryCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry),
	}
}

// get returns the cached entry for the key if it is within its expiry
// window. Expired entries are removed on sight.
func (c *queryCache) get(key string, now time.Time) (*cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	entry.accessCount++
	return entry, true
}

// put stores a result, evicting the least-accessed entry when at capacity.
func (c *queryCache) put(key string, entry *cacheEntry, now time.Time) {
	if c.capacity <= 0 {
		return
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLeastAccessed()
	}

	entry.insertedAt = now
	c.entries[key] = entry
}

// evictLeastAccessed removes the entry with the fewest accesses, oldest
// first on ties.
func (c *queryCache) evictLeastAccessed() {
	var victimKey string
	var victim *cacheEntry
	for key, entry := range c.entries {
		if victim == nil ||
			entry.accessCount < victim.accessCount ||
			(entry.accessCount == victim.accessCount && entry.insertedAt.Before(victim.insertedAt)) {
			victimKey, victim = key, entry
		}
	}
	if victim != nil {
		delete(c.entries, victimKey)
		c.evictions++
	}
}

// invalidateFor removes every cached result the given entry could affect:
// results whose owner, category, or date-range filters do not exclude it.
// Results filtered by search term are invalidated conservatively since
// term containment cannot cheaply prove exclusion.
func (c *queryCache) invalidateFor(entry *Entry) {
	for key, cached := range c.entries {
		if cached.opts.couldMatch(entry) {
			delete(c.entries, key)
			c.invalidations++
		}
	}
}

// clear drops every cached result.
func (c *queryCache) clear() {
	if len(c.entries) > 0 {
		c.invalidations += uint64(len(c.entries))
	}
	c.entries = make(map[string]*cacheEntry)
}

// purgeExpired removes entries past their expiry window, returning the
// number removed.
func (c *queryCache) purgeExpired(now time.Time) int {
	purged := 0
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) > c.ttl {
			delete(c.entries, key)
			purged++
		}
	}
	return purged
}
