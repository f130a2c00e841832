// Package cache keeps recently produced re-encodings so identical payloads
// sent to the same destination are not compressed twice.
package cache

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// DefaultCapacity is the number of entries kept when no capacity is configured.
const DefaultCapacity = 100

// Entry is a cached re-encoding. The mime type travels in the URI header.
type Entry struct {
	URI string
}

// Stats contains statistics about cache usage.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
}

// Cache is a bounded, goroutine-safe mapping evicted in insertion order.
// Lookups never refresh an entry's position.
type Cache struct {
	entries  *lru.Cache[string, Entry]
	capacity int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New returns a Cache holding at most capacity entries. onEvict, if not nil,
// is called with the key of every evicted entry.
func New(capacity int, onEvict func(key string)) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	c := &Cache{capacity: capacity}
	entries, err := lru.NewWithEvict(capacity, func(key string, _ Entry) {
		c.evictions.Add(1)
		if onEvict != nil {
			onEvict(key)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Key derives the cache key for a payload sent to destinationID under the
// given byte ceiling.
func Key(destinationID string, maxSize int, uri string) string {
	sum := blake3.Sum256([]byte(uri))
	return destinationID + ":" + strconv.Itoa(maxSize) + ":" + hex.EncodeToString(sum[:16])
}

// Get returns the entry for key without changing its eviction order.
func (c *Cache) Get(key string) (Entry, bool) {
	e, ok := c.entries.Peek(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Add stores e under key unless the key is already present, evicting the
// oldest entry when the cache is full. It reports whether e was stored.
func (c *Cache) Add(key string, e Entry) bool {
	present, _ := c.entries.ContainsOrAdd(key, e)
	return !present
}

// Contains reports whether key is cached.
func (c *Cache) Contains(key string) bool {
	return c.entries.Contains(key)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// GetStats returns cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
		Capacity:  c.capacity,
	}
}
