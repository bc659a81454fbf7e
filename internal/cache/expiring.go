// Package cache provides a generic, thread-safe key/value store with
// per-entry TTL and a bounded capacity. It backs the membership, referral
// count, and cooldown namespaces of the eligibility engine.
//
// Semantics:
//   - Entries expire lazily: there is no background sweeper. Expired entries
//     are dropped on access and during the cleanup pass that follows every Set.
//   - Eviction is strict insertion order. Re-setting an existing key refreshes
//     its timestamp but does NOT move it to the back of the eviction queue, and
//     reads never reorder entries. This mirrors the behavior of the service
//     this engine replaced and is a deliberate simplification over
//     access-recency LRU.
//   - All operations share one mutex per instance. The critical sections are
//     in-memory bookkeeping only; callers must never perform blocking work
//     (storage, network) while interacting with the cache.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	at    time.Time
	value V
}

// Cache is a bounded expiring key/value store. The zero value is not usable;
// construct instances with New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[K]entry[V]
	order    []K // insertion order, oldest first

	now func() time.Time // overridable in tests
}

// New constructs a Cache holding at most capacity entries, each valid for ttl
// after its last Set. A capacity <= 0 is coerced to 1.
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]entry[V]),
		now:      time.Now,
	}
}

// Set stores value under key with the current timestamp, then removes expired
// entries and evicts oldest-inserted entries until the size bound holds.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{at: c.now(), value: value}
	c.cleanupLocked()
}

// Get returns the value for key if present and within TTL. An expired entry
// is removed and reported as absent, never returned as stale data.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.at) > c.ttl {
		c.removeLocked(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Pop removes and returns the value for key. Absent and expired entries both
// report ok=false; an expired entry is removed either way.
func (c *Cache[K, V]) Pop(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.removeLocked(key)
	if c.now().Sub(e.at) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Len reports the current number of entries, including any not yet reaped
// expired ones. Used by the health probe to report namespace occupancy.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanupLocked drops expired entries, then evicts from the front of the
// insertion order until the capacity bound holds. Caller must hold c.mu.
func (c *Cache[K, V]) cleanupLocked() {
	now := c.now()

	kept := c.order[:0]
	for _, k := range c.order {
		if e, ok := c.entries[k]; ok && now.Sub(e.at) > c.ttl {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept

	for len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// removeLocked deletes key from the map and the insertion-order queue.
// Caller must hold c.mu.
func (c *Cache[K, V]) removeLocked(key K) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
