/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type cacheEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRUCache represents an LRU cache with TTL-based expiration and Prometheus metrics.
// All methods are safe for concurrent use.
type LRUCache[K comparable, V any] struct {
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	lruList *list.List
	entries map[K]*list.Element // value is a lruList element

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is the TTL assigned to an entry every time it is stored or recomputed.
	// Zero means entries never expire and are evicted only when the cache is full.
	// Expired entries are not removed immediately, but only when they are accessed
	// or when RemoveExpired is called.
	DefaultTTL time.Duration

	// Now returns the current time used for TTL calculations. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new LRUCache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRUCache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options{})
}

// NewWithOpts creates a new LRUCache with the provided maximum number of entries, metrics collector, and options.
// Metrics collector may be nil, in this case metrics are disabled.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Options) (*LRUCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LRUCache[K, V]{
		maxEntries:       maxEntries,
		defaultTTL:       opts.DefaultTTL,
		now:              opts.Now,
		lruList:          list.New(),
		entries:          make(map[K]*list.Element),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns a value from the cache by the provided key.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.lookup(key, c.now())
	if !ok {
		return value, false
	}
	return elem.Value.(*cacheEntry[K, V]).value, true
}

// Compute atomically reads, modifies and stores the value for the key.
//
// fn receives the current value (zero value if the key is absent or expired) and whether it exists.
// It returns the value to store and whether it must be kept. If keep is false, the key is removed.
// Storing the value refreshes its TTL and moves it to the front of the LRU list.
// No other cache operation can interleave with fn, so fn must be fast and must not call the cache.
func (c *LRUCache[K, V]) Compute(key K, fn func(value V, exists bool) (newValue V, keep bool)) {
	c.ComputeWithTTL(key, func(value V, exists bool) (V, time.Duration, bool) {
		newValue, keep := fn(value, exists)
		return newValue, c.defaultTTL, keep
	})
}

// ComputeWithTTL is like Compute, but fn also returns the TTL of the stored value
// instead of using the default one. Zero TTL means the value never expires.
func (c *LRUCache[K, V]) ComputeWithTTL(key K, fn func(value V, exists bool) (newValue V, ttl time.Duration, keep bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	elem, exists := c.lookup(key, now)
	var cur V
	if exists {
		cur = elem.Value.(*cacheEntry[K, V]).value
	}

	newValue, ttl, keep := fn(cur, exists)

	switch {
	case exists && keep:
		entry := elem.Value.(*cacheEntry[K, V])
		entry.value = newValue
		entry.expiresAt = expiresAt(now, ttl)
	case exists && !keep:
		c.removeElement(elem)
		c.metricsCollector.SetAmount(len(c.entries))
	case !exists && keep:
		c.addNew(key, newValue, expiresAt(now, ttl))
	}
}

// Remove removes a value from the cache by the provided key.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.metricsCollector.SetAmount(len(c.entries))
	return true
}

// RemoveExpired removes all expired entries and returns their number.
// Entries without expiration time are not affected.
func (c *LRUCache[K, V]) RemoveExpired() (removed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, elem := range c.entries {
		if c.isExpired(elem.Value.(*cacheEntry[K, V]), now) {
			c.removeElement(elem)
			removed++
		}
	}
	c.metricsCollector.SetAmount(len(c.entries))
	return removed
}

// Purge clears the cache.
// Removed entries are not counted as evictions.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metricsCollector.SetAmount(0)
	c.entries = make(map[K]*list.Element)
	c.lruList.Init()
}

// Len returns the number of items in the cache (including expired ones that were not removed yet).
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// lookup returns the live element for the key and moves it to the front.
// An expired element is removed and reported as a miss.
func (c *LRUCache[K, V]) lookup(key K, now time.Time) (*list.Element, bool) {
	elem, hit := c.entries[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return nil, false
	}
	if c.isExpired(elem.Value.(*cacheEntry[K, V]), now) {
		c.removeElement(elem)
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.IncMisses()
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return elem, true
}

func (c *LRUCache[K, V]) isExpired(entry *cacheEntry[K, V], now time.Time) bool {
	return !entry.expiresAt.IsZero() && entry.expiresAt.Before(now)
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl > 0 {
		return now.Add(ttl)
	}
	return time.Time{}
}

func (c *LRUCache[K, V]) addNew(key K, value V, expiresAt time.Time) {
	c.entries[key] = c.lruList.PushFront(&cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	if len(c.entries) > c.maxEntries {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeElement(oldest)
			c.metricsCollector.AddEvictions(1)
		}
	}
	c.metricsCollector.SetAmount(len(c.entries))
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry[K, V]).key)
}
