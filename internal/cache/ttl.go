// Package cache provides a small expiring key/value store with an
// injectable clock, replacing ad hoc per-user maps scattered through
// request handlers.
package cache

import (
	"sync"
	"time"
)

// Clock supplies the current time; overridable in tests.
type Clock func() time.Time

type item[V any] struct {
	value   V
	expires time.Time
}

// TTL is an in-process expiring map. Expired entries are dropped lazily on
// access and in bulk whenever a sweep interval has elapsed.
type TTL[V any] struct {
	mu         sync.Mutex
	items      map[string]item[V]
	clock      Clock
	lastSweep  time.Time
	sweepEvery time.Duration
}

// New constructs a TTL cache sweeping at the given interval.
func New[V any](sweepEvery time.Duration) *TTL[V] {
	return NewWithClock[V](sweepEvery, time.Now)
}

// NewWithClock constructs a TTL cache with an explicit clock.
func NewWithClock[V any](sweepEvery time.Duration, clock Clock) *TTL[V] {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &TTL[V]{
		items:      make(map[string]item[V]),
		clock:      clock,
		lastSweep:  clock(),
		sweepEvery: sweepEvery,
	}
}

// Put stores value under key for ttl.
func (c *TTL[V]) Put(key string, value V, ttl time.Duration) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)
	c.items[key] = item[V]{value: value, expires: now.Add(ttl)}
}

// Get returns the live value for key, or false when absent or expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)

	entry, ok := c.items[key]
	if !ok || now.After(entry.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Invalidate removes key immediately.
func (c *TTL[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts live entries.
func (c *TTL[V]) Len() int {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, entry := range c.items {
		if !now.After(entry.expires) {
			count++
		}
	}
	return count
}

func (c *TTL[V]) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.sweepEvery {
		return
	}
	for key, entry := range c.items {
		if now.After(entry.expires) {
			delete(c.items, key)
		}
	}
	c.lastSweep = now
}
