package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTL is a typed view over a go-cache store whose entries expire ttl after
// they were set. Expired entries are removed lazily on Get and eagerly by
// SweepExpired. The go-cache janitor is disabled, sweeping is driven by the
// shared Sweeper.
type TTL[K ~string, V any] struct {
	items *gocache.Cache
}

// NewTTL creates an empty cache with the given entry lifetime
func NewTTL[K ~string, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		items: gocache.New(expiration(ttl), 0),
	}
}

// go-cache treats an item as expired strictly after its deadline, one
// nanosecond less makes an entry exactly ttl old count as expired.
func expiration(ttl time.Duration) time.Duration {
	if ttl <= time.Nanosecond {
		return time.Nanosecond
	}
	return ttl - time.Nanosecond
}

// Set stores value under key with the current timestamp
func (c *TTL[K, V]) Set(key K, value V) {
	c.items.SetDefault(string(key), value)
}

// Get returns the value while it is younger than ttl. A key that is
// present but expired is deleted and reported absent.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V

	v, ok := c.items.Get(string(key))
	if !ok {
		c.items.Delete(string(key))
		return zero, false
	}

	value, ok := v.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// Remove deletes key, no-op if absent
func (c *TTL[K, V]) Remove(key K) {
	c.items.Delete(string(key))
}

// SweepExpired removes every expired entry and returns how many were removed
func (c *TTL[K, V]) SweepExpired() int {
	before := c.items.ItemCount()
	c.items.DeleteExpired()
	removed := before - c.items.ItemCount()
	if removed < 0 {
		return 0
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *TTL[K, V]) Len() int {
	return c.items.ItemCount()
}
