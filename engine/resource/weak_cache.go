// Package resource holds the loading primitives shared by every viewer: a weakly-referencing
// cache, an asynchronous de-duplicating loader, executors and locator resolution.
package resource

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"weak"
)

// ErrNilResource is returned when a load function reports success without producing a value.
var ErrNilResource = errors.New("resource: load produced no value")

// WeakCache maps keys to weakly-held values. An entry stays reachable only while something
// outside the cache holds a strong reference to the value; once the garbage collector
// reclaims it the entry disappears and the next lookup reloads.
//
// A WeakCache is meant to be owned by one context (typically the main thread). The internal
// lock exists because runtime cleanups run on their own goroutine.
type WeakCache[K comparable, V any] struct {
	mu      *sync.Mutex
	entries map[K]weak.Pointer[V]
	name    string
	logger  *slog.Logger
}

// NewWeakCache creates an empty WeakCache.
//
// Parameters:
//   - options: functional options (WithCacheName, WithCacheLogger)
//
// Returns:
//   - *WeakCache[K, V]: the new cache
func NewWeakCache[K comparable, V any](options ...WeakCacheOption) *WeakCache[K, V] {
	cfg := weakCacheConfig{name: "cache", logger: slog.Default()}
	for _, option := range options {
		option(&cfg)
	}
	return &WeakCache[K, V]{
		mu:      &sync.Mutex{},
		entries: make(map[K]weak.Pointer[V]),
		name:    cfg.name,
		logger:  cfg.logger,
	}
}

// GetOrCreate returns the live value for key, or synchronously calls load to produce one.
// A successful result is stored weakly; a failed load is not cached, so the next call retries.
//
// Parameters:
//   - key: the cache key
//   - load: produces the value when no live entry exists
//
// Returns:
//   - *V: the cached or newly created value
//   - error: the load error, or ErrNilResource when load returned neither value nor error
func (c *WeakCache[K, V]) GetOrCreate(key K, load func(key K) (*V, error)) (*V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNilResource
	}

	return c.store(key, v), nil
}

// Get returns the live value for key without loading.
//
// Parameters:
//   - key: the cache key
//
// Returns:
//   - *V: the value, or nil
//   - bool: true if a live value was found
func (c *WeakCache[K, V]) Get(key K) (*V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if v := wp.Value(); v != nil {
		return v, true
	}
	delete(c.entries, key)
	return nil, false
}

// Len reports the number of live entries, purging dead ones.
func (c *WeakCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, wp := range c.entries {
		if wp.Value() == nil {
			delete(c.entries, k)
		}
	}
	return len(c.entries)
}

// slotCount reports the number of stored slots, dead or alive, without purging.
func (c *WeakCache[K, V]) slotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Remove drops the entry for key. The value itself stays alive for existing holders.
func (c *WeakCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// store records v under key. If a live value was stored concurrently, that value wins so every
// caller observes the same instance.
func (c *WeakCache[K, V]) store(key K, v *V) *V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.entries[key]; ok {
		if live := wp.Value(); live != nil {
			return live
		}
	}
	c.entries[key] = weak.Make(v)
	runtime.AddCleanup(v, c.evict, key)
	return v
}

// evict runs after a stored value was collected. It only removes the slot when it is still dead,
// so a newer value stored under the same key survives.
func (c *WeakCache[K, V]) evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.entries[key]; ok && wp.Value() == nil {
		delete(c.entries, key)
		c.logger.Debug("evicted collected entry", "cache", c.name, "key", key)
	}
}
