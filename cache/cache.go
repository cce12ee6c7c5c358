// Package cache keeps recent extraction previews in memory.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache is a bounded in-memory cache with per-lookup max age. It is safe
// for concurrent use.
type Cache[V any] struct {
	mu         sync.RWMutex
	store      map[string]*entry[V]
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
	once       sync.Once
}

// New creates a Cache holding at most maxEntries values. Entries older
// than ttl are swept every ttl/12 (at least once a minute).
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache[V]{
		store:      make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	every := ttl / 12
	if every < time.Minute {
		every = time.Minute
	}
	go c.cleanupLoop(every)
	return c
}

// Key derives a cache key from its parts.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// Get returns the value for key if it is no older than maxAge. maxAge <= 0
// always misses.
func (c *Cache[V]) Get(key string, maxAge time.Duration) (V, bool) {
	var zero V
	if maxAge <= 0 {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return zero, false
	}
	return e.value, true
}

// Set stores value, evicting the oldest entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var (
			oldestKey string
			oldest    time.Time
		)
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry[V]{value: value, createdAt: c.now()}
}

// Delete drops key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the sweep loop.
func (c *Cache[V]) Stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[V]) sweep() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache[V]) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}
