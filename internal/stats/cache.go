// Package stats computes aggregate statistics over a content snapshot and
// memoizes them behind a TTL cache.
package stats

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	computedAt time.Time
}

// Cache memoizes computed values per key for a TTL window. Concurrent
// callers of the same stale key share a single computation: one goroutine
// computes while the rest await its result or error. Failed computations
// are never stored, so the next caller retries.
type Cache[V any] struct {
	ttl      time.Duration
	disabled bool

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]entry[V]
}

// NewCache returns a cache with the given TTL. A disabled cache invokes the
// compute function directly on every Get and stores nothing.
func NewCache[V any](ttl time.Duration, disabled bool) *Cache[V] {
	return &Cache[V]{
		ttl:      ttl,
		disabled: disabled,
		entries:  make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if it is younger than the TTL,
// otherwise computes it. While a computation for key is in flight no second
// one starts; awaiting callers observe the shared result or the shared
// error. ctx only bounds the wait, it does not stop the computation.
func (c *Cache[V]) Get(ctx context.Context, key string, compute func() (V, error)) (V, error) {
	if c.disabled {
		return compute()
	}
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A previous flight may have refreshed the entry between our
		// staleness check and this call.
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, computedAt: time.Now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Invalidate drops the cached value for key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll drops every cached value. Called when a new snapshot is
// published.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

func (c *Cache[V]) fresh(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.computedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}
