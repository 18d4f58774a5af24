package ratelimit

import (
	"sync"
	"time"
)

// memoryLimiter is an in-process token bucket limiter keyed by client.
// Each key gets a bucket of cfg.Requests tokens refilled continuously
// over cfg.Window.
type memoryLimiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	stopCh   chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-memory token bucket limiter. When the
// config is enabled a background goroutine evicts idle buckets; call
// Stop to release it.
func NewMemoryLimiter(cfg Config) *memoryLimiter {
	l := &memoryLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	if cfg.Enabled {
		go l.cleanupLoop()
	}
	return l
}

// Allow implements Limiter.
func (l *memoryLimiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	capacity := float64(l.cfg.Requests)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: capacity - 1, lastSeen: now}
		return true
	}

	// Refill proportionally to the time elapsed since the last request.
	fillRate := capacity / l.cfg.Window.Seconds()
	b.tokens += now.Sub(b.lastSeen).Seconds() * fillRate
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset implements Limiter.
func (l *memoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Stop terminates the background cleanup goroutine.
func (l *memoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *memoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictStale()
		case <-l.stopCh:
			return
		}
	}
}

// evictStale drops buckets that have been idle long enough to be full
// again, so the map does not grow with one entry per client forever.
func (l *memoryLimiter) evictStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.cfg.Window)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
