// Package ratelimit provides an in-memory token bucket keyed by client.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter grants each key limit tokens per window, refilled continuously.
// Buckets idle for two windows are evicted.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New returns a Limiter and starts its eviction loop. Call Close to stop it.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Allow spends cost tokens from key's bucket. It reports false, spending
// nothing, when the bucket holds fewer than cost tokens. A cost above the
// limit is capped to the limit so heavy requests are slowed, not banned.
func (l *Limiter) Allow(key string, cost float64) bool {
	cost = min(cost, l.limit)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.limit, seen: now}
		l.buckets[key] = b
	} else {
		b.tokens = min(l.limit, b.tokens+now.Sub(b.seen).Seconds()*l.limit/l.window.Seconds())
		b.seen = now
	}
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// RetryAfter is the time key must wait before cost tokens are available.
func (l *Limiter) RetryAfter(key string, cost float64) time.Duration {
	cost = min(cost, l.limit)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.tokens >= cost {
		return 0
	}
	return time.Duration(float64(l.window) * (cost - b.tokens) / l.limit)
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
