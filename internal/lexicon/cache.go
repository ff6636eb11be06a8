package lexicon

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
)

const keyPrefix = "lexistat:"

// Backend stores encoded results. Get reports a missing key with
// pkgredis.ErrMiss; *pkgredis.Client satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache memoizes ranked results in a shared backend. Keys embed the index
// generation, so a result is never served for another generation. Concurrent
// identical queries compute once. Backend failures trip a circuit breaker and
// queries then go straight to computation. All methods are safe on a nil
// *Cache, which computes every time.
type Cache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewCache(backend Backend, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure: func(err error) bool {
				return !errors.Is(err, pkgredis.ErrMiss) && !errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, to resilience.State) {
				m.BreakerState(name, int(to))
			},
		}),
		logger:  slog.Default().With("component", "result-cache"),
		metrics: m,
	}
}

// cacheKey identifies one query against one generation of a field.
type cacheKey struct {
	Kind       string `json:"k"`
	Field      string `json:"f"`
	Generation int64  `json:"g"`
	Query      any    `json:"q"`
}

func (k cacheKey) String() string {
	raw, _ := json.Marshal(k)
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("%s%s:%x", keyPrefix, k.Kind, hash[:16])
}

// cached returns the stored result for key, or computes, stores and returns
// it. The boolean reports a cache hit.
func cached[T any](ctx context.Context, c *Cache, key cacheKey, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	k := key.String()
	var v T
	if c.get(ctx, k, &v) {
		return v, true, nil
	}
	res, err, _ := c.group.Do(k, func() (any, error) {
		var v T
		if c.get(ctx, k, &v) {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return v, err
		}
		c.set(ctx, k, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	return true
}

func (c *Cache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached result.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// CacheStats is the hit/miss tally since start.
type CacheStats struct {
	Enabled      bool   `json:"enabled"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Breaker      string `json:"breaker,omitempty"`
	BreakerTrips int64  `json:"breaker_trips,omitempty"`
}

func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	b := c.breaker.Stats()
	return CacheStats{
		Enabled:      true,
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Breaker:      b.State.String(),
		BreakerTrips: b.Trips,
	}
}
