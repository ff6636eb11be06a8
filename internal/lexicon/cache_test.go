package lexicon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
	sets int
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

var errBackendDown = errors.New("backend down")

func (b *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errBackendDown
	}
	v, ok := b.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errBackendDown
	}
	b.data[key] = value
	b.sets++
	return nil
}

func (b *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return 0, errBackendDown
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func (b *memBackend) setFail(fail bool) {
	b.mu.Lock()
	b.fail = fail
	b.mu.Unlock()
}

type payload struct {
	Value int `json:"value"`
}

func TestCachedComputesOnce(t *testing.T) {
	c := NewCache(newMemBackend(), time.Minute, nil)
	ctx := context.Background()
	key := cacheKey{Kind: "terms", Field: "text", Generation: 1, Query: TermsQuery{Scorer: "count"}}

	calls := 0
	compute := func() (*payload, error) {
		calls++
		return &payload{Value: 42}, nil
	}

	v, hit, err := cached(ctx, c, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v.Value)

	v, hit, err = cached(ctx, c, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v.Value)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, "closed", stats.Breaker)
}

func TestCacheKeyDependsOnGeneration(t *testing.T) {
	a := cacheKey{Kind: "cooc", Field: "text", Generation: 1, Query: CoocQuery{Query: []string{"cats"}}}
	b := a
	b.Generation = 2
	assert.NotEqual(t, a.String(), b.String())
	assert.True(t, strings.HasPrefix(a.String(), keyPrefix+"cooc:"))
	assert.Equal(t, a.String(), a.String())
}

func TestCachedErrorsAreNotStored(t *testing.T) {
	backend := newMemBackend()
	c := NewCache(backend, time.Minute, nil)
	key := cacheKey{Kind: "graph", Field: "text", Generation: 1}

	_, _, err := cached(context.Background(), c, key, func() (*payload, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Zero(t, backend.sets)
}

func TestCacheDegradesWhenBackendFails(t *testing.T) {
	backend := newMemBackend()
	backend.setFail(true)
	c := NewCache(backend, time.Minute, nil)
	ctx := context.Background()

	calls := 0
	for i := 0; i < 8; i++ {
		key := cacheKey{Kind: "terms", Field: "text", Generation: int64(i)}
		v, hit, err := cached(ctx, c, key, func() (*payload, error) {
			calls++
			return &payload{Value: i}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, i, v.Value)
	}
	assert.Equal(t, 8, calls)
	assert.Equal(t, resilience.StateOpen, c.breaker.State())
}

func TestNilCacheComputes(t *testing.T) {
	var c *Cache
	v, hit, err := cached(context.Background(), c, cacheKey{Kind: "terms"}, func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
	assert.NoError(t, c.Invalidate(context.Background()))
	assert.False(t, c.Stats().Enabled)
}

func TestInvalidateDropsResults(t *testing.T) {
	backend := newMemBackend()
	c := NewCache(backend, time.Minute, nil)
	ctx := context.Background()
	key := cacheKey{Kind: "terms", Field: "text", Generation: 1}
	compute := func() (*payload, error) { return &payload{Value: 1}, nil }

	_, _, err := cached(ctx, c, key, compute)
	require.NoError(t, err)
	backend.data["other:key"] = []byte("{}")

	require.NoError(t, c.Invalidate(ctx))
	assert.Len(t, backend.data, 1)

	_, hit, err := cached(ctx, c, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	backend.setFail(true)
	assert.ErrorIs(t, c.Invalidate(ctx), errBackendDown)
}

func TestServiceServesCachedResults(t *testing.T) {
	backend := newMemBackend()
	svc, _ := newTestService(t, NewCache(backend, time.Minute, nil))
	ctx := context.Background()

	first, hit, err := svc.Cooc(ctx, CoocQuery{Field: "text", Query: []string{"chase"}})
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.Cooc(ctx, CoocQuery{Field: "text", Query: []string{"chase"}})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Terms, second.Terms)

	_, err = svc.Rebuild(ctx, "text")
	require.NoError(t, err)
	assert.Empty(t, backend.data)

	_, hit, err = svc.Cooc(ctx, CoocQuery{Field: "text", Query: []string{"chase"}})
	require.NoError(t, err)
	assert.False(t, hit)
}
