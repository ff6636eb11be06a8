// Package redis wraps go-redis/v9 for the ranked-result cache: byte-valued
// get/set with a TTL and prefix-scoped invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/config"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// scanBatch is both the SCAN count hint and the UNLINK batch size.
const scanBatch = 100

type Client struct {
	rdb *redis.Client
}

func options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
		opts.PoolTimeout = 2 * cfg.Timeout
	}
	return opts
}

// NewClient connects and checks the server with a PING bounded by ctx and
// five seconds.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the bytes stored under key, or ErrMiss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrMiss
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// FlushByPattern unlinks every key matching the glob pattern, scanning
// incrementally so the server is never blocked on a KEYS call. It returns
// how many keys were removed, including on error.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		pending = make([]string, 0, scanBatch)
	)
	unlink := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, pending...).Result()
		removed += n
		pending = pending[:0]
		return err
	}

	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		pending = append(pending, iter.Val())
		if len(pending) < scanBatch {
			continue
		}
		if err := unlink(); err != nil {
			return removed, fmt.Errorf("unlinking keys matching %s: %w", pattern, err)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning keys matching %s: %w", pattern, err)
	}
	if err := unlink(); err != nil {
		return removed, fmt.Errorf("unlinking keys matching %s: %w", pattern, err)
	}
	return removed, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Close() error { return c.rdb.Close() }
