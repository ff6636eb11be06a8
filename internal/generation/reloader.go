package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex/segment"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/resilience"
)

// Invalidator drops results computed against an older generation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ReloaderOptions bounds a reload. A zero Timeout lets a snapshot load run
// for as long as it needs; Parallelism caps concurrent rail builds.
type ReloaderOptions struct {
	Timeout     time.Duration
	Parallelism int
	Metrics     *metrics.Metrics
}

// Reloader swaps the index under a rail registry when a newer generation is
// announced.
type Reloader struct {
	rails  *rail.Registry
	cache  Invalidator
	opts   ReloaderOptions
	logger *slog.Logger
}

// NewReloader returns a Reloader. cache may be nil.
func NewReloader(rails *rail.Registry, cache Invalidator, opts ReloaderOptions) *Reloader {
	return &Reloader{
		rails:  rails,
		cache:  cache,
		opts:   opts,
		logger: slog.Default().With("component", "generation-reloader"),
	}
}

// Handle is a kafka.MessageHandler. Malformed events and snapshots that do
// not match their announcement are logged and acknowledged; load failures
// are returned so the event is not committed.
func (r *Reloader) Handle(ctx context.Context, key []byte, value []byte) error {
	ev, err := kafka.DecodeJSON[Event](value)
	if err != nil {
		r.logger.Error("failed to decode generation event", "error", err, "key", string(key))
		r.opts.Metrics.GenerationEvent("rejected")
		return nil
	}
	current := r.rails.Source().Generation()
	if ev.Generation <= current {
		r.logger.Debug("ignoring generation event",
			"generation", ev.Generation,
			"current", current,
		)
		r.opts.Metrics.GenerationEvent("ignored")
		return nil
	}
	h, err := segment.ReadHeader(ev.Snapshot)
	if err != nil {
		r.opts.Metrics.GenerationEvent("failed")
		return fmt.Errorf("reading snapshot for generation %d: %w", ev.Generation, err)
	}
	if h.Generation != ev.Generation {
		r.logger.Warn("snapshot does not hold the announced generation",
			"snapshot", ev.Snapshot,
			"announced", ev.Generation,
			"found", h.Generation,
		)
		r.opts.Metrics.GenerationEvent("rejected")
		return nil
	}
	if err := r.Reload(ctx, ev.Snapshot, ev.Fields); err != nil {
		r.opts.Metrics.GenerationEvent("failed")
		return err
	}
	r.opts.Metrics.GenerationEvent("loaded")
	return nil
}

// Reload loads the snapshot at path, serves it and prebuilds the rails of
// fields. A load that outlasts the configured timeout fails with
// errors.ErrTimeout and the served generation stays as it was.
func (r *Reloader) Reload(ctx context.Context, path string, fields []string) error {
	start := time.Now()
	var idx *textindex.Index
	err := resilience.WithTimeout(ctx, r.opts.Timeout, "snapshot reload", func(ctx context.Context) error {
		var err error
		idx, err = LoadSnapshot(ctx, path)
		return err
	})
	if err != nil {
		return fmt.Errorf("loading snapshot %s: %w", path, err)
	}

	previous := r.rails.Source().Generation()
	r.rails.SetSource(idx)
	r.opts.Metrics.Generation(idx.Generation())
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	r.logger.Info("index generation loaded",
		"generation", idx.Generation(),
		"previous", previous,
		"max_doc", idx.MaxDoc(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := r.rails.Warm(ctx, r.opts.Parallelism, fields...); err != nil {
		r.logger.Warn("some rails could not be prebuilt", "generation", idx.Generation(), "error", err)
	}
	return nil
}
