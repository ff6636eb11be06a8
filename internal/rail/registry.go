package rail

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
)

var errSourceSwapped = errors.New("rail source replaced during load")

// Registry hands out one shared Store per field and generation. Concurrent
// requests for a store that is not loaded yet wait on a single load; a
// failed load is reported to every waiter and retried by the next request.
type Registry struct {
	opts Options

	mu     sync.Mutex
	src    textindex.Source
	stores map[string]*Store
	flight singleflight.Group
}

func NewRegistry(src textindex.Source, opts Options) *Registry {
	return &Registry{
		opts:   opts.withDefaults(),
		src:    src,
		stores: make(map[string]*Store),
	}
}

// Source returns the text index rails are currently built from.
func (r *Registry) Source() textindex.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src
}

// SetSource swaps the text index and drops every cached store.
func (r *Registry) SetSource(src textindex.Source) {
	r.mu.Lock()
	old := r.stores
	r.src = src
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, s := range old {
		s.Close()
	}
}

// Get returns a retained store for field matching the current generation.
// The caller must Close it when done.
func (r *Registry) Get(ctx context.Context, field string) (*Store, error) {
	return r.get(ctx, field, false)
}

// Rebuild rewrites the rail file for field even when it looks current, then
// returns a retained store on it.
func (r *Registry) Rebuild(ctx context.Context, field string) (*Store, error) {
	return r.get(ctx, field, true)
}

func (r *Registry) get(ctx context.Context, field string, force bool) (*Store, error) {
	for {
		src := r.Source()
		gen := src.Generation()
		if !force {
			if s := r.cached(field, gen); s != nil {
				r.opts.Metrics.RailLoad(field, "shared")
				return s, nil
			}
		}

		key := field + "@" + strconv.FormatInt(gen, 10)
		if force {
			key += "!"
		}
		ch := r.flight.DoChan(key, func() (any, error) {
			return r.load(context.WithoutCancel(ctx), src, field, gen, force)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		if errors.Is(res.Err, errSourceSwapped) {
			continue
		}
		if res.Err != nil {
			return nil, res.Err
		}
		s := res.Val.(*Store)
		if s.Retain() {
			return s, nil
		}
		// Evicted and released between the load and now: ask again.
		force = false
	}
}

func (r *Registry) cached(field string, gen int64) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stores[field]
	if s == nil || s.generation != gen || !s.Retain() {
		return nil
	}
	return s
}

func (r *Registry) load(ctx context.Context, src textindex.Source, field string, gen int64, force bool) (*Store, error) {
	if !force {
		if s := r.cached(field, gen); s != nil {
			defer s.Close()
			return s, nil
		}
	} else if err := Build(ctx, src, field, r.opts, true); err != nil {
		return nil, err
	}
	s, err := Open(ctx, src, field, r.opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.src != src {
		r.mu.Unlock()
		s.Close()
		r.opts.Logger.Info("rail source replaced during load", "field", field)
		return nil, errSourceSwapped
	}
	old := r.stores[field]
	r.stores[field] = s
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return s, nil
}

// Warm loads the stores of fields, building missing rails at most
// parallelism at a time. Every field is attempted; the failures are joined.
func (r *Registry) Warm(ctx context.Context, parallelism int, fields ...string) error {
	var g errgroup.Group
	g.SetLimit(max(parallelism, 1))
	errs := make([]error, len(fields))
	for i, field := range fields {
		g.Go(func() error {
			s, err := r.Get(ctx, field)
			if err != nil {
				r.opts.Logger.Warn("rail warmup failed", "field", field, "error", err)
				errs[i] = err
				return nil
			}
			return s.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached store for field; the next Get reloads it.
func (r *Registry) Invalidate(field string) {
	r.mu.Lock()
	s := r.stores[field]
	delete(r.stores, field)
	r.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Close releases every cached store. Stores still held by callers stay
// mapped until they are closed too.
func (r *Registry) Close() error {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, s := range stores {
		s.Close()
	}
	return nil
}
