package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/cooc"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// minShardDocs keeps small stores on a single goroutine.
const minShardDocs = 4096

// Builder fills matrices from rail stores.
type Builder struct {
	logger      *slog.Logger
	parallelism int
}

func NewBuilder(logger *slog.Logger, parallelism int) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger:      logger.With("component", "graph"),
		parallelism: max(1, parallelism),
	}
}

// SelectNodes returns the n most frequent terms over the filtered documents
// that the tag filter accepts, with their counts.
func SelectNodes(ctx context.Context, store *rail.Store, lex textindex.Lexicon, filter *roaring.Bitmap, n int, tags *textindex.TagFilter) ([]uint32, []int64, error) {
	if n < 2 {
		return nil, nil, apperrors.Invalidf("a graph needs at least 2 nodes, got %d", n)
	}
	freqs, err := store.Freqs(ctx, filter, lex.Size())
	if err != nil {
		return nil, nil, err
	}
	scores := make([]float64, len(freqs))
	for id, f := range freqs {
		scores[id] = float64(f)
	}
	keep := func(id uint32) bool {
		return id != textindex.Hole && !lex.IsPunctuation(id) && tags.Admits(lex, id)
	}
	ids := ranking.SelectFunc(scores, n, ranking.ExcludeZero, keep)
	counts := make([]int64, len(ids))
	for i, id := range ids {
		counts[i] = freqs[id]
	}
	return ids, counts, nil
}

// Edges counts, for every pair of nodes, how often they occur at most
// distance positions apart in the filtered documents.
func (b *Builder) Edges(ctx context.Context, store *rail.Store, nodes []uint32, distance int, filter *roaring.Bitmap) (*Matrix, error) {
	if distance < 1 {
		return nil, apperrors.Invalidf("distance must be at least 1, got %d", distance)
	}
	proto := NewMatrix(nodes)
	if proto.Len() == 0 {
		return nil, apperrors.Invalidf("a set of node ids is required")
	}

	maxDoc := store.MaxDoc()
	shards := min(b.parallelism, max(1, maxDoc/minShardDocs))
	parts := make([]*Matrix, shards)
	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		lo := uint64(maxDoc * s / shards)
		hi := uint64(maxDoc * (s + 1) / shards)
		g.Go(func() error {
			docs := roaring.New()
			docs.AddRange(lo, hi)
			if filter != nil {
				docs.And(filter)
			}
			roll := newRoller(NewMatrix(proto.nodes), distance)
			err := store.Scan(gctx, docs, func(_ int, ids []uint32) {
				roll.clear()
				for pos, id := range ids {
					if id != textindex.Hole {
						roll.push(pos, id)
					}
				}
			})
			if err != nil {
				return err
			}
			parts[s] = roll.matrix()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m := parts[0]
	for _, p := range parts[1:] {
		if err := m.Merge(p); err != nil {
			return nil, err
		}
	}
	b.logger.Debug("graph built", "field", store.Field(), "nodes", m.Len(), "shards", shards, "events", m.N())
	return m, nil
}

// PivotEdges counts, around every occurrence of the pivots, each pair of
// nodes found together inside the window.
func (b *Builder) PivotEdges(ctx context.Context, store *rail.Store, src textindex.Source, pivots []uint32, w cooc.Window, nodes []uint32, filter *roaring.Bitmap) (*Matrix, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	m := NewMatrix(nodes)
	if m.Len() == 0 {
		return nil, apperrors.Invalidf("a set of node ids is required")
	}
	field := store.Field()
	var inWindow []int
	for _, pivot := range uniq(pivots) {
		list, err := src.Postings(field, pivot)
		if err != nil {
			return nil, fmt.Errorf("reading postings for term %d: %w", pivot, err)
		}
		for n, p := range list {
			if n%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if filter != nil && !filter.Contains(uint32(p.DocID)) {
				continue
			}
			if !src.Live(p.DocID) {
				continue
			}
			ids := store.Rail(p.DocID)
			if len(ids) < 2 {
				continue
			}
			if p.Frequency == 0 {
				b.logger.Warn("skipping posting with zero frequency",
					"field", field, "doc_id", p.DocID, "term_id", pivot)
				continue
			}
			for _, pos := range p.Positions {
				if pos < 0 || pos >= len(ids) {
					continue
				}
				inWindow = inWindow[:0]
				from, to := max(0, pos-w.Left), min(len(ids), pos+w.Right+1)
				for q := from; q < to; q++ {
					if i, ok := m.Index(ids[q]); ok {
						inWindow = append(inWindow, i)
					}
				}
				for x := 0; x < len(inWindow)-1; x++ {
					for y := x + 1; y < len(inWindow); y++ {
						m.incIndex(inWindow[x], inWindow[y])
					}
				}
			}
		}
	}
	return m, nil
}
