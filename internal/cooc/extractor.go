// Package cooc counts the terms found in fixed windows around pivot terms,
// reading term ids from a rail store and pivot positions from postings.
package cooc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/rail"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
)

const cancelCheckEvery = 256

// EdgeSink receives the surviving positions of each window cluster in
// order. Declust is called whenever the run of contiguous positions breaks.
type EdgeSink interface {
	Clust(termID uint32)
	Declust()
}

// Options narrow an extraction. The zero value counts every live document
// and every term.
type Options struct {
	Filter *roaring.Bitmap
	Tags   *textindex.TagFilter
	Edges  EdgeSink
}

type Extractor struct {
	src     textindex.Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewExtractor(src textindex.Source, logger *slog.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		src:     src,
		logger:  logger.With("component", "cooc"),
		metrics: m,
	}
}

// cursor walks one pivot's posting list.
type cursor struct {
	term uint32
	list textindex.PostingList
	next int
}

func (c *cursor) doc() (int, bool) {
	if c.next >= len(c.list) {
		return 0, false
	}
	return c.list[c.next].DocID, true
}

// Extract counts co-occurrents of pivots in store. The store must have been
// built from the extractor's source at its current generation.
func (e *Extractor) Extract(ctx context.Context, store *rail.Store, pivots []uint32, w Window, opts Options) (*Counts, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	field := store.Field()
	if gen := e.src.Generation(); gen != store.Generation() {
		return nil, fmt.Errorf("%w: field %s store=%d source=%d",
			apperrors.ErrStaleStore, field, store.Generation(), gen)
	}
	lex, err := e.src.Lexicon(field)
	if err != nil {
		return nil, err
	}
	size := lex.Size()
	counts := newCounts(field, size)

	cursors := make([]*cursor, 0, len(pivots))
	for _, id := range dedupe(pivots) {
		if int(id) >= size {
			continue
		}
		list, err := e.src.Postings(field, id)
		if err != nil {
			return nil, fmt.Errorf("reading postings for term %d: %w", id, err)
		}
		if len(list) > 0 {
			cursors = append(cursors, &cursor{term: id, list: list})
		}
	}
	if len(cursors) == 0 {
		return counts, nil
	}

	var (
		contexts = bitset.New(0)
		pivotPos = bitset.New(0)
		// seen[t] == doc+1 once t has been counted in doc
		seen     = make([]int32, size)
		tags     = opts.Tags
		restrict = tags.Restricts()
	)

	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		docID, ok := nextDoc(cursors)
		if !ok {
			break
		}
		skip := (opts.Filter != nil && !opts.Filter.Contains(uint32(docID))) || !e.src.Live(docID)
		ids := store.Rail(docID)

		contexts.ClearAll()
		pivotPos.ClearAll()
		hit := false
		for _, c := range cursors {
			if d, ok := c.doc(); !ok || d != docID {
				continue
			}
			posting := c.list[c.next]
			c.next++
			if skip {
				continue
			}
			if posting.Frequency == 0 || len(posting.Positions) == 0 {
				e.anomaly(counts, docID, c.term, "posting with zero frequency")
				continue
			}
			for _, pos := range posting.Positions {
				if pos < 0 || pos >= len(ids) || ids[pos] != c.term {
					e.anomaly(counts, docID, c.term, fmt.Sprintf("position %d does not hold the term in the rail", pos))
					continue
				}
				from, to := w.span(pos, len(ids))
				for p := from; p < to; p++ {
					contexts.Set(uint(p))
				}
				pivotPos.Set(uint(pos))
				counts.Found++
				hit = true
			}
		}
		if !hit {
			continue
		}
		counts.Hits++

		stamp := int32(docID + 1)
		last := -2
		for p, ok := contexts.NextSet(0); ok; p, ok = contexts.NextSet(p + 1) {
			pos := int(p)
			if opts.Edges != nil && pos > last+1 {
				opts.Edges.Declust()
			}
			last = pos
			id := ids[pos]
			if id == textindex.Hole {
				continue
			}
			if int(id) >= size {
				e.anomaly(counts, docID, id, "term id outside the dictionary")
				continue
			}
			if restrict && !pivotPos.Test(p) && !tags.Admits(lex, id) {
				continue
			}
			if opts.Edges != nil {
				opts.Edges.Clust(id)
			}
			counts.Part++
			counts.Occs[id]++
			if seen[id] != stamp {
				seen[id] = stamp
				counts.Docs[id]++
				if counts.Cover[id] < 0 {
					counts.Cover[id] = int32(docID)
				}
			}
		}
		if opts.Edges != nil {
			opts.Edges.Declust()
		}
	}

	e.metrics.Anomalies(field, len(counts.Anomalies))
	return counts, nil
}

// nextDoc returns the smallest document id any cursor is parked on.
func nextDoc(cursors []*cursor) (int, bool) {
	best, found := 0, false
	for _, c := range cursors {
		if d, ok := c.doc(); ok && (!found || d < best) {
			best, found = d, true
		}
	}
	return best, found
}

func (e *Extractor) anomaly(counts *Counts, docID int, termID uint32, reason string) {
	err := &apperrors.ConsistencyError{Field: counts.Field, DocID: docID, TermID: termID, Reason: reason}
	counts.Anomalies = append(counts.Anomalies, err)
	e.logger.Warn("skipping inconsistent index entry",
		"field", counts.Field,
		"doc_id", docID,
		"term_id", termID,
		"reason", reason,
	)
}
