package rail

import (
	"context"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
)

const cancelCheckEvery = 1024

// Scan calls fn for every document with a non-empty rail, restricted to
// filter when it is not nil, in ascending document order.
func (s *Store) Scan(ctx context.Context, filter *roaring.Bitmap, fn func(docID int, rail []uint32)) error {
	visit := func(n, docID int) error {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if s.lengths[docID] > 0 {
			fn(docID, s.Rail(docID))
		}
		return nil
	}
	maxDoc := s.MaxDoc()
	if filter == nil {
		for docID := 0; docID < maxDoc; docID++ {
			if err := visit(docID, docID); err != nil {
				return err
			}
		}
		return nil
	}
	it := filter.Iterator()
	for n := 0; it.HasNext(); n++ {
		docID := int(it.Next())
		if docID >= maxDoc {
			break
		}
		if err := visit(n, docID); err != nil {
			return err
		}
	}
	return nil
}

// Freqs counts occurrences of each term id over the selected documents.
// The result has size entries; ids at or beyond size are ignored and holes
// are never counted.
func (s *Store) Freqs(ctx context.Context, filter *roaring.Bitmap, size int) ([]int64, error) {
	freqs := make([]int64, size)
	err := s.Scan(ctx, filter, func(_ int, rail []uint32) {
		for _, id := range rail {
			if id != textindex.Hole && int(id) < size {
				freqs[id]++
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return freqs, nil
}

// Expression is a recurrent multi-word sequence, identified by its first and
// last term.
type Expression struct {
	First uint32 `json:"first"`
	Last  uint32 `json:"last"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Expressions finds sequences of two plain words joined only by excluded
// words (typically stop words). Holes and punctuation break a sequence, and
// an excluded word never starts one. Results are sorted by count, then label.
func (s *Store) Expressions(ctx context.Context, filter *roaring.Bitmap, lex textindex.Lexicon, exclude func(id uint32) bool) ([]Expression, error) {
	type key struct{ first, last uint32 }
	found := make(map[key]*Expression)
	var slider []uint32
	err := s.Scan(ctx, filter, func(_ int, rail []uint32) {
		slider = slider[:0]
		for _, id := range rail {
			if id == textindex.Hole || int(id) >= lex.Size() || lex.IsPunctuation(id) {
				slider = slider[:0]
				continue
			}
			if exclude != nil && exclude(id) {
				if len(slider) > 0 {
					slider = append(slider, id)
				}
				continue
			}
			if len(slider) == 0 {
				slider = append(slider, id)
				continue
			}
			slider = append(slider, id)
			k := key{slider[0], id}
			e, ok := found[k]
			if !ok {
				e = &Expression{First: k.first, Last: k.last, Label: label(lex, slider)}
				found[k] = e
			}
			e.Count++
			slider = append(slider[:0], id)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]Expression, 0, len(found))
	for _, e := range found {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func label(lex textindex.Lexicon, ids []uint32) string {
	var b strings.Builder
	for i, id := range ids {
		form := lex.Form(id)
		if i > 0 && !strings.HasSuffix(b.String(), "'") {
			b.WriteByte(' ')
		}
		b.WriteString(form)
	}
	return b.String()
}
