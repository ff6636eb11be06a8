package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Order names the value terms are ranked by.
type Order string

const (
	ByOccs  Order = "occs"  // occurrences in the field
	ByDocs  Order = "docs"  // documents in the field
	ByFreq  Order = "freq"  // occurrences in the matched part
	ByHits  Order = "hits"  // documents in the matched part
	ByScore Order = "score" // association or specificity score
	ByAlpha Order = "alpha"
)

func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(s)); o {
	case ByOccs, ByDocs, ByFreq, ByHits, ByScore, ByAlpha:
		return o, nil
	case "":
		return ByScore, nil
	}
	return "", fmt.Errorf("%w: unknown order %q", apperrors.ErrInvalidInput, s)
}

// Ranked is a sorted view over the term ids of a field, with the
// statistics of each term kept in parallel arrays. It is a cursor: call
// Sort, then loop with HasNext and Next, reading the current term through
// the accessors.
//
//	for r.Reset(); r.HasNext(); {
//		r.Next()
//		fmt.Println(r.Label(), r.Score())
//	}
type Ranked struct {
	lex   textindex.Lexicon
	stats *textindex.FieldStats

	// Per term counts in the matched part; nil when ranking the whole field.
	occsMatch []int64
	docsMatch []int32
	cover     []int32
	scores    []float64
	excluded  []bool

	order   []uint32
	cursor  int
	current uint32
}

func New(lex textindex.Lexicon, stats *textindex.FieldStats) *Ranked {
	return &Ranked{lex: lex, stats: stats}
}

// WithCounts attaches the per term counts of a matched part.
func (r *Ranked) WithCounts(occs []int64, docs []int32, cover []int32) *Ranked {
	r.occsMatch, r.docsMatch, r.cover = occs, docs, cover
	return r
}

func (r *Ranked) WithScores(scores []float64) *Ranked {
	r.scores = scores
	return r
}

// Filter excludes the terms the tag filter rejects from the next Sort.
func (r *Ranked) Filter(tags *textindex.TagFilter) *Ranked {
	if !tags.Restricts() {
		r.excluded = nil
		return r
	}
	r.excluded = make([]bool, r.lex.Size())
	for id := range r.excluded {
		r.excluded[id] = !tags.Admits(r.lex, uint32(id))
	}
	return r
}

func (r *Ranked) keep(id uint32) bool {
	if id == textindex.Hole {
		return false
	}
	return r.excluded == nil || int(id) >= len(r.excluded) || !r.excluded[id]
}

// Sort ranks the terms by order and keeps the first limit of them, all of
// them when limit < 1. Terms absent from the matched part are left out.
func (r *Ranked) Sort(order Order, limit int, reverse bool) error {
	flags := Flags(0)
	if reverse {
		flags |= Reverse
	}
	size := r.lex.Size()
	keys := make([]float64, size)

	switch order {
	case ByAlpha:
		r.sortAlpha(limit, reverse)
		return nil
	case ByOccs:
		for id := range keys {
			keys[id] = float64(r.stats.Occurrences(uint32(id)))
		}
		flags |= ExcludeZero
	case ByDocs:
		for id := range keys {
			keys[id] = float64(r.stats.DocFreq(uint32(id)))
		}
		flags |= ExcludeZero
	case ByFreq:
		for id := range keys {
			keys[id] = float64(r.OccsMatchOf(uint32(id)))
		}
		flags |= ExcludeZero
	case ByHits:
		for id := range keys {
			keys[id] = float64(r.DocsMatchOf(uint32(id)))
		}
		flags |= ExcludeZero
	case ByScore:
		if r.scores == nil {
			return fmt.Errorf("%w: no scores to sort by", apperrors.ErrInvalidInput)
		}
		for id := range keys {
			switch {
			case id >= len(r.scores):
				keys[id] = math.NaN()
			case r.occsMatch != nil && r.OccsMatchOf(uint32(id)) == 0:
				keys[id] = math.NaN()
			default:
				keys[id] = r.scores[id]
			}
		}
	default:
		return fmt.Errorf("%w: unknown order %q", apperrors.ErrInvalidInput, order)
	}
	if r.occsMatch != nil && order != ByScore {
		for id := range keys {
			if r.OccsMatchOf(uint32(id)) == 0 {
				keys[id] = math.NaN()
			}
		}
	}
	r.order = SelectFunc(keys, limit, flags, r.keep)
	r.Reset()
	return nil
}

func (r *Ranked) sortAlpha(limit int, reverse bool) {
	order := make([]uint32, 0, r.lex.Size())
	for id := 1; id < r.lex.Size(); id++ {
		tid := uint32(id)
		if !r.keep(tid) || (r.occsMatch != nil && r.OccsMatchOf(tid) == 0) {
			continue
		}
		order = append(order, tid)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := r.lex.Form(order[i]), r.lex.Form(order[j])
		if reverse {
			return a > b
		}
		return a < b
	})
	if limit >= 1 && len(order) > limit {
		order = order[:limit]
	}
	r.order = order
	r.Reset()
}

// Cardinality is the number of terms in the current ranking.
func (r *Ranked) Cardinality() int { return len(r.order) }

// IDs returns the ranking as term ids.
func (r *Ranked) IDs() []uint32 { return r.order }

func (r *Ranked) Reset() { r.cursor = 0 }

func (r *Ranked) HasNext() bool { return r.cursor < len(r.order) }

// Next moves to the next term and returns its id.
func (r *Ranked) Next() uint32 {
	r.current = r.order[r.cursor]
	r.cursor++
	return r.current
}

func (r *Ranked) TermID() uint32 { return r.current }

func (r *Ranked) Label() string { return r.lex.Form(r.current) }

func (r *Ranked) Tag() textindex.Tag { return r.lex.Tag(r.current) }

func (r *Ranked) Score() float64 {
	if int(r.current) >= len(r.scores) {
		return 0
	}
	return r.scores[r.current]
}

func (r *Ranked) OccsField() int64 { return r.stats.Occurrences(r.current) }

func (r *Ranked) DocsField() int32 { return r.stats.DocFreq(r.current) }

func (r *Ranked) OccsMatch() int64 { return r.OccsMatchOf(r.current) }

func (r *Ranked) DocsMatch() int32 { return r.DocsMatchOf(r.current) }

// Cover is a representative document for the current term, or -1.
func (r *Ranked) Cover() int32 {
	if int(r.current) >= len(r.cover) {
		return -1
	}
	return r.cover[r.current]
}

func (r *Ranked) OccsMatchOf(id uint32) int64 {
	if int(id) >= len(r.occsMatch) {
		return 0
	}
	return r.occsMatch[id]
}

func (r *Ranked) DocsMatchOf(id uint32) int32 {
	if int(id) >= len(r.docsMatch) {
		return 0
	}
	return r.docsMatch[id]
}

// Term is one ranked term, materialized for serialization.
type Term struct {
	ID        uint32  `json:"id"`
	Form      string  `json:"form"`
	Tag       string  `json:"tag"`
	OccsField int64   `json:"occs_field"`
	DocsField int32   `json:"docs_field"`
	OccsMatch int64   `json:"occs_match,omitempty"`
	DocsMatch int32   `json:"docs_match,omitempty"`
	Score     float64 `json:"score"`
	Cover     int32   `json:"cover"`
}

// Terms walks the cursor from the start and materializes every term.
func (r *Ranked) Terms() []Term {
	out := make([]Term, 0, r.Cardinality())
	for r.Reset(); r.HasNext(); {
		r.Next()
		out = append(out, Term{
			ID:        r.TermID(),
			Form:      r.Label(),
			Tag:       r.Tag().String(),
			OccsField: r.OccsField(),
			DocsField: r.DocsField(),
			OccsMatch: r.OccsMatch(),
			DocsMatch: r.DocsMatch(),
			Score:     r.Score(),
			Cover:     r.Cover(),
		})
	}
	r.Reset()
	return out
}
