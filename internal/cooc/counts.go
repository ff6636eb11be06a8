package cooc

import (
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
)

// Counts aggregates one extraction. Slices are indexed by term id and are
// owned by the request that produced them.
type Counts struct {
	Field string
	// Occs counts the occurrences of each term inside the windows.
	Occs []int64
	// Docs counts the documents where the term was seen inside a window.
	Docs []int32
	// Cover is the first document where the term was counted, or -1.
	Cover []int32
	// Found is the number of pivot occurrences located.
	Found int64
	// Part is the number of positions counted, over all terms.
	Part int64
	// Hits is the number of documents holding at least one pivot.
	Hits int
	// Anomalies lists entries skipped because postings and rails disagreed.
	Anomalies []error
}

func newCounts(field string, size int) *Counts {
	c := &Counts{
		Field: field,
		Occs:  make([]int64, size),
		Docs:  make([]int32, size),
		Cover: make([]int32, size),
	}
	for i := range c.Cover {
		c.Cover[i] = -1
	}
	return c
}

// Score applies a pair scorer to every co-occurrent: Oab is its count in
// the windows, Oa its count in the field, Ob the field count of all pivots
// and N the field size. Oab is capped at Ob since a term repeated inside
// one window can outnumber the pivots.
func (c *Counts) Score(mi specif.MI, pivots []uint32, stats *textindex.FieldStats) []float64 {
	scores := make([]float64, len(c.Occs))
	var ob int64
	for _, id := range dedupe(pivots) {
		ob += stats.Occurrences(id)
	}
	n := float64(stats.TotalOccs)
	for id, oab := range c.Occs {
		if oab == 0 {
			continue
		}
		oab = min(oab, ob)
		scores[id] = mi.Score(float64(oab), float64(stats.Occurrences(uint32(id))), float64(ob), n)
	}
	return scores
}

// Specificity scores the windows as a part of the field with a two-phase
// scorer.
func (c *Counts) Specificity(s specif.Scorer, stats *textindex.FieldStats) []float64 {
	return specif.Apply(s, c.Occs, c.Part, c.Hits, stats)
}

func dedupe(ids []uint32) []uint32 {
	out := make([]uint32, 0, len(ids))
	seen := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		if id == textindex.Hole {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
