// Package ranking selects and orders term ids by a dense score array and
// exposes the result as a cursor over the term statistics.
package ranking

import (
	"container/heap"
	"math"
	"sort"
)

// Flags tune Select.
type Flags uint8

const (
	// ExcludeZero drops terms scoring exactly 0, even within the limit.
	ExcludeZero Flags = 1 << iota
	// Reverse ranks the lowest scores first.
	Reverse
)

type entry struct {
	id    uint32
	score float64
}

// before reports whether a ranks ahead of b. Equal scores rank the smaller
// id first so that every limit yields a prefix of the full ranking.
func before(a, b entry, reverse bool) bool {
	if a.score != b.score {
		if reverse {
			return a.score < b.score
		}
		return a.score > b.score
	}
	return a.id < b.id
}

// Select returns the ids of the k best scores in rank order, or every id
// when k < 1. NaN scores are never selected.
func Select(scores []float64, k int, flags Flags) []uint32 {
	return SelectFunc(scores, k, flags, nil)
}

// SelectFunc is Select restricted to the ids keep accepts.
func SelectFunc(scores []float64, k int, flags Flags, keep func(id uint32) bool) []uint32 {
	reverse := flags&Reverse != 0
	eligible := func(id int, s float64) bool {
		if math.IsNaN(s) {
			return false
		}
		if flags&ExcludeZero != 0 && s == 0 {
			return false
		}
		return keep == nil || keep(uint32(id))
	}

	if k < 1 || k >= len(scores) {
		all := make([]entry, 0, len(scores))
		for id, s := range scores {
			if eligible(id, s) {
				all = append(all, entry{id: uint32(id), score: s})
			}
		}
		sort.Slice(all, func(i, j int) bool { return before(all[i], all[j], reverse) })
		if k >= 1 && len(all) > k {
			all = all[:k]
		}
		return ids(all)
	}

	h := &worstFirst{reverse: reverse}
	for id, s := range scores {
		if !eligible(id, s) {
			continue
		}
		e := entry{id: uint32(id), score: s}
		if h.Len() < k {
			heap.Push(h, e)
			continue
		}
		if before(e, h.items[0], reverse) {
			h.items[0] = e
			heap.Fix(h, 0)
		}
	}
	out := make([]entry, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(entry)
	}
	return ids(out)
}

func ids(entries []entry) []uint32 {
	out := make([]uint32, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

// worstFirst keeps the weakest selected entry on top so it can be evicted.
type worstFirst struct {
	items   []entry
	reverse bool
}

func (h worstFirst) Len() int { return len(h.items) }

func (h worstFirst) Less(i, j int) bool { return before(h.items[j], h.items[i], h.reverse) }

func (h worstFirst) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *worstFirst) Push(x interface{}) {
	h.items = append(h.items, x.(entry))
}

func (h *worstFirst) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
