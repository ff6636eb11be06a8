package graph

import (
	"slices"
	"sort"
)

// EdgeQueue collects the pairs formed inside clusters of contiguous window
// positions during an extraction. Each new member of a cluster pairs with
// every earlier member.
type EdgeQueue struct {
	cluster []uint32
	pairs   []uint64
}

func NewEdgeQueue() *EdgeQueue {
	return &EdgeQueue{}
}

func pairKey(a, b uint32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a) | uint64(b)<<32
}

func (q *EdgeQueue) Clust(id uint32) {
	for _, prev := range q.cluster {
		if prev != id {
			q.pairs = append(q.pairs, pairKey(prev, id))
		}
	}
	q.cluster = append(q.cluster, id)
}

func (q *EdgeQueue) Declust() {
	q.cluster = q.cluster[:0]
}

// Len is the number of pairs pushed, repetitions included.
func (q *EdgeQueue) Len() int { return len(q.pairs) }

// Edges groups the pairs and returns them by count, most frequent first.
func (q *EdgeQueue) Edges() []Edge {
	keys := slices.Clone(q.pairs)
	slices.Sort(keys)
	var out []Edge
	for i := 0; i < len(keys); {
		j := i
		for j < len(keys) && keys[j] == keys[i] {
			j++
		}
		out = append(out, Edge{
			Source: uint32(keys[i]),
			Target: uint32(keys[i] >> 32),
			Count:  int64(j - i),
			Score:  float64(j - i),
		})
		i = j
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out
}

// Matrix keeps the pairs between nodes in a matrix.
func (q *EdgeQueue) Matrix(nodes []uint32) *Matrix {
	m := NewMatrix(nodes)
	for _, k := range q.pairs {
		m.Inc(uint32(k), uint32(k>>32))
	}
	return m
}
