// Package graph counts co-occurrences between a bounded set of terms in a
// dense matrix and emits its edges for network rendering.
package graph

import (
	"fmt"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/specif"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/internal/textindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

// Edge is an undirected pair of terms, Source < Target.
type Edge struct {
	Source uint32  `json:"source"`
	Target uint32  `json:"target"`
	Count  int64   `json:"count"`
	Score  float64 `json:"score"`

	cell int
	// from is the row whose turn emitted the edge.
	from int
}

// Matrix is an undirected co-occurrence grid over a sorted set of term ids.
// Only the upper triangle is written; the diagonal is never emitted.
type Matrix struct {
	nodes  []uint32
	cells  []int64
	counts []int64
	n      int64
	hasN   bool
	mi     *specif.MI
}

// NewMatrix returns an empty matrix over the distinct non-hole ids of nodes.
func NewMatrix(nodes []uint32) *Matrix {
	ids := uniq(nodes)
	return &Matrix{
		nodes: ids,
		cells: make([]int64, len(ids)*len(ids)),
	}
}

// uniq returns the distinct non-hole ids in ascending order.
func uniq(ids []uint32) []uint32 {
	out := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id != textindex.Hole {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Nodes returns the node ids in ascending order.
func (m *Matrix) Nodes() []uint32 { return m.nodes }

func (m *Matrix) Len() int { return len(m.nodes) }

// Index returns the row of id.
func (m *Matrix) Index(id uint32) (int, bool) {
	return slices.BinarySearch(m.nodes, id)
}

func (m *Matrix) cell(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*len(m.nodes) + j
}

// Inc counts one co-occurrence of a and b. It reports false when either is
// not a node.
func (m *Matrix) Inc(a, b uint32) bool {
	i, ok := m.Index(a)
	if !ok {
		return false
	}
	j, ok := m.Index(b)
	if !ok {
		return false
	}
	m.incIndex(i, j)
	return true
}

func (m *Matrix) incIndex(i, j int) {
	m.cells[m.cell(i, j)]++
}

// Count returns the co-occurrences recorded for a and b.
func (m *Matrix) Count(a, b uint32) int64 {
	i, ok := m.Index(a)
	if !ok {
		return 0
	}
	j, ok := m.Index(b)
	if !ok {
		return 0
	}
	return m.cells[m.cell(i, j)]
}

// SetN sets the number of events the counts were drawn from.
func (m *Matrix) SetN(n int64) *Matrix {
	m.n, m.hasN = n, true
	return m
}

// SetNodeCounts sets the marginal count of each node, by row.
func (m *Matrix) SetNodeCounts(counts []int64) *Matrix {
	m.counts = counts
	return m
}

// SetMI scores edges with a pair scorer instead of their raw count.
func (m *Matrix) SetMI(mi specif.MI) *Matrix {
	m.mi = &mi
	return m
}

// N is the event total given with SetN, or the sum of all edge counts.
func (m *Matrix) N() int64 {
	if m.hasN {
		return m.n
	}
	var n int64
	m.eachEdge(func(_, _, _ int, count int64) { n += count })
	return n
}

// NodeCount is the marginal of row i given with SetNodeCounts, or the sum of
// its edge counts.
func (m *Matrix) NodeCount(i int) int64 {
	if m.counts != nil {
		return m.counts[i]
	}
	var sum int64
	for j := range m.nodes {
		if j != i {
			sum += m.cells[m.cell(i, j)]
		}
	}
	return sum
}

// eachEdge visits the nonzero off-diagonal cells of the upper triangle.
func (m *Matrix) eachEdge(fn func(cell, i, j int, count int64)) {
	size := len(m.nodes)
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			c := i*size + j
			if m.cells[c] > 0 {
				fn(c, i, j, m.cells[c])
			}
		}
	}
}

func (m *Matrix) edge(i, j int, count int64, marg []int64, n float64) Edge {
	if i > j {
		i, j = j, i
	}
	e := Edge{Source: m.nodes[i], Target: m.nodes[j], Count: count, Score: float64(count), cell: m.cell(i, j)}
	if m.mi != nil {
		a, b := marg[i], marg[j]
		ab := min(count, min(a, b))
		e.Score = m.mi.Score(float64(ab), float64(a), float64(b), n)
	}
	return e
}

func (m *Matrix) marginals() []int64 {
	marg := make([]int64, len(m.nodes))
	for i := range marg {
		marg[i] = m.NodeCount(i)
	}
	return marg
}

// Merge adds the counts of o, built over the same nodes, into m.
func (m *Matrix) Merge(o *Matrix) error {
	if !slices.Equal(m.nodes, o.nodes) {
		return fmt.Errorf("%w: merging matrices over different nodes", apperrors.ErrInternal)
	}
	for c, v := range o.cells {
		m.cells[c] += v
	}
	if o.hasN {
		m.n += o.n
		m.hasN = true
	}
	if o.counts != nil {
		if m.counts == nil {
			m.counts = make([]int64, len(m.nodes))
		}
		for i, v := range o.counts {
			m.counts[i] += v
		}
	}
	return nil
}

// TopEdges returns the k best scored edges, all of them when k < 1. Unlike
// Iterator, it may leave nodes without any edge.
func (m *Matrix) TopEdges(k int) []Edge {
	marg := m.marginals()
	n := float64(m.N())
	scores := make([]float64, len(m.cells))
	edges := make(map[int]Edge)
	for c := range scores {
		scores[c] = math.NaN()
	}
	m.eachEdge(func(c, i, j int, count int64) {
		e := m.edge(i, j, count, marg, n)
		scores[c] = e.Score
		edges[c] = e
	})
	top := ranking.Select(scores, k, 0)
	out := make([]Edge, len(top))
	for i, c := range top {
		out[i] = edges[int(c)]
	}
	return out
}

// Edges drains an Iterator, stopping after limit edges when limit > 0.
func (m *Matrix) Edges(limit int) []Edge {
	var out []Edge
	it := m.Iterator()
	for limit < 1 || len(out) < limit {
		e, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}
