package graph

import "sort"

// Iterator emits the edges of a matrix so that no node is left out early:
// nodes take turns, each turn giving the best edge of that node not yet
// emitted. Every node with an edge appears before any node takes a second
// turn.
type Iterator struct {
	rows     [][]Edge
	cols     []int
	consumed []bool
	line     int
}

// Iterator snapshots the matrix; later increments are not seen.
func (m *Matrix) Iterator() *Iterator {
	size := len(m.nodes)
	marg := m.marginals()
	n := float64(m.N())
	it := &Iterator{
		rows:     make([][]Edge, size),
		cols:     make([]int, size),
		consumed: make([]bool, len(m.cells)),
	}
	for i := 0; i < size; i++ {
		var row []Edge
		for j := 0; j < size; j++ {
			if i == j {
				continue
			}
			count := m.cells[m.cell(i, j)]
			if count <= 0 {
				continue
			}
			e := m.edge(i, j, count, marg, n)
			row = append(row, e)
		}
		sort.SliceStable(row, func(a, b int) bool { return row[a].Score > row[b].Score })
		it.rows[i] = row
	}
	if size == 0 {
		it.line = -1
	}
	return it
}

// Next returns the next edge, or false once every edge was emitted.
func (it *Iterator) Next() (Edge, bool) {
	for it.line >= 0 {
		line := it.line
		row := it.rows[line]
		for it.cols[line] < len(row) {
			e := row[it.cols[line]]
			it.cols[line]++
			if it.consumed[e.cell] {
				continue
			}
			it.consumed[e.cell] = true
			e.from = line
			it.line = it.nextLine(line)
			return e, true
		}
		it.line = it.nextLine(line)
	}
	return Edge{}, false
}

// nextLine returns the first line after line with edges left, or -1.
func (it *Iterator) nextLine(line int) int {
	size := len(it.rows)
	for i := 0; i < size; i++ {
		line++
		if line >= size {
			line = 0
		}
		if it.cols[line] < len(it.rows[line]) {
			return line
		}
	}
	return -1
}
