package graph

// roller slides over a rail and pairs each node occurrence with the
// distinct nodes seen at most distance positions before it.
type roller struct {
	m        *Matrix
	distance int
	window   []slot
	freq     []int64
	n        int64
	seen     []bool
	touched  []int
}

type slot struct {
	pos  int
	node int
}

func newRoller(m *Matrix, distance int) *roller {
	return &roller{
		m:        m,
		distance: distance,
		freq:     make([]int64, m.Len()),
		seen:     make([]bool, m.Len()),
	}
}

func (r *roller) clear() { r.window = r.window[:0] }

func (r *roller) forget() {
	for _, i := range r.touched {
		r.seen[i] = false
	}
	r.touched = r.touched[:0]
}

func (r *roller) push(pos int, id uint32) {
	node, ok := r.m.Index(id)
	if !ok {
		return
	}
	r.freq[node]++

	drop := 0
	for drop < len(r.window) && pos-r.window[drop].pos > r.distance {
		drop++
	}
	if drop > 0 {
		r.window = append(r.window[:0], r.window[drop:]...)
	}

	r.forget()
	for _, s := range r.window {
		// a repeated node already paired with everything before it
		if s.node == node {
			r.forget()
			continue
		}
		if r.seen[s.node] {
			continue
		}
		r.seen[s.node] = true
		r.touched = append(r.touched, s.node)
		r.n++
	}
	for _, other := range r.touched {
		r.m.incIndex(node, other)
	}
	r.window = append(r.window, slot{pos: pos, node: node})
}

// matrix stamps the totals gathered so far on the matrix.
func (r *roller) matrix() *Matrix {
	return r.m.SetN(r.n).SetNodeCounts(r.freq)
}
