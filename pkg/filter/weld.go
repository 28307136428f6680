package filter

import (
	"container/heap"
	"math"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/mesh"
)

// edgeFeature is a boundary half-edge from start to end. vertices lists
// the vertex features whose nearest feature is this edge.
type edgeFeature struct {
	edge       int
	start, end int
	vertices   []*vertexFeature
}

// vertexFeature is a boundary vertex and its nearest non-incident
// feature: either an edge, or a vertex when the orthogonal projection
// misses the nearest edge.
type vertexFeature struct {
	vertex   int
	distance float64
	edge     *edgeFeature
	target   *vertexFeature
	index    int // position in the queue, -1 once removed
}

// featureQueue orders vertex features by distance, then vertex index.
type featureQueue []*vertexFeature

func (q featureQueue) Len() int { return len(q) }

func (q featureQueue) Less(i, j int) bool {
	if q[i].distance != q[j].distance {
		return q[i].distance < q[j].distance
	}
	return q[i].vertex < q[j].vertex
}

func (q featureQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *featureQueue) Push(x any) {
	f := x.(*vertexFeature)
	f.index = len(*q)
	*q = append(*q, f)
}

func (q *featureQueue) Pop() any {
	old := *q
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	f.index = -1
	*q = old[:n-1]
	return f
}

type welder struct {
	m        *mesh.Mesh
	epsilon  float64
	edges    []*edgeFeature
	vertices map[int]*vertexFeature
	queue    featureQueue
	result   WeldReport
}

// WeldReport counts the contractions made by CloseGaps.
type WeldReport struct {
	VertexVertex int
	VertexEdge   int
	Splits       int
}

// Total returns the number of contractions.
func (r WeldReport) Total() int {
	return r.VertexVertex + r.VertexEdge
}

// CloseGaps closes gaps between boundary features: it repeatedly takes the
// boundary vertex nearest to a non-incident boundary feature and, while
// that distance is within o.WeldingEpsilon, contracts the pair.
func CloseGaps(m *mesh.Mesh, o Options) (WeldReport, error) {
	w, err := newWelder(m, o.WeldingEpsilon)
	if err != nil {
		return WeldReport{}, err
	}
	for w.queue.Len() > 0 {
		vf := heap.Pop(&w.queue).(*vertexFeature)
		if vf.distance > w.epsilon {
			break
		}
		var modified *edgeFeature
		if vf.target != nil {
			w.contract(vf.vertex, vf.target.vertex)
			w.result.VertexVertex++
		} else {
			modified = w.contractEdge(vf, vf.edge)
			w.result.VertexEdge++
		}
		if modified == nil {
			continue
		}
		stale := modified.vertices
		modified.vertices = nil
		for _, other := range stale {
			if other.index < 0 {
				continue
			}
			if w.findNearest(other) {
				heap.Fix(&w.queue, other.index)
			} else {
				heap.Remove(&w.queue, other.index)
			}
		}
	}
	return w.result, nil
}

// newWelder registers every boundary edge and its endpoints, then queues
// the vertices that have a nearest feature.
func newWelder(m *mesh.Mesh, epsilon float64) (*welder, error) {
	boundary, err := BoundaryEdges(m)
	if err != nil {
		return nil, err
	}
	starts, err := m.EdgeStarts()
	if err != nil {
		return nil, err
	}

	w := &welder{m: m, epsilon: epsilon, vertices: make(map[int]*vertexFeature)}
	var order []*vertexFeature
	for _, e := range boundary {
		ef := &edgeFeature{edge: e, start: starts[e], end: m.Edges[e].Vertex}
		w.edges = append(w.edges, ef)
		for _, v := range [2]int{ef.start, ef.end} {
			if _, ok := w.vertices[v]; !ok {
				vf := &vertexFeature{vertex: v, index: -1}
				w.vertices[v] = vf
				order = append(order, vf)
			}
		}
	}
	for _, vf := range order {
		if w.findNearest(vf) {
			heap.Push(&w.queue, vf)
		}
	}
	return w, nil
}

// findNearest recomputes the nearest feature of vf and reports whether one
// exists. Among equally near edges the later one wins.
func (w *welder) findNearest(vf *vertexFeature) bool {
	vf.distance, vf.edge, vf.target = math.Inf(1), nil, nil
	p := w.m.Vertices[vf.vertex]
	for _, ef := range w.edges {
		if ef.start == vf.vertex || ef.end == vf.vertex {
			continue
		}
		d := pointSegmentDistance(p, w.m.Vertices[ef.start], w.m.Vertices[ef.end])
		if d <= vf.distance {
			vf.distance, vf.edge = d, ef
		}
	}
	if vf.edge == nil {
		return false
	}

	a, b := w.m.Vertices[vf.edge.start], w.m.Vertices[vf.edge.end]
	if !onSegment(p, a, b) {
		near := vf.edge.end
		if p.Distance(a) <= p.Distance(b) {
			near = vf.edge.start
		}
		vf.target = w.vertices[near]
		vf.distance = p.Distance(w.m.Vertices[near])
		vf.edge = nil
		return true
	}
	vf.edge.vertices = append(vf.edge.vertices, vf)
	return true
}

// contract moves vertices a and b to their midpoint.
func (w *welder) contract(a, b int) {
	mid := w.m.Vertices[a].Lerp(w.m.Vertices[b], 0.5)
	w.m.Vertices[a] = mid
	w.m.Vertices[b] = mid
}

// contractEdge welds vf onto ef. A projection within epsilon of an
// endpoint contracts to that endpoint; otherwise the edge is split at the
// projection and returned as modified. The split vertex becomes a weld
// target for later vertices but is not queued itself.
func (w *welder) contractEdge(vf *vertexFeature, ef *edgeFeature) *edgeFeature {
	p := w.m.Vertices[vf.vertex]
	a, b := w.m.Vertices[ef.start], w.m.Vertices[ef.end]
	dir := b.Sub(a).Normalize()
	q := a.Add(dir.Scale(dir.Dot(p.Sub(a))))

	switch {
	case q.Distance(a) <= w.epsilon:
		w.contract(vf.vertex, ef.start)
		return nil
	case q.Distance(b) <= w.epsilon:
		w.contract(vf.vertex, ef.end)
		return nil
	}

	newEdge := w.m.SplitEdge(ef.edge, q)
	split := w.m.Edges[ef.edge].Vertex
	w.edges = append(w.edges, &edgeFeature{edge: newEdge, start: split, end: ef.end})
	ef.end = split
	w.vertices[split] = &vertexFeature{vertex: split, index: -1}
	w.result.Splits++
	w.contract(vf.vertex, split)
	return ef
}

// pointSegmentDistance returns the distance from p to the segment [a, b].
func pointSegmentDistance(p, a, b geom.Vector3) float64 {
	d := b.Sub(a)
	l2 := d.Dot(d)
	if l2 == 0 {
		return p.Distance(a)
	}
	t := d.Dot(p.Sub(a)) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(a.Add(d.Scale(t)))
}
