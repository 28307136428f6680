package mesh

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
)

// pointIntersection is a candidate brush corner and the planes through it.
type pointIntersection struct {
	vertex int
	planes []int
	edges  []edgeIntersection
}

// edgeIntersection is a half-edge ending at a corner, with the two planes
// whose intersection line carries it.
type edgeIntersection struct {
	edge   int
	planes [2]int
}

// sharedPlane finds the plane two edges at the same corner have in
// common, and returns it with each edge's other plane.
func (e edgeIntersection) sharedPlane(o edgeIntersection) (shared, other, oppositeOther int, ok bool) {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if e.planes[i] == o.planes[j] {
				return e.planes[i], e.planes[1-i], o.planes[1-j], true
			}
		}
	}
	return None, None, None, false
}

func sharedPlanes(a, b []int) ([2]int, bool) {
	var found [2]int
	n := 0
	for _, p := range a {
		for _, q := range b {
			if p == q {
				found[n] = p
				n++
				if n == 2 {
					return found, true
				}
			}
		}
	}
	return found, false
}

// FromPlanes builds the convex polyhedron bounded by planes. Each plane
// becomes one polygon; planes that do not contribute a face leave a
// degenerate polygon. Too few or inconsistent planes give an empty solid.
func FromPlanes(planes []geom.Plane) (*Mesh, error) {
	for i, p := range planes {
		if err := p.Validate(); err != nil {
			return nil, errors.Wrapf(err, "brush plane %d", i)
		}
	}

	m := New()
	m.Planes = append([]geom.Plane(nil), planes...)

	points := findCorners(m)
	linkEdges(m, points)

	m.Polygons = make([]Polygon, len(planes))
	for i := range m.Polygons {
		m.Polygons[i] = newPolygon(i)
	}

	for p := len(points) - 1; p >= 0; p-- {
		pt := points[p]
		if len(pt.edges) <= 2 {
			continue
		}
		v := m.Vertices[pt.vertex]
		for a := 0; a < len(pt.edges)-1; a++ {
			e1 := pt.edges[a]
			for b := a + 1; b < len(pt.edges); b++ {
				e2 := pt.edges[b]
				shared, o1, o2, ok := e1.sharedPlane(e2)
				if !ok {
					continue
				}
				dir := m.Planes[shared].Normal().Cross(m.Planes[o1].Normal())
				var in, out int
				if dir.Dot(m.Planes[o2].Normal()) < 0 {
					in, out = e2.edge, m.Edges[e1.edge].Twin
				} else {
					in, out = e1.edge, m.Edges[e2.edge].Twin
				}
				m.Edges[in].Next = out
				m.Edges[in].Polygon = shared
				m.Edges[out].Polygon = shared

				poly := &m.Polygons[shared]
				poly.First = out
				if err := poly.Bounds.AddPoint(v); err != nil {
					return nil, err
				}
			}
		}
		if err := m.Bounds.AddPoint(v); err != nil {
			return nil, err
		}
	}

	dropBrokenPolygons(m)
	return m, nil
}

// findCorners enumerates every plane triple and keeps the intersection
// points that lie inside all remaining planes.
func findCorners(m *Mesh) []*pointIntersection {
	planes := m.Planes
	n := len(planes)
	var points []*pointIntersection
	for i := 0; i < n-2; i++ {
		for j := i + 1; j < n-1; j++ {
		triple:
			for k := j + 1; k < n; k++ {
				v, ok := geom.Intersect3(planes[i], planes[j], planes[k])
				if !ok {
					continue
				}
				on := []int{i, j, k}
				for l := 0; l < n; l++ {
					if l == i || l == j || l == k {
						continue
					}
					switch planes[l].Side(v) {
					case geom.Outside:
						continue triple
					case geom.Intersects:
						// A lower triple through the same corner already found it.
						if l < k {
							continue triple
						}
						on = append(on, l)
					}
				}
				m.Vertices = append(m.Vertices, v)
				points = append(points, &pointIntersection{vertex: len(m.Vertices) - 1, planes: on})
			}
		}
	}
	return points
}

// linkEdges creates a twin pair for every two corners on a common line.
func linkEdges(m *Mesh, points []*pointIntersection) {
	for a := 0; a < len(points); a++ {
		for b := a + 1; b < len(points); b++ {
			shared, ok := sharedPlanes(points[a].planes, points[b].planes)
			if !ok {
				continue
			}
			ea := len(m.Edges)
			eb := ea + 1
			edgeA, edgeB := newHalfEdge(), newHalfEdge()
			edgeA.Vertex, edgeA.Twin = points[a].vertex, eb
			edgeB.Vertex, edgeB.Twin = points[b].vertex, ea
			m.Edges = append(m.Edges, edgeA, edgeB)

			points[a].edges = append(points[a].edges, edgeIntersection{edge: ea, planes: shared})
			points[b].edges = append(points[b].edges, edgeIntersection{edge: eb, planes: shared})
		}
	}
}

// dropBrokenPolygons demotes faces whose cycle does not close, which
// happens when near-parallel planes leave dangling corners.
func dropBrokenPolygons(m *Mesh) {
	for i := range m.Polygons {
		if m.Polygons[i].Degenerate() {
			continue
		}
		cycle, err := m.Cycle(i)
		if err != nil || len(cycle) < 3 {
			m.Polygons[i].First = None
			m.Polygons[i].Bounds = geom.EmptyAABB()
		}
	}
	for i, e := range m.Edges {
		if e.Polygon != None && m.Polygons[e.Polygon].Degenerate() {
			m.Edges[i].Polygon = None
		}
	}
}
