package filter

import (
	"math"
	"sort"

	"github.com/chazu/bso/pkg/geom"
)

// PointOnLine is a mesh vertex registered on a Line, ordered by Weight,
// its signed distance from the line origin along the direction.
type PointOnLine struct {
	Vertex   int
	Position geom.Vector3
	Weight   float64
}

// Line is the infinite line through Origin along the unit Direction,
// represented as the intersection of two perpendicular planes.
type Line struct {
	Origin    geom.Vector3
	Direction geom.Vector3

	planes    [2]geom.Plane
	tolerance float64
	points    []PointOnLine
	alias     map[int]int
	sorted    bool
}

// NewLine builds the line through origin along direction. Points within
// tolerance of both planes count as on the line.
func NewLine(origin, direction geom.Vector3, tolerance float64) *Line {
	dir := direction.Normalize()
	n1 := dir.Perpendicular().Normalize()
	n2 := dir.Cross(n1).Normalize()
	return &Line{
		Origin:    origin,
		Direction: dir,
		planes:    [2]geom.Plane{geom.PlaneThrough(n1, origin), geom.PlaneThrough(n2, origin)},
		tolerance: tolerance,
		alias:     make(map[int]int),
	}
}

// Contains reports whether p lies on the line.
func (l *Line) Contains(p geom.Vector3) bool {
	return math.Abs(l.planes[0].Distance(p)) <= l.tolerance &&
		math.Abs(l.planes[1].Distance(p)) <= l.tolerance
}

// ContainsSegment reports whether both endpoints lie on the line.
func (l *Line) ContainsSegment(a, b geom.Vector3) bool {
	return l.Contains(a) && l.Contains(b)
}

// Weight returns the signed distance of p's projection from the origin.
func (l *Line) Weight(p geom.Vector3) float64 {
	return l.Direction.Dot(p.Sub(l.Origin))
}

// Project returns the orthogonal projection of p onto the line.
func (l *Line) Project(p geom.Vector3) geom.Vector3 {
	return l.Origin.Add(l.Direction.Scale(l.Weight(p)))
}

// Add registers vertex at position p. A vertex is registered once; a
// vertex coinciding with a registered point shares that point's slot.
func (l *Line) Add(vertex int, p geom.Vector3) {
	if _, ok := l.alias[vertex]; ok {
		return
	}
	for _, q := range l.points {
		if q.Position.Distance(p) <= l.tolerance {
			l.alias[vertex] = q.Vertex
			return
		}
	}
	l.alias[vertex] = vertex
	l.points = append(l.points, PointOnLine{Vertex: vertex, Position: p, Weight: l.Weight(p)})
	l.sorted = false
}

// Points returns the registered points in order along the line.
func (l *Line) Points() []PointOnLine {
	if !l.sorted {
		sort.SliceStable(l.points, func(i, j int) bool {
			return l.points[i].Weight < l.points[j].Weight
		})
		l.sorted = true
	}
	return l.points
}

// Index returns the position of vertex in Points, or -1.
func (l *Line) Index(vertex int) int {
	rep, ok := l.alias[vertex]
	if !ok {
		return -1
	}
	for i, p := range l.Points() {
		if p.Vertex == rep {
			return i
		}
	}
	return -1
}

// Between returns the points strictly between vertices a and b, ordered
// from a toward b.
func (l *Line) Between(a, b int) ([]PointOnLine, bool) {
	ia, ib := l.Index(a), l.Index(b)
	if ia < 0 || ib < 0 {
		return nil, false
	}
	pts := l.Points()
	var out []PointOnLine
	if ia < ib {
		for i := ia + 1; i < ib; i++ {
			out = append(out, pts[i])
		}
	} else {
		for i := ia - 1; i > ib; i-- {
			out = append(out, pts[i])
		}
	}
	return out, true
}
