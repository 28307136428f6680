// Package mesh implements the half-edge polygon mesh produced by brush
// construction and consumed by categorization, combination and the
// post-processing filters. All internal references are indices into the
// mesh's own buffers, so a mesh can be cloned by copying four slices.
package mesh

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/chazu/bso/pkg/geom"
)

// None marks an unset index.
const None = -1

// ErrInvariant marks internal consistency violations. Geometry carrying
// such an error must not be used.
var ErrInvariant = errors.New("mesh: invariant violation")

func violationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}

// Category is the classification of a polygon against a CSG subtree.
type Category int

const (
	Inside Category = iota
	Aligned
	ReverseAligned
	Outside
)

// Categories lists every category in index order.
var Categories = [...]Category{Inside, Aligned, ReverseAligned, Outside}

func (c Category) String() string {
	switch c {
	case Inside:
		return "inside"
	case Aligned:
		return "aligned"
	case ReverseAligned:
		return "reverse-aligned"
	case Outside:
		return "outside"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Inverted swaps inside with outside and aligned with reverse-aligned.
func (c Category) Inverted() Category {
	switch c {
	case Inside:
		return Outside
	case Outside:
		return Inside
	case Aligned:
		return ReverseAligned
	default:
		return Aligned
	}
}

// HalfEdge is a directed edge that ends at Vertex. Twin runs the other
// way along the same segment; Next continues the owning polygon's cycle.
type HalfEdge struct {
	Next    int
	Twin    int
	Vertex  int
	Polygon int
}

func newHalfEdge() HalfEdge {
	return HalfEdge{Next: None, Twin: None, Vertex: None, Polygon: None}
}

// Polygon is one convex face. A First of None means the face is
// degenerate and takes no further part in evaluation.
type Polygon struct {
	First    int
	Plane    int
	Category Category
	Visible  bool
	Bounds   geom.AABB
}

func newPolygon(plane int) Polygon {
	return Polygon{
		First:    None,
		Plane:    plane,
		Category: Aligned,
		Bounds:   geom.EmptyAABB(),
	}
}

// Degenerate reports whether the polygon has no edge cycle.
func (p Polygon) Degenerate() bool {
	return p.First == None
}

// Mesh owns the plane, polygon, half-edge and vertex buffers of a solid.
type Mesh struct {
	Planes   []geom.Plane
	Polygons []Polygon
	Edges    []HalfEdge
	Vertices []geom.Vector3
	Bounds   geom.AABB
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{Bounds: geom.EmptyAABB()}
}

// Clone returns a deep copy that shares no buffers with m.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Planes:   append([]geom.Plane(nil), m.Planes...),
		Polygons: append([]Polygon(nil), m.Polygons...),
		Edges:    append([]HalfEdge(nil), m.Edges...),
		Vertices: append([]geom.Vector3(nil), m.Vertices...),
		Bounds:   m.Bounds,
	}
}

// PolygonIndices returns the indices of all non-degenerate polygons.
func (m *Mesh) PolygonIndices() []int {
	out := make([]int, 0, len(m.Polygons))
	for i, p := range m.Polygons {
		if !p.Degenerate() {
			out = append(out, i)
		}
	}
	return out
}

// VisiblePolygons returns the indices of the polygons that form the
// boundary of the solid.
func (m *Mesh) VisiblePolygons() []int {
	return lo.Filter(m.PolygonIndices(), func(i int, _ int) bool {
		return m.Polygons[i].Visible
	})
}

// Cycle returns the half-edges of a polygon in traversal order. The walk
// is bounded by the edge count, so a broken cycle yields an error.
func (m *Mesh) Cycle(poly int) ([]int, error) {
	p := m.Polygons[poly]
	if p.Degenerate() {
		return nil, nil
	}
	var out []int
	e := p.First
	for {
		if e < 0 || e >= len(m.Edges) {
			return nil, violationf("polygon %d: edge index %d out of range", poly, e)
		}
		out = append(out, e)
		if len(out) > len(m.Edges) {
			return nil, violationf("polygon %d: edge cycle from %d does not close", poly, p.First)
		}
		e = m.Edges[e].Next
		if e == p.First {
			return out, nil
		}
	}
}

// PolygonVertices returns the vertex positions of a polygon in order.
func (m *Mesh) PolygonVertices(poly int) ([]geom.Vector3, error) {
	cycle, err := m.Cycle(poly)
	if err != nil {
		return nil, err
	}
	return lo.Map(cycle, func(e int, _ int) geom.Vector3 {
		return m.Vertices[m.Edges[e].Vertex]
	}), nil
}

// EdgeStarts returns, for every half-edge on a polygon cycle, the vertex
// it starts from. Edges outside any cycle map to None. Together with
// HalfEdge.Vertex this gives each edge's segment without trusting twins,
// whose direction is no longer opposite once a neighbour was flipped.
func (m *Mesh) EdgeStarts() ([]int, error) {
	starts := make([]int, len(m.Edges))
	for i := range starts {
		starts[i] = None
	}
	for _, poly := range m.PolygonIndices() {
		cycle, err := m.Cycle(poly)
		if err != nil {
			return nil, err
		}
		for i, e := range cycle {
			prev := cycle[(i+len(cycle)-1)%len(cycle)]
			starts[e] = m.Edges[prev].Vertex
		}
	}
	return starts, nil
}

// EdgeOwners maps every half-edge on a polygon cycle to that polygon.
func (m *Mesh) EdgeOwners() ([]int, error) {
	owners := make([]int, len(m.Edges))
	for i := range owners {
		owners[i] = None
	}
	for _, poly := range m.PolygonIndices() {
		cycle, err := m.Cycle(poly)
		if err != nil {
			return nil, err
		}
		for _, e := range cycle {
			owners[e] = poly
		}
	}
	return owners, nil
}

// Normal returns the Newell normal of a polygon. Its length is twice the
// polygon area and its direction follows the winding.
func (m *Mesh) Normal(poly int) (geom.Vector3, error) {
	pts, err := m.PolygonVertices(poly)
	if err != nil {
		return geom.Vector3{}, err
	}
	var n geom.Vector3
	for i, a := range pts {
		b := pts[(i+1)%len(pts)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n, nil
}

// Area returns the area of a polygon.
func (m *Mesh) Area(poly int) (float64, error) {
	n, err := m.Normal(poly)
	if err != nil {
		return 0, err
	}
	return n.Length() / 2, nil
}

// Extents returns the exact bounds of the vertices of visible polygons.
// ok is false when no polygon is visible.
func (m *Mesh) Extents() (lower, upper geom.Vector3, ok bool) {
	for _, poly := range m.VisiblePolygons() {
		pts, err := m.PolygonVertices(poly)
		if err != nil {
			continue
		}
		for _, p := range pts {
			if !ok {
				lower, upper, ok = p, p, true
				continue
			}
			lower = geom.Vec(min(lower.X, p.X), min(lower.Y, p.Y), min(lower.Z, p.Z))
			upper = geom.Vec(max(upper.X, p.X), max(upper.Y, p.Y), max(upper.Z, p.Z))
		}
	}
	return lower, upper, ok
}

// UpdatePolygonBounds recomputes the bounds of one polygon from its
// cycle, optionally claiming every cycle edge for it.
func (m *Mesh) UpdatePolygonBounds(poly int, claim bool) error {
	cycle, err := m.Cycle(poly)
	if err != nil {
		return err
	}
	b := geom.EmptyAABB()
	for _, e := range cycle {
		if claim {
			m.Edges[e].Polygon = poly
		}
		if err := b.AddPoint(m.Vertices[m.Edges[e].Vertex]); err != nil {
			return errors.Wrapf(err, "polygon %d bounds", poly)
		}
	}
	m.Polygons[poly].Bounds = b
	return nil
}

// Check validates twin symmetry, cycle closure and edge ownership for
// every non-degenerate polygon.
func (m *Mesh) Check() error {
	for i, e := range m.Edges {
		if e.Twin == None {
			continue
		}
		if e.Twin < 0 || e.Twin >= len(m.Edges) {
			return violationf("edge %d: twin %d out of range", i, e.Twin)
		}
		if m.Edges[e.Twin].Twin != i {
			return violationf("edge %d: twin %d points back at %d", i, e.Twin, m.Edges[e.Twin].Twin)
		}
	}
	for _, poly := range m.PolygonIndices() {
		cycle, err := m.Cycle(poly)
		if err != nil {
			return err
		}
		if len(cycle) < 3 {
			return violationf("polygon %d: cycle has %d edges", poly, len(cycle))
		}
		for _, e := range cycle {
			if m.Edges[e].Polygon != poly {
				return violationf("polygon %d: edge %d is owned by polygon %d", poly, e, m.Edges[e].Polygon)
			}
		}
	}
	return nil
}

// Stats summarises buffer sizes.
type Stats struct {
	Planes, Polygons, Visible, Edges, Vertices int
}

func (m *Mesh) Stats() Stats {
	return Stats{
		Planes:   len(m.Planes),
		Polygons: len(m.PolygonIndices()),
		Visible:  len(m.VisiblePolygons()),
		Edges:    len(m.Edges),
		Vertices: len(m.Vertices),
	}
}
