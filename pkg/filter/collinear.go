package filter

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/mesh"
)

// splitPlan records an edge and the points to splice into it, ordered
// from the edge's start toward its end.
type splitPlan struct {
	edge   int
	points []PointOnLine
}

func applySplits(m *mesh.Mesh, plans []splitPlan) int {
	var n int
	for _, plan := range plans {
		e := plan.edge
		for _, p := range plan.points {
			e = m.SplitEdge(e, p.Position)
			n++
		}
	}
	return n
}

// segment is a half-edge with its endpoints.
type segment struct {
	edge       int
	start, end int
}

// segments returns every half-edge on a polygon cycle that is longer than
// minLength, with its endpoints.
func segments(m *mesh.Mesh, minLength float64) ([]segment, error) {
	starts, err := m.EdgeStarts()
	if err != nil {
		return nil, err
	}
	var out []segment
	for e, s := range starts {
		if s == mesh.None {
			continue
		}
		end := m.Edges[e].Vertex
		if m.Vertices[s].Distance(m.Vertices[end]) < minLength {
			continue
		}
		out = append(out, segment{edge: e, start: s, end: end})
	}
	return out, nil
}

// missingPoint reports a segment endpoint absent from its line.
func missingPoint(m *mesh.Mesh, s segment) error {
	return errors.Wrapf(mesh.ErrInvariant, "edge %d (%v -> %v) not registered on its line",
		s.edge, m.Vertices[s.start], m.Vertices[s.end])
}

// SplitCollinear splices into every edge the vertices of other edges that
// lie on the same infinite line between its endpoints, removing
// T-junctions. It returns the number of inserted vertices.
func SplitCollinear(m *mesh.Mesh, o Options) (int, error) {
	segs, err := segments(m, o.EdgeLengthEpsilon)
	if err != nil {
		return 0, err
	}

	var lines []*Line
	lineOf := make(map[int]*Line, len(segs))
	var registered []segment
	for _, s := range segs {
		if tw := m.Edges[s.edge].Twin; tw != mesh.None && lineOf[tw] != nil {
			continue
		}
		a, b := m.Vertices[s.start], m.Vertices[s.end]
		var line *Line
		for _, l := range lines {
			if l.ContainsSegment(a, b) {
				line = l
				break
			}
		}
		if line == nil {
			line = NewLine(a, b.Sub(a), o.LineTolerance)
			lines = append(lines, line)
		}
		line.Add(s.start, a)
		line.Add(s.end, b)
		lineOf[s.edge] = line
		registered = append(registered, s)
	}

	// Plan first: splitting appends to the edge buffer being scanned.
	var plans []splitPlan
	for _, s := range registered {
		pts, ok := lineOf[s.edge].Between(s.start, s.end)
		if !ok {
			return 0, missingPoint(m, s)
		}
		if len(pts) > 0 {
			plans = append(plans, splitPlan{edge: s.edge, points: pts})
		}
	}
	return applySplits(m, plans), nil
}

// BoundaryEdges returns the half-edges whose polygon is visible while the
// twin's is not, one per twin pair. Edges released by degenerate polygons
// are ignored; an edge claiming a polygon whose cycle does not contain it
// is an invariant violation.
func BoundaryEdges(m *mesh.Mesh) ([]int, error) {
	owners, err := m.EdgeOwners()
	if err != nil {
		return nil, err
	}
	visible := func(e int) bool {
		return e != mesh.None && owners[e] != mesh.None && m.Polygons[owners[e]].Visible
	}
	var out []int
	for e, he := range m.Edges {
		if he.Polygon == mesh.None {
			continue
		}
		if owners[e] == mesh.None {
			return nil, errors.Wrapf(mesh.ErrInvariant, "edge %d of polygon %d lies in no polygon cycle", e, he.Polygon)
		}
		if visible(e) && !visible(he.Twin) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SplitBoundaryCollinear is SplitCollinear restricted to boundary edges:
// each boundary edge spans its own line, the points of every edge on that
// line are collected, and only the boundary edge is split.
func SplitBoundaryCollinear(m *mesh.Mesh, o Options) (int, error) {
	boundary, err := BoundaryEdges(m)
	if err != nil {
		return 0, err
	}
	if len(boundary) == 0 {
		return 0, nil
	}
	starts, err := m.EdgeStarts()
	if err != nil {
		return 0, err
	}

	type inducedLine struct {
		line *Line
		seg  segment
	}
	var lines []inducedLine
	onLine := make(map[int]bool)
	for _, e := range boundary {
		s := segment{edge: e, start: starts[e], end: m.Edges[e].Vertex}
		a, b := m.Vertices[s.start], m.Vertices[s.end]
		if a.Distance(b) < o.EdgeLengthEpsilon {
			continue
		}
		l := NewLine(a, b.Sub(a), o.LineTolerance)
		l.Add(s.start, a)
		l.Add(s.end, b)
		lines = append(lines, inducedLine{line: l, seg: s})
		onLine[e] = true
	}

	segs, err := segments(m, o.EdgeLengthEpsilon)
	if err != nil {
		return 0, err
	}
	for _, s := range segs {
		if tw := m.Edges[s.edge].Twin; tw != mesh.None && onLine[tw] {
			continue
		}
		a, b := m.Vertices[s.start], m.Vertices[s.end]
		for _, il := range lines {
			if il.line.ContainsSegment(a, b) {
				il.line.Add(s.start, a)
				il.line.Add(s.end, b)
			}
		}
	}

	var plans []splitPlan
	for _, il := range lines {
		pts, ok := il.line.Between(il.seg.start, il.seg.end)
		if !ok {
			return 0, missingPoint(m, il.seg)
		}
		if len(pts) > 0 {
			plans = append(plans, splitPlan{edge: il.seg.edge, points: pts})
		}
	}
	return applySplits(m, plans), nil
}

// onSegment reports whether p projects inside [a, b].
func onSegment(p, a, b geom.Vector3) bool {
	d := b.Sub(a)
	t := d.Dot(p.Sub(a))
	return t >= 0 && t <= d.Dot(d)
}
