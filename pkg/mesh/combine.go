package mesh

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
)

// Part is a categorized mesh placed at a translation.
type Part struct {
	Mesh        *Mesh
	Translation geom.Vector3
}

// Combine merges categorized parts into one mesh expressed relative to
// offset. Identical planes and vertices are shared. Visible
// reverse-aligned polygons are flipped and become aligned.
func Combine(offset geom.Vector3, parts []Part) (*Mesh, error) {
	out := New()
	vertexLookup := make(map[geom.Vector3]int)
	planeLookup := make(map[geom.Plane]int)

	vertexIndex := func(v geom.Vector3) int {
		if i, ok := vertexLookup[v]; ok {
			return i
		}
		i := len(out.Vertices)
		out.Vertices = append(out.Vertices, v)
		vertexLookup[v] = i
		return i
	}
	planeIndex := func(p geom.Plane) int {
		if i, ok := planeLookup[p]; ok {
			return i
		}
		i := len(out.Planes)
		out.Planes = append(out.Planes, p)
		planeLookup[p] = i
		return i
	}

	for n, part := range parts {
		src := part.Mesh
		t := part.Translation.Sub(offset)
		edgeBase := len(out.Edges)

		remap := make([]int, len(src.Polygons))
		next := len(out.Polygons)
		for i, p := range src.Polygons {
			remap[i] = None
			if !p.Degenerate() {
				remap[i] = next
				next++
			}
		}

		for _, e := range src.Edges {
			ne := newHalfEdge()
			if e.Vertex != None {
				ne.Vertex = vertexIndex(src.Vertices[e.Vertex].Add(t))
			}
			if e.Next != None {
				ne.Next = e.Next + edgeBase
			}
			if e.Twin != None {
				ne.Twin = e.Twin + edgeBase
			}
			if e.Polygon != None {
				ne.Polygon = remap[e.Polygon]
			}
			out.Edges = append(out.Edges, ne)
		}

		for i, p := range src.Polygons {
			if p.Degenerate() {
				continue
			}
			plane := src.Planes[p.Plane].Translated(t)
			np := Polygon{
				First:    p.First + edgeBase,
				Category: p.Category,
				Visible:  p.Visible,
				Bounds:   p.Bounds.Translated(t),
			}
			flip := np.Visible && np.Category == ReverseAligned
			if flip {
				plane = plane.Negated()
				np.Category = Aligned
			}
			np.Plane = planeIndex(plane)
			out.Polygons = append(out.Polygons, np)

			idx := remap[i]
			if flip {
				if err := out.FlipPolygon(idx); err != nil {
					return nil, errors.Wrapf(err, "combine part %d", n)
				}
			}
			if np.Visible {
				pts, err := out.PolygonVertices(idx)
				if err != nil {
					return nil, errors.Wrapf(err, "combine part %d", n)
				}
				for _, v := range pts {
					if err := out.Bounds.AddPoint(v); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return out, nil
}

// FlipPolygon reverses the winding of a polygon. The cycle is walked
// backwards and every edge takes the vertex of its predecessor, so each
// half-edge keeps its segment and twin.
func (m *Mesh) FlipPolygon(poly int) error {
	cycle, err := m.Cycle(poly)
	if err != nil {
		return err
	}
	n := len(cycle)
	vertices := make([]int, n)
	for i, e := range cycle {
		vertices[i] = m.Edges[e].Vertex
	}
	for i, e := range cycle {
		prev := (i + n - 1) % n
		m.Edges[e].Next = cycle[prev]
		m.Edges[e].Vertex = vertices[prev]
	}
	return nil
}
