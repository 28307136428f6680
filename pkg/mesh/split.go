package mesh

import (
	"fmt"

	"github.com/chazu/bso/pkg/geom"
)

// SplitResult is the outcome of classifying a polygon against a plane.
type SplitResult int

const (
	CompletelyInside SplitResult = iota
	CompletelyOutside
	Split
	PlaneAligned
	PlaneOppositeAligned
)

func (r SplitResult) String() string {
	switch r {
	case CompletelyInside:
		return "completely-inside"
	case CompletelyOutside:
		return "completely-outside"
	case Split:
		return "split"
	case PlaneAligned:
		return "plane-aligned"
	case PlaneOppositeAligned:
		return "plane-opposite-aligned"
	default:
		return fmt.Sprintf("SplitResult(%d)", int(r))
	}
}

// SplitEdge inserts vertex v into edge and its twin. edge keeps the part
// ending at v; the returned new edge runs from v to the old end. A twin
// running the same way as edge, as left behind by FlipPolygon next to an
// unflipped neighbour, is split the same way.
func (m *Mesh) SplitEdge(edge int, v geom.Vector3) int {
	vi := len(m.Vertices)
	m.Vertices = append(m.Vertices, v)
	newEdge := len(m.Edges)

	e := m.Edges[edge]
	twin := e.Twin
	if twin == None {
		m.Edges = append(m.Edges, HalfEdge{Next: e.Next, Twin: None, Vertex: e.Vertex, Polygon: e.Polygon})
		m.Edges[edge].Vertex = vi
		m.Edges[edge].Next = newEdge
		return newEdge
	}

	newTwin := newEdge + 1
	t := m.Edges[twin]
	ne := HalfEdge{Next: e.Next, Vertex: e.Vertex, Polygon: e.Polygon}
	nt := HalfEdge{Next: t.Next, Vertex: t.Vertex, Polygon: t.Polygon}
	if t.Vertex == e.Vertex {
		// Same direction: the halves pair up in order.
		ne.Twin, nt.Twin = newTwin, newEdge
	} else {
		ne.Twin, nt.Twin = twin, edge
		m.Edges[edge].Twin = newTwin
		m.Edges[twin].Twin = newEdge
	}

	m.Edges[edge].Vertex = vi
	m.Edges[edge].Next = newEdge
	m.Edges[twin].Vertex = vi
	m.Edges[twin].Next = newTwin

	m.Edges = append(m.Edges, ne, nt)
	return newEdge
}

// SplitPolygon classifies poly against cut, which must already be in the
// mesh's frame. On Split the polygon keeps its inside part and the index
// of the new outside polygon is returned; otherwise it is None.
func (m *Mesh) SplitPolygon(cut geom.Plane, poly int) (SplitResult, int, error) {
	enter, exit := None, None

	prev := m.Polygons[poly].First
	current := m.Edges[prev].Next
	next := m.Edges[current].Next
	last := next

	prevVertex := m.Vertices[m.Edges[prev].Vertex]
	prevDistance := cut.Distance(prevVertex)
	prevSide := geom.SideOf(prevDistance)

	currentVertex := m.Vertices[m.Edges[current].Vertex]
	currentDistance := cut.Distance(currentVertex)
	currentSide := geom.SideOf(currentDistance)

walk:
	for {
		nextVertex := m.Vertices[m.Edges[next].Vertex]
		nextDistance := cut.Distance(nextVertex)
		nextSide := geom.SideOf(nextDistance)

		if prevSide != currentSide {
			if currentSide != geom.Intersects {
				if prevSide != geom.Intersects {
					// The edge crosses the plane strictly between its ends.
					x := geom.SegmentIntersection(prevVertex, currentVertex, prevDistance, currentDistance)
					m.SplitEdge(current, x)

					if prevSide == geom.Inside {
						exit = current
					} else {
						enter = current
					}

					prevDistance = 0
					prev = m.Edges[prev].Next
					prevSide = geom.Intersects

					if exit != None && enter != None {
						break walk
					}

					current = m.Edges[prev].Next
					currentVertex = m.Vertices[m.Edges[current].Vertex]
					next = m.Edges[current].Next
					nextVertex = m.Vertices[m.Edges[next].Vertex]
				}
			} else {
				if prevSide == geom.Intersects || nextSide == geom.Intersects || prevSide == nextSide {
					// Touching vertex or edge: the neighbours decide.
					if prevSide == geom.Inside || nextSide == geom.Inside {
						prevSide = geom.Inside
						enter, exit = None, None
						break walk
					}
					if prevSide == geom.Outside || nextSide == geom.Outside {
						prevSide = geom.Outside
						enter, exit = None, None
						break walk
					}
				} else if prevSide == geom.Inside {
					exit = current
					if enter != None {
						break walk
					}
				} else {
					enter = current
					if exit != None {
						break walk
					}
				}
			}
		}

		prev = current
		current = next
		next = m.Edges[next].Next

		prevDistance = currentDistance
		currentDistance = nextDistance
		prevSide = currentSide
		currentSide = nextSide
		prevVertex = currentVertex
		currentVertex = nextVertex

		if next == last {
			break
		}
	}

	if (enter == None) != (exit == None) {
		return 0, None, violationf("split polygon %d by plane %v: enter edge %d, exit edge %d, vertex %v",
			poly, cut, enter, exit, currentVertex)
	}

	if enter == None {
		switch prevSide {
		case geom.Inside:
			return CompletelyInside, None, nil
		case geom.Outside:
			return CompletelyOutside, None, nil
		default:
			own := m.Planes[m.Polygons[poly].Plane].Normal()
			if own.Dot(cut.Normal()) > 0 {
				return PlaneAligned, None, nil
			}
			return PlaneOppositeAligned, None, nil
		}
	}

	outsidePoly := len(m.Polygons)
	src := m.Polygons[poly]
	m.Polygons = append(m.Polygons, Polygon{
		Plane:    src.Plane,
		Category: src.Category,
		Visible:  src.Visible,
		Bounds:   geom.EmptyAABB(),
	})

	outsideEdge := len(m.Edges)
	insideEdge := outsideEdge + 1
	m.Edges = append(m.Edges,
		HalfEdge{
			Next:    m.Edges[exit].Next,
			Twin:    insideEdge,
			Vertex:  m.Edges[exit].Vertex,
			Polygon: outsidePoly,
		},
		HalfEdge{
			Next:    m.Edges[enter].Next,
			Twin:    outsideEdge,
			Vertex:  m.Edges[enter].Vertex,
			Polygon: poly,
		},
	)
	m.Edges[exit].Next = insideEdge
	m.Edges[enter].Next = outsideEdge

	m.Polygons[outsidePoly].First = outsideEdge
	m.Polygons[poly].First = insideEdge

	if err := m.UpdatePolygonBounds(outsidePoly, true); err != nil {
		return 0, None, err
	}
	if err := m.UpdatePolygonBounds(poly, false); err != nil {
		return 0, None, err
	}
	return Split, outsidePoly, nil
}
