package mesh

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
)

// Bucket collects polygon indices during categorization.
type Bucket struct {
	Polygons []int
}

// Add appends polygons to the bucket.
func (b *Bucket) Add(polys ...int) {
	b.Polygons = append(b.Polygons, polys...)
}

func (b *Bucket) Len() int {
	return len(b.Polygons)
}

// Buckets routes polygons by category. Several entries may point at the
// same Bucket; identity, not content, tells them apart.
type Buckets [4]*Bucket

// NewBuckets returns four distinct empty buckets.
func NewBuckets() Buckets {
	return Buckets{{}, {}, {}, {}}
}

// Route builds the destination set used by brush intersection.
func Route(inside, aligned, reverseAligned, outside *Bucket) Buckets {
	return Buckets{Inside: inside, Aligned: aligned, ReverseAligned: reverseAligned, Outside: outside}
}

// Shared reports whether every category lands in one bucket.
func (b Buckets) Shared() bool {
	return b[Inside] == b[Aligned] && b[Inside] == b[ReverseAligned] && b[Inside] == b[Outside]
}

// Inverted swaps the inside/outside and aligned/reverse-aligned routes.
func (b Buckets) Inverted() Buckets {
	var out Buckets
	for _, c := range Categories {
		out[c] = b[c.Inverted()]
	}
	return out
}

// Intersect classifies the input polygons against a convex brush given
// by its planes and bounds, splitting them where they straddle the brush.
// Translations place the brush and this mesh in a common frame.
func (m *Mesh) Intersect(cutBounds geom.AABB, cutPlanes []geom.Plane, cutTranslation, translation geom.Vector3, input []int, dst Buckets) error {
	rel := cutTranslation.Sub(translation)
	back := rel.Negate()
	moved := make([]geom.Plane, len(cutPlanes))
	for i, p := range cutPlanes {
		moved[i] = p.Translated(rel)
	}

	for i := len(input) - 1; i >= 0; i-- {
		poly := input[i]
		if m.Polygons[poly].Degenerate() {
			continue
		}

		final := CompletelyInside
		if geom.IsOutsideTranslated(cutBounds, rel, m.Polygons[poly].Bounds) {
			final = CompletelyOutside
		} else {
		planes:
			for k := range cutPlanes {
				switch cutPlanes[k].BoxSideTranslated(m.Polygons[poly].Bounds, back) {
				case geom.Outside:
					final = CompletelyOutside
					break planes
				case geom.Inside:
					continue
				}

				r, outsidePoly, err := m.SplitPolygon(moved[k], poly)
				if err != nil {
					return errors.Wrapf(err, "intersect with brush plane %d", k)
				}
				switch r {
				case CompletelyOutside:
					final = CompletelyOutside
					break planes
				case Split:
					dst[Outside].Add(outsidePoly)
				case CompletelyInside:
				default:
					final = r
				}
			}
		}

		switch final {
		case CompletelyInside:
			dst[Inside].Add(poly)
		case CompletelyOutside:
			dst[Outside].Add(poly)
		case PlaneAligned:
			m.Polygons[poly].Visible = false
			dst[Aligned].Add(poly)
		case PlaneOppositeAligned:
			m.Polygons[poly].Visible = false
			dst[ReverseAligned].Add(poly)
		}
	}
	return nil
}
