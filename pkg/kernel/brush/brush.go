// Package brush implements kernel.Kernel on top of the brush CSG
// evaluator. Solids are immutable expressions over convex plane sets;
// ToMesh lowers an expression to a tree.Tree, evaluates it and
// tessellates the visible polygons.
package brush

import (
	"context"
	"math"
	"time"

	"github.com/deadsy/sdfx/sdf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chazu/bso/pkg/csg"
	"github.com/chazu/bso/pkg/filter"
	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/kernel"
	"github.com/chazu/bso/pkg/logging"
	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/primitive"
	"github.com/chazu/bso/pkg/tessellate"
	"github.com/chazu/bso/pkg/tree"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// ErrForeignSolid is returned for solids built by another kernel.
var ErrForeignSolid = errors.New("brush: solid was not built by this kernel")

// Solid is an immutable CSG expression. The zero translation places the
// solid in its parent's frame. A solid carrying an error poisons every
// expression built from it.
type Solid struct {
	op          tree.Op
	name        string
	planes      []geom.Plane // brushes only, in the solid's own frame
	left, right *Solid
	translation geom.Vector3
	err         error
}

func failed(err error) *Solid {
	return &Solid{err: err}
}

// Err returns the construction error of s, if any.
func (s *Solid) Err() error {
	return s.err
}

// Named returns a copy of s carrying name, which labels its tree node.
func (s *Solid) Named(name string) *Solid {
	c := *s
	c.name = name
	return &c
}

// BoundingBox returns a conservative box: exact for brushes and unions
// of brushes, the box intersection for intersections and the left box
// for differences. A failed or empty solid has zero bounds.
func (s *Solid) BoundingBox() (min, max [3]float64) {
	lo, hi, ok := s.bounds()
	if !ok {
		return min, max
	}
	return [3]float64{lo.X, lo.Y, lo.Z}, [3]float64{hi.X, hi.Y, hi.Z}
}

func (s *Solid) bounds() (lo, hi geom.Vector3, ok bool) {
	if s.err != nil {
		return lo, hi, false
	}
	switch s.op {
	case tree.Brush:
		m, err := mesh.FromPlanes(s.planes)
		if err != nil {
			return lo, hi, false
		}
		for _, poly := range m.PolygonIndices() {
			m.Polygons[poly].Visible = true
		}
		lo, hi, ok = m.Extents()
	case tree.Addition:
		lo, hi, ok = s.left.bounds()
		l2, h2, ok2 := s.right.bounds()
		switch {
		case !ok:
			lo, hi, ok = l2, h2, ok2
		case ok2:
			lo, hi = minVec(lo, l2), maxVec(hi, h2)
		}
	case tree.Common:
		lo, hi, ok = s.left.bounds()
		l2, h2, ok2 := s.right.bounds()
		if !ok || !ok2 {
			return lo, hi, false
		}
		lo, hi = maxVec(lo, l2), minVec(hi, h2)
		if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
			return lo, hi, false
		}
	case tree.Subtraction:
		lo, hi, ok = s.left.bounds()
	}
	return lo.Add(s.translation), hi.Add(s.translation), ok
}

func minVec(a, b geom.Vector3) geom.Vector3 {
	return geom.Vec(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Min(a.Z, b.Z))
}

func maxVec(a, b geom.Vector3) geom.Vector3 {
	return geom.Vec(math.Max(a.X, b.X), math.Max(a.Y, b.Y), math.Max(a.Z, b.Z))
}

// rotated returns s rotated about the origin of its parent frame.
func (s *Solid) rotated(m sdf.M44) *Solid {
	if s.err != nil {
		return s
	}
	c := *s
	c.translation = geom.FromV3(m.MulPosition(s.translation.V3()))
	switch s.op {
	case tree.Brush:
		c.planes = primitive.Transform(s.planes, m)
	default:
		c.left = s.left.rotated(m)
		c.right = s.right.rotated(m)
	}
	return &c
}

// Kernel builds brush solids.
type Kernel struct {
	segments      int
	filters       filter.Mode
	filterOptions filter.Options
	name          string
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithSegments sets the facet count of round primitives built without an
// explicit count.
func WithSegments(n int) Option {
	return func(k *Kernel) { k.segments = n }
}

// WithFilters selects the post-processing passes run by ToMesh.
func WithFilters(mode filter.Mode) Option {
	return func(k *Kernel) { k.filters = mode }
}

// WithFilterOptions overrides the filter tolerances.
func WithFilterOptions(o filter.Options) Option {
	return func(k *Kernel) { k.filterOptions = o }
}

// WithName sets the part name of meshes produced by ToMesh.
func WithName(name string) Option {
	return func(k *Kernel) { k.name = name }
}

// New returns a Kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{filterOptions: filter.DefaultOptions(), name: "solid"}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kernel) segmentsOr(n, fallback int) int {
	switch {
	case n > 0:
		return n
	case k.segments > 0:
		return k.segments
	default:
		return fallback
	}
}

func newBrush(planes []geom.Plane) *Solid {
	for i, p := range planes {
		if err := p.Validate(); err != nil {
			return failed(errors.Wrapf(err, "brush plane %d", i))
		}
	}
	return &Solid{op: tree.Brush, planes: append([]geom.Plane(nil), planes...)}
}

// Brush returns the convex solid bounded by planes.
func (k *Kernel) Brush(planes []geom.Plane) kernel.Solid {
	return newBrush(planes)
}

func (k *Kernel) fromPlanes(planes []geom.Plane, err error) *Solid {
	if err != nil {
		return failed(err)
	}
	return newBrush(planes)
}

// Box creates a box with its minimum corner at the origin, so that a
// translation places the corner.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	return k.fromPlanes(primitive.Box(x, y, z))
}

// Cuboid creates the box spanning min to max.
func (k *Kernel) Cuboid(min, max geom.Vector3) kernel.Solid {
	return k.fromPlanes(primitive.Cuboid(min, max))
}

// Cylinder creates a faceted cylinder standing on the origin along +z.
// A non-positive segment count selects the kernel default.
func (k *Kernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	n := k.segmentsOr(segments, primitive.DefaultCylinderSegments)
	return k.fromPlanes(primitive.Cylinder(radius, height, n))
}

// Cone creates a faceted cone with its base on the origin and its apex on
// +z.
func (k *Kernel) Cone(height, radius float64, segments int) kernel.Solid {
	n := k.segmentsOr(segments, primitive.DefaultConeSegments)
	return k.fromPlanes(primitive.Cone(radius, height, n))
}

// Frustum creates a faceted truncated cone along +z.
func (k *Kernel) Frustum(height, baseRadius, topRadius float64, segments int) kernel.Solid {
	n := k.segmentsOr(segments, primitive.DefaultFrustumSegments)
	return k.fromPlanes(primitive.Frustum(baseRadius, topRadius, height, n))
}

// Sphere creates a faceted sphere centred on the origin.
func (k *Kernel) Sphere(radius float64, segments int) kernel.Solid {
	n := k.segmentsOr(segments, primitive.DefaultSphereSegments)
	return k.fromPlanes(primitive.Sphere(radius, n))
}

func unwrap(s kernel.Solid) *Solid {
	b, ok := s.(*Solid)
	if !ok || b == nil {
		return failed(errors.Wrapf(ErrForeignSolid, "%T", s))
	}
	return b
}

func (k *Kernel) combine(op tree.Op, a, b kernel.Solid) kernel.Solid {
	l, r := unwrap(a), unwrap(b)
	for _, s := range []*Solid{l, r} {
		if s.err != nil {
			return s
		}
	}
	return &Solid{op: op, left: l, right: r}
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return k.combine(tree.Addition, a, b)
}

// Difference returns the difference a - b.
func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return k.combine(tree.Subtraction, a, b)
}

// Intersection returns the intersection of two solids.
func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return k.combine(tree.Common, a, b)
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	b := unwrap(s)
	if b.err != nil {
		return b
	}
	t := geom.Vec(x, y, z)
	if err := t.Validate(); err != nil {
		return failed(errors.Wrap(err, "translate"))
	}
	c := *b
	c.translation = c.translation.Add(t)
	return &c
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes,
// about the origin.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	b := unwrap(s)
	if b.err != nil {
		return b
	}
	if err := geom.Vec(x, y, z).Validate(); err != nil {
		return failed(errors.Wrap(err, "rotate"))
	}
	return b.rotated(primitive.Rotation(x, y, z))
}

// Evaluation is a lowered and evaluated solid.
type Evaluation struct {
	Tree   *tree.Tree
	Result *csg.Result
}

// Evaluate lowers s to a tree and evaluates it. The root is placed at the
// origin so the result mesh is in world coordinates.
func (k *Kernel) Evaluate(ctx context.Context, s kernel.Solid) (*Evaluation, error) {
	b := unwrap(s)
	if b.err != nil {
		return nil, b.err
	}
	t := tree.New()
	root, err := lower(t, b, geom.Vector3{}, true)
	if err != nil {
		return nil, err
	}
	if err := t.SetRoot(root); err != nil {
		return nil, err
	}
	res, err := csg.Evaluate(ctx, t,
		csg.WithFilters(k.filters),
		csg.WithFilterOptions(k.filterOptions),
	)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Tree: t, Result: res}, nil
}

// lower adds s to t. The root carries no translation of its own: a root
// brush has it folded into its planes and a root operator hands it to
// its operands.
func lower(t *tree.Tree, s *Solid, extra geom.Vector3, root bool) (tree.NodeID, error) {
	translation := s.translation.Add(extra)
	if s.op == tree.Brush {
		planes := s.planes
		if root {
			planes = make([]geom.Plane, len(s.planes))
			for i, p := range s.planes {
				planes[i] = p.Translated(translation)
			}
			translation = geom.Vector3{}
		}
		return t.AddBrush(s.name, planes, translation), nil
	}

	var down geom.Vector3
	if root {
		down, translation = translation, geom.Vector3{}
	}
	left, err := lower(t, s.left, down, false)
	if err != nil {
		return tree.NoNode, err
	}
	right, err := lower(t, s.right, down, false)
	if err != nil {
		return tree.NoNode, err
	}
	return t.AddOperation(s.name, s.op, left, right, translation)
}

// ToMesh evaluates a solid and tessellates the result.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	start := time.Now()
	ev, err := k.Evaluate(context.Background(), s)
	if err != nil {
		return nil, errors.Wrap(err, "brush: evaluate")
	}
	m, err := tessellate.Mesh(ev.Result.Mesh, k.name)
	if err != nil {
		return nil, errors.Wrap(err, "brush: tessellate")
	}
	logging.For("brush").WithFields(logrus.Fields{
		"eval":      ev.Result.ID,
		"nodes":     ev.Tree.NodeCount(),
		"triangles": m.TriangleCount(),
		"duration":  time.Since(start),
	}).Debug("meshed")
	return m, nil
}
