// Package sdfx implements kernel.Kernel on signed distance fields from
// github.com/deadsy/sdfx. It meshes by marching cubes and serves as an
// independent reference for the brush kernel: same conventions, no shared
// geometry code.
package sdfx

import (
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chazu/bso/pkg/kernel"
	"github.com/chazu/bso/pkg/logging"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// DefaultCells is the marching cubes resolution along the longest axis.
const DefaultCells = 200

// ErrForeignSolid is returned for solids built by another kernel.
var ErrForeignSolid = errors.New("sdfx: solid was not built by this kernel")

// solid wraps an sdf.SDF3, or the error that prevented building one.
type solid struct {
	s   sdf.SDF3
	err error
}

// BoundingBox returns the axis-aligned bounding box. Failed solids have
// zero bounds.
func (s *solid) BoundingBox() (min, max [3]float64) {
	if s.err != nil {
		return min, max
	}
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Kernel implements kernel.Kernel using sdfx.
type Kernel struct {
	cells int
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithCells sets the marching cubes resolution.
func WithCells(n int) Option {
	return func(k *Kernel) { k.cells = n }
}

// New returns a Kernel.
func New(opts ...Option) *Kernel {
	k := &Kernel{cells: DefaultCells}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func unwrap(s kernel.Solid) *solid {
	if v, ok := s.(*solid); ok && v != nil {
		return v
	}
	return &solid{err: errors.Wrapf(ErrForeignSolid, "%T", s)}
}

func build(s sdf.SDF3, err error, what string) kernel.Solid {
	if err != nil {
		return &solid{err: errors.Wrap(err, what)}
	}
	return &solid{s: s}
}

// fromBase shifts a centred sdfx primitive so it starts at z=0, matching
// the brush kernel.
func fromBase(s sdf.SDF3, err error, height float64, what string) kernel.Solid {
	if err != nil {
		return build(nil, err, what)
	}
	return build(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: height / 2})), nil, what)
}

// Box creates a box with its minimum corner at the origin. sdf.Box3D is
// centred, so it is shifted by half its size.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return build(nil, err, "box")
	}
	return build(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})), nil, "box")
}

// Cylinder spans z from 0 to height. The segments parameter is ignored
// since the field is smooth.
func (k *Kernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	return fromBase(s, err, height, "cylinder")
}

// Cone spans z from 0 to height with its apex on top.
func (k *Kernel) Cone(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cone3D(height, radius, 0, 0)
	return fromBase(s, err, height, "cone")
}

// Sphere is centred on the origin.
func (k *Kernel) Sphere(radius float64, segments int) kernel.Solid {
	s, err := sdf.Sphere3D(radius)
	return build(s, err, "sphere")
}

func (k *Kernel) combine(a, b kernel.Solid, op func(a, b sdf.SDF3) sdf.SDF3) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	switch {
	case sa.err != nil:
		return sa
	case sb.err != nil:
		return sb
	}
	return &solid{s: op(sa.s, sb.s)}
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return k.combine(a, b, func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Union3D(a, b) })
}

// Difference returns the difference a - b.
func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return k.combine(a, b, func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Difference3D(a, b) })
}

// Intersection returns the intersection of two solids.
func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return k.combine(a, b, func(a, b sdf.SDF3) sdf.SDF3 { return sdf.Intersect3D(a, b) })
}

func (k *Kernel) transform(s kernel.Solid, m sdf.M44) kernel.Solid {
	v := unwrap(s)
	if v.err != nil {
		return v
	}
	return &solid{s: sdf.Transform3D(v.s, m)}
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return k.transform(s, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a solid by Euler angles (degrees) around X, then Y, then Z.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.RotateZ(sdf.DtoR(z)).Mul(sdf.RotateY(sdf.DtoR(y))).Mul(sdf.RotateX(sdf.DtoR(x)))
	return k.transform(s, m)
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	v := unwrap(s)
	if v.err != nil {
		return nil, v.err
	}
	if k.cells <= 0 {
		return nil, errors.Errorf("sdfx: invalid cell count %d", k.cells)
	}

	triangles := render.ToTriangles(v.s, render.NewMarchingCubesUniform(k.cells))

	numVerts := len(triangles) * 3
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, numVerts*3),
		Normals:  make([]float32, 0, numVerts*3),
		Indices:  make([]uint32, 0, numVerts),
		PartName: "sdfx",
	}
	for i, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			p := tri[j]
			m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			m.Indices = append(m.Indices, uint32(i*3+j))
		}
	}

	logging.For("sdfx").WithFields(logrus.Fields{
		"cells":     k.cells,
		"triangles": len(triangles),
	}).Debug("meshed")
	return m, nil
}
