// Package primitive builds the bounding plane sets of common solids so
// they can be used as brushes. Curved surfaces are approximated by
// tangent planes; every plane set describes the region n·p <= d.
package primitive

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
)

// Facet counts used when a caller does not pick one.
const (
	DefaultCylinderSegments = 10
	DefaultConeSegments     = 16
	DefaultFrustumSegments  = 50
	DefaultSphereSegments   = 12
)

// Minimum facet counts that still enclose a bounded solid.
const (
	minRoundSegments  = 3
	minSphereSegments = 4
)

// Box returns the planes of an axis-aligned box of the given size whose
// minimum corner is at the origin.
func Box(x, y, z float64) ([]geom.Plane, error) {
	return Cuboid(geom.Vector3{}, geom.Vec(x, y, z))
}

// Cuboid returns the planes of the axis-aligned box spanning min to max,
// ordered +x, -x, +y, -y, +z, -z.
func Cuboid(min, max geom.Vector3) ([]geom.Plane, error) {
	if err := validate(min, max); err != nil {
		return nil, err
	}
	if min.X >= max.X || min.Y >= max.Y || min.Z >= max.Z {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "cuboid: min %v not below max %v", min, max)
	}
	return []geom.Plane{
		geom.NewPlane(geom.Vec(1, 0, 0), max.X),
		geom.NewPlane(geom.Vec(-1, 0, 0), -min.X),
		geom.NewPlane(geom.Vec(0, 1, 0), max.Y),
		geom.NewPlane(geom.Vec(0, -1, 0), -min.Y),
		geom.NewPlane(geom.Vec(0, 0, 1), max.Z),
		geom.NewPlane(geom.Vec(0, 0, -1), -min.Z),
	}, nil
}

// caps returns the planes z <= length and z >= 0.
func caps(length float64) []geom.Plane {
	return []geom.Plane{
		geom.NewPlane(geom.Vec(0, 0, 1), length),
		geom.NewPlane(geom.Vec(0, 0, -1), 0),
	}
}

// Cylinder returns a prism around the z axis from z=0 to z=length whose
// side planes touch the circle of the given radius.
func Cylinder(radius, length float64, segments int) ([]geom.Plane, error) {
	if err := positive("cylinder", radius, length); err != nil {
		return nil, err
	}
	if segments < minRoundSegments {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "cylinder: %d segments", segments)
	}
	planes := caps(length)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		planes = append(planes, geom.NewPlane(geom.Vec(math.Cos(a), math.Sin(a), 0), radius))
	}
	return planes, nil
}

// Cone returns a pyramid with its base of the given radius at z=0 and its
// apex at z=length.
func Cone(radius, length float64, segments int) ([]geom.Plane, error) {
	if err := positive("cone", radius, length); err != nil {
		return nil, err
	}
	if segments < minRoundSegments {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "cone: %d segments", segments)
	}
	planes := []geom.Plane{geom.NewPlane(geom.Vec(0, 0, -1), 0)}
	return append(planes, sides(radius, 0, length, segments)...), nil
}

// Frustum returns a truncated cone from baseRadius at z=0 to topRadius at
// z=length. With a zero topRadius the top cap shrinks to the apex.
func Frustum(baseRadius, topRadius, length float64, segments int) ([]geom.Plane, error) {
	if err := positive("frustum", baseRadius, length); err != nil {
		return nil, err
	}
	if topRadius < 0 || !isFinite(topRadius) {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "frustum: top radius %v", topRadius)
	}
	if segments < minRoundSegments {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "frustum: %d segments", segments)
	}
	return append(caps(length), sides(baseRadius, topRadius, length, segments)...), nil
}

// sides returns planes tangent to the surface joining the base and top
// circles along the generators at the facet mid angles. Each plane lies
// at the distance of its generator line from the origin,
// |x_base × x_top| / |x_top - x_base|.
func sides(baseRadius, topRadius, length float64, segments int) []geom.Plane {
	base := geom.Vec(baseRadius, 0, 0)
	top := geom.Vec(topRadius, 0, length)
	dist := base.Cross(top).Length() / top.Sub(base).Length()

	planes := make([]geom.Plane, 0, segments)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * (float64(i) + 0.5) / float64(segments)
		n := geom.Vec(length*math.Cos(a), length*math.Sin(a), baseRadius-topRadius).Normalize()
		planes = append(planes, geom.NewPlane(n, dist))
	}
	return planes
}

// Sphere returns segments*(segments-2) planes tangent to the sphere of the
// given radius around the origin, on a longitude/latitude grid that
// leaves out the poles.
func Sphere(radius float64, segments int) ([]geom.Plane, error) {
	if err := positive("sphere", radius); err != nil {
		return nil, err
	}
	if segments < minSphereSegments {
		return nil, errors.Wrapf(geom.ErrInvalidArgument, "sphere: %d segments", segments)
	}
	planes := make([]geom.Plane, 0, segments*(segments-2))
	dPhi := 2 * math.Pi / float64(segments)
	dTheta := math.Pi / float64(segments-1)
	for i := 0; i < segments; i++ {
		phi := float64(i) * dPhi
		for j := 1; j < segments-1; j++ {
			theta := float64(j) * dTheta
			n := geom.Vec(math.Sin(theta)*math.Cos(phi), math.Sin(theta)*math.Sin(phi), math.Cos(theta))
			planes = append(planes, geom.NewPlane(n, radius))
		}
	}
	return planes, nil
}

// Rotation returns the rotation by Euler angles in degrees, applied about
// X, then Y, then Z.
func Rotation(x, y, z float64) sdf.M44 {
	return sdf.RotateZ(sdf.DtoR(z)).Mul(sdf.RotateY(sdf.DtoR(y))).Mul(sdf.RotateX(sdf.DtoR(x)))
}

// Translation returns the translation by t.
func Translation(t geom.Vector3) sdf.M44 {
	return sdf.Translate3d(t.V3())
}

// Transform applies a rigid transform to a plane set: each normal is
// rotated and the plane is then moved by the translation part of m.
func Transform(planes []geom.Plane, m sdf.M44) []geom.Plane {
	t := geom.FromV3(m.MulPosition(v3.Vec{}))
	out := make([]geom.Plane, len(planes))
	for i, p := range planes {
		n := geom.FromV3(m.MulPosition(p.Normal().V3())).Sub(t)
		out[i] = geom.NewPlane(n, p.D).Translated(t)
	}
	return out
}

func validate(vs ...geom.Vector3) error {
	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func positive(what string, vs ...float64) error {
	for _, v := range vs {
		if !(v > 0) || !isFinite(v) {
			return errors.Wrapf(geom.ErrInvalidArgument, "%s: dimension %v", what, v)
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
