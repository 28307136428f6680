// Package geom provides the numeric building blocks of the brush
// evaluator: 3D vectors, planes with epsilon-tolerant side tests, and
// the integer bounding boxes used for tree pruning.
package geom

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Epsilon thresholds shared by construction, splitting and filtering.
const (
	DistanceEpsilon      = 1e-6
	NormalEpsilon        = 1.0 / 65535.0
	EdgeLengthEpsilon    = DistanceEpsilon
	PointOnLineTolerance = DistanceEpsilon
	WeldingEpsilon       = DistanceEpsilon
)

// Vector3 is a point or direction in 3D space.
type Vector3 struct {
	X, Y, Z float64
}

// Vec is shorthand for building a Vector3.
func Vec(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// FromV3 converts an sdfx vector.
func FromV3(v v3.Vec) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// V3 converts to an sdfx vector.
func (v Vector3) V3() v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v multiplied by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Negate returns -v.
func (v Vector3) Negate() Vector3 {
	return Vector3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v × o.
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean length of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Distance returns the Euclidean distance between two points.
func (v Vector3) Distance(o Vector3) float64 {
	return v.Sub(o).Length()
}

// Normalize returns the unit vector with the direction of v. A zero
// vector has no direction and is returned unchanged.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Perpendicular returns a vector orthogonal to v (not normalized).
// The smallest component is dropped and the remaining two are swapped
// with one negated.
func (v Vector3) Perpendicular() Vector3 {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	switch {
	case ax <= ay && ax <= az:
		return Vector3{0, -v.Z, v.Y}
	case ay <= ax && ay <= az:
		return Vector3{-v.Z, 0, v.X}
	default:
		return Vector3{-v.Y, v.X, 0}
	}
}

// Lerp interpolates between v (t=0) and o (t=1).
func (v Vector3) Lerp(o Vector3, t float64) Vector3 {
	return v.Add(o.Sub(v).Scale(t))
}

// IsValid reports whether every component is finite.
func (v Vector3) IsValid() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Validate returns ErrInvalidArgument when a component is NaN or infinite.
func (v Vector3) Validate() error {
	if !v.IsValid() {
		return invalidf("vector %v is not finite", v)
	}
	return nil
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
