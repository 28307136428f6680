package geom

import (
	"fmt"
	"math"
)

// Side is the classification of a point or box against a plane.
type Side int

const (
	Intersects Side = iota
	Inside
	Outside
)

func (s Side) String() string {
	switch s {
	case Intersects:
		return "intersects"
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// SideOf classifies a signed distance against DistanceEpsilon.
func SideOf(distance float64) Side {
	switch {
	case distance > DistanceEpsilon:
		return Outside
	case distance < -DistanceEpsilon:
		return Inside
	default:
		return Intersects
	}
}

// Plane is the half-space A*x + B*y + C*z <= D. Points with a negative
// signed distance are inside the solid.
type Plane struct {
	A, B, C, D float64
}

// NewPlane builds a plane from a normal and a distance along it.
func NewPlane(normal Vector3, d float64) Plane {
	return Plane{A: normal.X, B: normal.Y, C: normal.Z, D: d}
}

// PlaneThrough builds the plane with the given normal passing through p.
func PlaneThrough(normal Vector3, p Vector3) Plane {
	return NewPlane(normal, normal.Dot(p))
}

func (p Plane) Normal() Vector3 {
	return Vector3{p.A, p.B, p.C}
}

// Distance returns the signed distance of v, scaled by the normal length.
func (p Plane) Distance(v Vector3) float64 {
	return p.A*v.X + p.B*v.Y + p.C*v.Z - p.D
}

// Side classifies a point.
func (p Plane) Side(v Vector3) Side {
	return SideOf(p.Distance(v))
}

// BoxSide classifies an AABB by testing the corner that lies furthest
// against the normal. Callers treat Outside as "fully outside" only.
func (p Plane) BoxSide(b AABB) Side {
	x := float64(b.MaxX)
	if p.A >= 0 {
		x = float64(b.MinX)
	}
	y := float64(b.MaxY)
	if p.B >= 0 {
		y = float64(b.MinY)
	}
	z := float64(b.MaxZ)
	if p.C >= 0 {
		z = float64(b.MinZ)
	}
	return p.Side(Vector3{x, y, z})
}

// BoxSideTranslated classifies b moved by t. Inside means every corner is
// inside, Outside means every corner is outside.
func (p Plane) BoxSideTranslated(b AABB, t Vector3) Side {
	far := Vector3{float64(b.MaxX), float64(b.MaxY), float64(b.MaxZ)}
	if p.A <= 0 {
		far.X = float64(b.MinX)
	}
	if p.B <= 0 {
		far.Y = float64(b.MinY)
	}
	if p.C <= 0 {
		far.Z = float64(b.MinZ)
	}
	if p.Side(far.Add(t)) == Inside {
		return Inside
	}

	near := Vector3{float64(b.MinX), float64(b.MinY), float64(b.MinZ)}
	if p.A < 0 {
		near.X = float64(b.MaxX)
	}
	if p.B < 0 {
		near.Y = float64(b.MaxY)
	}
	if p.C < 0 {
		near.Z = float64(b.MaxZ)
	}
	if p.Side(near.Add(t)) == Outside {
		return Outside
	}
	return Intersects
}

// Negated returns the complementary half-space.
func (p Plane) Negated() Plane {
	return Plane{-p.A, -p.B, -p.C, -p.D}
}

// Translated moves the plane by t.
func (p Plane) Translated(t Vector3) Plane {
	p.D += p.Normal().Dot(t)
	return p
}

// IsValid reports whether all four coefficients are finite.
func (p Plane) IsValid() bool {
	return isFinite(p.A) && isFinite(p.B) && isFinite(p.C) && isFinite(p.D)
}

// Validate returns ErrInvalidArgument for non-finite planes and for
// planes without a usable normal.
func (p Plane) Validate() error {
	if !p.IsValid() {
		return invalidf("plane %v is not finite", p)
	}
	if p.Normal().Length() < NormalEpsilon {
		return invalidf("plane %v has a zero normal", p)
	}
	return nil
}

// SegmentIntersection returns the point where the segment start-end meets
// the plane, given the signed distances of both endpoints.
func SegmentIntersection(start, end Vector3, startDistance, endDistance float64) Vector3 {
	s := endDistance / (endDistance - startDistance)
	return end.Sub(end.Sub(start).Scale(s))
}

// Intersect3 returns the common point of three planes. The second result
// is false when the planes do not meet in a single point.
func Intersect3(p1, p2, p3 Plane) (Vector3, bool) {
	bc1 := p1.B*p3.C - p3.B*p1.C
	bc2 := p2.B*p1.C - p1.B*p2.C
	bc3 := p3.B*p2.C - p2.B*p3.C

	w := -(p1.A*bc3 + p2.A*bc1 + p3.A*bc2)
	if math.Abs(w) < NormalEpsilon {
		return Vector3{math.NaN(), math.NaN(), math.NaN()}, false
	}

	ad1 := p1.A*p3.D - p3.A*p1.D
	ad2 := p2.A*p1.D - p1.A*p2.D
	ad3 := p3.A*p2.D - p2.A*p3.D

	x := -(p1.D*bc3 + p2.D*bc1 + p3.D*bc2)
	y := -(p1.C*ad3 + p2.C*ad1 + p3.C*ad2)
	z := p1.B*ad3 + p2.B*ad1 + p3.B*ad2

	v := Vector3{x / w, y / w, z / w}
	return v, v.IsValid()
}

func (p Plane) String() string {
	return fmt.Sprintf("[%g %g %g | %g]", p.A, p.B, p.C, p.D)
}
