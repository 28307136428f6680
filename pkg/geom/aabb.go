package geom

import (
	"fmt"
	"math"
)

// AABB is an axis-aligned box with integer extents. Insertion rounds the
// minimum down and the maximum up, so the box always contains its points.
type AABB struct {
	MinX, MaxX int
	MinY, MaxY int
	MinZ, MaxZ int
}

// EmptyAABB returns a cleared box that contains nothing.
func EmptyAABB() AABB {
	var b AABB
	b.Clear()
	return b
}

// NewAABB returns the smallest box containing the given extents.
func NewAABB(min, max Vector3) (AABB, error) {
	b := EmptyAABB()
	if err := b.AddPoint(min); err != nil {
		return b, err
	}
	if err := b.AddPoint(max); err != nil {
		return b, err
	}
	return b, nil
}

// Clear resets the box to the empty sentinel state.
func (b *AABB) Clear() {
	b.MinX, b.MinY, b.MinZ = math.MaxInt32, math.MaxInt32, math.MaxInt32
	b.MaxX, b.MaxY, b.MaxZ = math.MinInt32, math.MinInt32, math.MinInt32
}

// IsEmpty reports whether the box has no volume on some axis.
func (b AABB) IsEmpty() bool {
	return b.MinX >= b.MaxX || b.MinY >= b.MaxY || b.MinZ >= b.MaxZ
}

// IsCleared reports whether nothing was added since the last Clear.
func (b AABB) IsCleared() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ
}

// Add grows the box to contain (x, y, z).
func (b *AABB) Add(x, y, z float64) error {
	if !isFinite(x) || !isFinite(y) || !isFinite(z) {
		return invalidf("aabb: cannot add non-finite point (%g, %g, %g)", x, y, z)
	}
	b.MinX = min(b.MinX, int(math.Floor(x)))
	b.MinY = min(b.MinY, int(math.Floor(y)))
	b.MinZ = min(b.MinZ, int(math.Floor(z)))
	b.MaxX = max(b.MaxX, int(math.Ceil(x)))
	b.MaxY = max(b.MaxY, int(math.Ceil(y)))
	b.MaxZ = max(b.MaxZ, int(math.Ceil(z)))
	return nil
}

// AddPoint grows the box to contain v.
func (b *AABB) AddPoint(v Vector3) error {
	return b.Add(v.X, v.Y, v.Z)
}

// Union grows the box to contain o. Cleared boxes contribute nothing.
func (b *AABB) Union(o AABB) {
	if o.IsCleared() {
		return
	}
	b.MinX = min(b.MinX, o.MinX)
	b.MinY = min(b.MinY, o.MinY)
	b.MinZ = min(b.MinZ, o.MinZ)
	b.MaxX = max(b.MaxX, o.MaxX)
	b.MaxY = max(b.MaxY, o.MaxY)
	b.MaxZ = max(b.MaxZ, o.MaxZ)
}

// Translate moves the box by t, rounding outward.
func (b *AABB) Translate(t Vector3) {
	if b.IsCleared() {
		return
	}
	b.MinX = int(math.Floor(float64(b.MinX) + t.X))
	b.MinY = int(math.Floor(float64(b.MinY) + t.Y))
	b.MinZ = int(math.Floor(float64(b.MinZ) + t.Z))
	b.MaxX = int(math.Ceil(float64(b.MaxX) + t.X))
	b.MaxY = int(math.Ceil(float64(b.MaxY) + t.Y))
	b.MaxZ = int(math.Ceil(float64(b.MaxZ) + t.Z))
}

// Translated returns a copy of the box moved by t.
func (b AABB) Translated(t Vector3) AABB {
	b.Translate(t)
	return b
}

// Set overwrites the box with o moved by t.
func (b *AABB) Set(o AABB, t Vector3) {
	*b = o.Translated(t)
}

func (b AABB) Width() int  { return b.MaxX - b.MinX }
func (b AABB) Height() int { return b.MaxY - b.MinY }
func (b AABB) Depth() int  { return b.MaxZ - b.MinZ }

// Center returns the midpoint of the box.
func (b AABB) Center() Vector3 {
	return Vector3{
		float64(b.MinX+b.MaxX) / 2,
		float64(b.MinY+b.MaxY) / 2,
		float64(b.MinZ+b.MaxZ) / 2,
	}
}

// Min and Max return the corners as vectors.
func (b AABB) Min() Vector3 {
	return Vector3{float64(b.MinX), float64(b.MinY), float64(b.MinZ)}
}

func (b AABB) Max() Vector3 {
	return Vector3{float64(b.MaxX), float64(b.MaxY), float64(b.MaxZ)}
}

// IsOutside reports whether the boxes are separated on some axis.
// Touching boxes are not outside each other.
func IsOutside(left, right AABB) bool {
	return left.MaxX < right.MinX || left.MinX > right.MaxX ||
		left.MaxY < right.MinY || left.MinY > right.MaxY ||
		left.MaxZ < right.MinZ || left.MinZ > right.MaxZ
}

// IsOutsideTranslated is IsOutside with left moved by t.
func IsOutsideTranslated(left AABB, t Vector3, right AABB) bool {
	return float64(left.MaxX)+t.X-float64(right.MinX) < 0 ||
		float64(left.MinX)+t.X-float64(right.MaxX) > 0 ||
		float64(left.MaxY)+t.Y-float64(right.MinY) < 0 ||
		float64(left.MinY)+t.Y-float64(right.MaxY) > 0 ||
		float64(left.MaxZ)+t.Z-float64(right.MinZ) < 0 ||
		float64(left.MinZ)+t.Z-float64(right.MaxZ) > 0
}

func (b AABB) String() string {
	if b.IsCleared() {
		return "aabb{cleared}"
	}
	return fmt.Sprintf("aabb{[%d %d] [%d %d] [%d %d]}", b.MinX, b.MaxX, b.MinY, b.MaxY, b.MinZ, b.MaxZ)
}
