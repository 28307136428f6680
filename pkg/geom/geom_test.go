package geom

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorOps(t *testing.T) {
	a := Vec(1, 2, 3)
	b := Vec(4, -5, 6)

	assert.Equal(t, Vec(5, -3, 9), a.Add(b))
	assert.Equal(t, Vec(-3, 7, -3), a.Sub(b))
	assert.Equal(t, Vec(2, 4, 6), a.Scale(2))
	assert.Equal(t, 12.0, a.Dot(b))
	assert.Equal(t, Vec(27, 6, -13), a.Cross(b))
	assert.InDelta(t, math.Sqrt(14), a.Length(), 1e-12)
	assert.InDelta(t, 1.0, b.Normalize().Length(), 1e-12)
}

func TestNormalizeZero(t *testing.T) {
	assert.Equal(t, Vector3{}, Vector3{}.Normalize())
}

func TestPerpendicular(t *testing.T) {
	tests := []Vector3{
		Vec(1, 0, 0), Vec(0, 1, 0), Vec(0, 0, 1),
		Vec(1, 2, 3), Vec(-3, 0.5, 2), Vec(0.1, -7, 0.2),
	}
	for _, v := range tests {
		p := v.Perpendicular()
		assert.InDelta(t, 0, p.Dot(v), 1e-12, "perp of %v", v)
		assert.Greater(t, p.Length(), 0.0, "perp of %v", v)
	}
}

func TestV3RoundTrip(t *testing.T) {
	v := Vec(1.5, -2, 3.25)
	assert.Equal(t, v, FromV3(v.V3()))
}

func TestVectorValidate(t *testing.T) {
	require.NoError(t, Vec(1, 2, 3).Validate())
	err := Vec(math.NaN(), 0, 0).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestSideOf(t *testing.T) {
	tests := []struct {
		d    float64
		want Side
	}{
		{0, Intersects},
		{DistanceEpsilon / 2, Intersects},
		{-DistanceEpsilon / 2, Intersects},
		{1e-3, Outside},
		{-1e-3, Inside},
	}
	for _, tt := range tests {
		if got := SideOf(tt.d); got != tt.want {
			t.Errorf("SideOf(%g) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestPlaneDistanceAndTranslate(t *testing.T) {
	p := NewPlane(Vec(1, 0, 0), 2)
	assert.Equal(t, -2.0, p.Distance(Vec(0, 5, 5)))
	assert.Equal(t, Inside, p.Side(Vec(0, 0, 0)))
	assert.Equal(t, Outside, p.Side(Vec(3, 0, 0)))
	assert.Equal(t, Intersects, p.Side(Vec(2, 9, -1)))

	moved := p.Translated(Vec(1, 7, 7))
	assert.Equal(t, 3.0, moved.D)
	assert.Equal(t, Intersects, moved.Side(Vec(3, 0, 0)))

	n := p.Negated()
	assert.Equal(t, Plane{-1, 0, 0, -2}, n)
	assert.Equal(t, Outside, n.Side(Vec(0, 0, 0)))
}

func TestPlaneThrough(t *testing.T) {
	p := PlaneThrough(Vec(0, 1, 0), Vec(4, 3, -2))
	assert.Equal(t, 3.0, p.D)
}

func TestIntersect3(t *testing.T) {
	p, ok := Intersect3(
		NewPlane(Vec(1, 0, 0), 1),
		NewPlane(Vec(0, 1, 0), 2),
		NewPlane(Vec(0, 0, 1), 3),
	)
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-12)
	assert.InDelta(t, 2, p.Y, 1e-12)
	assert.InDelta(t, 3, p.Z, 1e-12)

	// Oblique planes: check that the result lies on all three.
	a := NewPlane(Vec(1, 1, 0).Normalize(), 1)
	b := NewPlane(Vec(0, 1, 1).Normalize(), 2)
	c := NewPlane(Vec(1, 0, 1).Normalize(), -1)
	q, ok := Intersect3(a, b, c)
	require.True(t, ok)
	for _, pl := range []Plane{a, b, c} {
		assert.InDelta(t, 0, pl.Distance(q), 1e-9)
	}
}

func TestIntersect3Parallel(t *testing.T) {
	_, ok := Intersect3(
		NewPlane(Vec(1, 0, 0), 1),
		NewPlane(Vec(1, 0, 0), 2),
		NewPlane(Vec(0, 0, 1), 3),
	)
	assert.False(t, ok)
}

func TestSegmentIntersection(t *testing.T) {
	p := NewPlane(Vec(1, 0, 0), 0.25)
	s, e := Vec(0, 0, 0), Vec(1, 1, 0)
	x := SegmentIntersection(s, e, p.Distance(s), p.Distance(e))
	assert.InDelta(t, 0.25, x.X, 1e-12)
	assert.InDelta(t, 0.25, x.Y, 1e-12)
}

func TestBoxSide(t *testing.T) {
	box, err := NewAABB(Vec(0, 0, 0), Vec(1, 1, 1))
	require.NoError(t, err)

	tests := []struct {
		name  string
		plane Plane
		t     Vector3
		want  Side
	}{
		{"inside", NewPlane(Vec(1, 0, 0), 5), Vector3{}, Inside},
		{"outside", NewPlane(Vec(1, 0, 0), -5), Vector3{}, Outside},
		{"straddle", NewPlane(Vec(1, 0, 0), 0.5), Vector3{}, Intersects},
		{"moved inside", NewPlane(Vec(1, 0, 0), 0.5), Vec(-3, 0, 0), Inside},
		{"moved outside", NewPlane(Vec(-1, 0, 0), 0), Vec(-3, 0, 0), Outside},
		{"touching face", NewPlane(Vec(0, 1, 0), 1), Vector3{}, Intersects},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plane.BoxSideTranslated(box, tt.t); got != tt.want {
				t.Errorf("BoxSideTranslated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAABBAdd(t *testing.T) {
	b := EmptyAABB()
	assert.True(t, b.IsEmpty())
	assert.True(t, b.IsCleared())

	require.NoError(t, b.Add(0.5, -0.5, 2))
	require.NoError(t, b.Add(1.2, 0.1, 2))
	assert.Equal(t, AABB{MinX: 0, MaxX: 2, MinY: -1, MaxY: 1, MinZ: 2, MaxZ: 2}, b)
	assert.True(t, b.IsEmpty(), "flat in z")
	assert.False(t, b.IsCleared())

	err := b.Add(math.Inf(1), 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, 2, b.MaxX, "failed add leaves box untouched")
}

func TestAABBExtentsNonNegative(t *testing.T) {
	pts := []Vector3{Vec(3, 1, 2), Vec(-1, 4, -2), Vec(0.3, 0.3, 0.3), Vec(10, -10, 5.5)}
	b := EmptyAABB()
	for _, p := range pts {
		require.NoError(t, b.AddPoint(p))
		if !b.IsEmpty() {
			assert.GreaterOrEqual(t, b.Width(), 0)
			assert.GreaterOrEqual(t, b.Height(), 0)
			assert.GreaterOrEqual(t, b.Depth(), 0)
		}
	}
	assert.Equal(t, Vec(-1, -10, -2), b.Min())
	assert.Equal(t, Vec(10, 4, 6), b.Max())
}

func TestAABBTranslate(t *testing.T) {
	b, err := NewAABB(Vec(0, 0, 0), Vec(1, 1, 1))
	require.NoError(t, err)

	moved := b.Translated(Vec(0.5, -0.5, 0))
	assert.Equal(t, AABB{MinX: 0, MaxX: 2, MinY: -1, MaxY: 1, MinZ: 0, MaxZ: 1}, moved)

	var c AABB
	c.Set(b, Vec(2, 0, 0))
	assert.Equal(t, 2, c.MinX)
	assert.Equal(t, 3, c.MaxX)

	e := EmptyAABB()
	assert.True(t, e.Translated(Vec(5, 5, 5)).IsCleared())
}

func TestAABBUnion(t *testing.T) {
	a, _ := NewAABB(Vec(0, 0, 0), Vec(1, 1, 1))
	b, _ := NewAABB(Vec(2, -1, 0), Vec(3, 0, 4))
	a.Union(b)
	assert.Equal(t, AABB{MinX: 0, MaxX: 3, MinY: -1, MaxY: 1, MinZ: 0, MaxZ: 4}, a)

	before := a
	a.Union(EmptyAABB())
	assert.Equal(t, before, a)
}

func TestIsOutside(t *testing.T) {
	a, _ := NewAABB(Vec(0, 0, 0), Vec(1, 1, 1))
	b, _ := NewAABB(Vec(1, 0, 0), Vec(2, 1, 1))
	c, _ := NewAABB(Vec(3, 0, 0), Vec(4, 1, 1))

	assert.False(t, IsOutside(a, b), "touching boxes overlap")
	assert.True(t, IsOutside(a, c))
	assert.False(t, IsOutsideTranslated(a, Vec(2.5, 0, 0), c))
	assert.True(t, IsOutsideTranslated(a, Vec(-0.5, 0, 0), b))
	assert.True(t, IsOutsideTranslated(EmptyAABB(), Vector3{}, a))
}
