package primitive

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/mesh"
)

const tol = 1e-9

func brush(t *testing.T, planes []geom.Plane, err error) *mesh.Mesh {
	t.Helper()
	require.NoError(t, err)
	m, err := mesh.FromPlanes(planes)
	require.NoError(t, err)
	require.NoError(t, m.Check())
	showAll(m)
	return m
}

func showAll(m *mesh.Mesh) {
	for i := range m.Polygons {
		m.Polygons[i].Visible = true
	}
}

func assertExtents(t *testing.T, m *mesh.Mesh, lower, upper geom.Vector3) {
	t.Helper()
	lo, hi, ok := m.Extents()
	require.True(t, ok)
	assert.InDelta(t, lower.X, lo.X, tol)
	assert.InDelta(t, lower.Y, lo.Y, tol)
	assert.InDelta(t, lower.Z, lo.Z, tol)
	assert.InDelta(t, upper.X, hi.X, tol)
	assert.InDelta(t, upper.Y, hi.Y, tol)
	assert.InDelta(t, upper.Z, hi.Z, tol)
}

func TestBoxMatchesSdfx(t *testing.T) {
	planes, err := Box(1, 2, 3)
	m := brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), 6)

	s, err := sdf.Box3D(v3.Vec{X: 1, Y: 2, Z: 3}, 0)
	require.NoError(t, err)
	bb := s.BoundingBox()
	size := bb.Max.Sub(bb.Min)

	lo, hi, ok := m.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vector3{}, lo)
	assert.InDelta(t, size.X, hi.X-lo.X, tol)
	assert.InDelta(t, size.Y, hi.Y-lo.Y, tol)
	assert.InDelta(t, size.Z, hi.Z-lo.Z, tol)
}

func TestCuboid(t *testing.T) {
	planes, err := Cuboid(geom.Vec(-1, -2, -3), geom.Vec(1, 2, 3))
	m := brush(t, planes, err)
	assertExtents(t, m, geom.Vec(-1, -2, -3), geom.Vec(1, 2, 3))
}

func TestCylinder(t *testing.T) {
	planes, err := Cylinder(1, 2, 4)
	require.Len(t, planes, 6)
	m := brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), 6)
	assertExtents(t, m, geom.Vec(-1, -1, 0), geom.Vec(1, 1, 2))

	planes, err = Cylinder(1, 1, DefaultCylinderSegments)
	m = brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), 2+DefaultCylinderSegments)
	for _, v := range m.Vertices {
		r := math.Hypot(v.X, v.Y)
		assert.GreaterOrEqual(t, r, 1-tol)
		assert.LessOrEqual(t, r, 1/math.Cos(math.Pi/DefaultCylinderSegments)+tol)
	}
}

func TestCone(t *testing.T) {
	planes, err := Cone(1, 3, 4)
	m := brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), 5)

	_, hi, ok := m.Extents()
	require.True(t, ok)
	assert.InDelta(t, 3, hi.Z, tol)

	for _, poly := range m.PolygonIndices() {
		pts, err := m.PolygonVertices(poly)
		require.NoError(t, err)
		if m.Polygons[poly].Plane == 0 {
			assert.Len(t, pts, 4, "base")
			continue
		}
		assert.Len(t, pts, 3, "side %d", poly)
	}
}

func TestFrustumSidesTouchBothCircles(t *testing.T) {
	const (
		base, top, length = 2.0, 1.0, 1.5
		segments          = 8
	)
	planes, err := Frustum(base, top, length, segments)
	require.NoError(t, err)
	require.Len(t, planes, 2+segments)

	for i, p := range planes[2:] {
		a := 2 * math.Pi * (float64(i) + 0.5) / segments
		assert.InDelta(t, 1, p.Normal().Length(), tol)
		assert.InDelta(t, 0, p.Distance(geom.Vec(base*math.Cos(a), base*math.Sin(a), 0)), tol)
		assert.InDelta(t, 0, p.Distance(geom.Vec(top*math.Cos(a), top*math.Sin(a), length)), tol)
		assert.Negative(t, p.Distance(geom.Vec(0, 0, length/2)))
	}

	m := brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), 2+segments)
}

func TestSphere(t *testing.T) {
	const segments = 6
	planes, err := Sphere(2, segments)
	require.Len(t, planes, segments*(segments-2))
	m := brush(t, planes, err)
	assert.Len(t, m.PolygonIndices(), segments*(segments-2))
	for _, v := range m.Vertices {
		assert.GreaterOrEqual(t, v.Length(), 2-tol)
	}
	for _, p := range planes {
		assert.InDelta(t, 1, p.Normal().Length(), tol)
	}
}

func TestInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		fn   func() ([]geom.Plane, error)
	}{
		{"flat box", func() ([]geom.Plane, error) { return Box(1, 0, 1) }},
		{"nan cuboid", func() ([]geom.Plane, error) { return Cuboid(geom.Vec(math.NaN(), 0, 0), geom.Vec(1, 1, 1)) }},
		{"cylinder segments", func() ([]geom.Plane, error) { return Cylinder(1, 1, 2) }},
		{"negative radius", func() ([]geom.Plane, error) { return Cone(-1, 1, 8) }},
		{"infinite length", func() ([]geom.Plane, error) { return Cylinder(1, math.Inf(1), 8) }},
		{"frustum top", func() ([]geom.Plane, error) { return Frustum(1, -1, 1, 8) }},
		{"sphere segments", func() ([]geom.Plane, error) { return Sphere(1, 3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, geom.ErrInvalidArgument))
		})
	}
}

func TestTransform(t *testing.T) {
	planes, err := Box(1, 2, 1)
	require.NoError(t, err)

	moved := brush(t, Transform(planes, Translation(geom.Vec(2, 0, 0))), nil)
	assertExtents(t, moved, geom.Vec(2, 0, 0), geom.Vec(3, 2, 1))

	turned := brush(t, Transform(planes, Rotation(0, 0, 90)), nil)
	assertExtents(t, turned, geom.Vec(-2, 0, 0), geom.Vec(0, 1, 1))

	m := Translation(geom.Vec(1, 2, 3)).Mul(Rotation(30, 45, 60))
	for _, p := range Transform(planes, m) {
		assert.InDelta(t, 1, p.Normal().Length(), tol)
	}
	// A point on a plane stays on the transformed plane.
	p := planes[0]
	on := geom.Vec(1, 0.5, 0.25)
	require.InDelta(t, 0, p.Distance(on), tol)
	out := Transform([]geom.Plane{p}, m)[0]
	assert.InDelta(t, 0, out.Distance(geom.FromV3(m.MulPosition(on.V3()))), tol)
}
