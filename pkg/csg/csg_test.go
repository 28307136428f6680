package csg

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/bso/pkg/filter"
	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/logging"
	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/tree"
)

// cube returns the planes of [0, size]^3.
func cube(size float64) []geom.Plane {
	return []geom.Plane{
		geom.NewPlane(geom.Vec(1, 0, 0), size),
		geom.NewPlane(geom.Vec(-1, 0, 0), 0),
		geom.NewPlane(geom.Vec(0, 1, 0), size),
		geom.NewPlane(geom.Vec(0, -1, 0), 0),
		geom.NewPlane(geom.Vec(0, 0, 1), size),
		geom.NewPlane(geom.Vec(0, 0, -1), 0),
	}
}

func pairTree(t *testing.T, op tree.Op, offset geom.Vector3) *tree.Tree {
	t.Helper()
	tr := tree.New()
	a := tr.AddBrush("a", cube(1), geom.Vector3{})
	b := tr.AddBrush("b", cube(1), offset)
	root, err := tr.AddOperation("root", op, a, b, geom.Vector3{})
	require.NoError(t, err)
	require.NoError(t, tr.SetRoot(root))
	return tr
}

func evaluate(t *testing.T, tr *tree.Tree, opts ...Option) *Result {
	t.Helper()
	res, err := Evaluate(context.Background(), tr, opts...)
	require.NoError(t, err)
	require.NoError(t, res.Mesh.Check())
	return res
}

func visibleArea(t *testing.T, m *mesh.Mesh) float64 {
	t.Helper()
	var total float64
	for _, poly := range m.VisiblePolygons() {
		a, err := m.Area(poly)
		require.NoError(t, err)
		total += a
	}
	return total
}

// assertOutwardWinding checks that every visible polygon winds the way its
// plane faces.
func assertOutwardWinding(t *testing.T, m *mesh.Mesh) {
	t.Helper()
	for _, poly := range m.VisiblePolygons() {
		n, err := m.Normal(poly)
		require.NoError(t, err)
		assert.Greater(t, n.Dot(m.Planes[m.Polygons[poly].Plane].Normal()), 0.0, "polygon %d", poly)
	}
}

func TestOrTable(t *testing.T) {
	I, A, R, O := mesh.Inside, mesh.Aligned, mesh.ReverseAligned, mesh.Outside
	want := map[[2]mesh.Category]mesh.Category{
		{I, I}: I, {I, A}: I, {I, R}: I, {I, O}: I,
		{A, I}: I, {A, A}: A, {A, R}: I, {A, O}: A,
		{R, I}: I, {R, A}: I, {R, R}: R, {R, O}: R,
		{O, I}: I, {O, A}: A, {O, R}: R, {O, O}: O,
	}
	require.Len(t, want, 16)
	for k, v := range want {
		assert.Equal(t, v, orTable[k[0]][k[1]], "left %s right %s", k[0], k[1])
	}
}

func TestRightRoute(t *testing.T) {
	b := mesh.NewBuckets()
	I, A, R, O := b[mesh.Inside], b[mesh.Aligned], b[mesh.ReverseAligned], b[mesh.Outside]

	tests := []struct {
		name   string
		left   mesh.Category
		invert bool
		want   mesh.Buckets
	}{
		{"aligned", mesh.Aligned, false, mesh.Route(I, A, I, A)},
		{"reverse aligned", mesh.ReverseAligned, false, mesh.Route(I, I, R, R)},
		{"outside", mesh.Outside, false, mesh.Route(I, A, R, O)},
		{"aligned inverted", mesh.Aligned, true, mesh.Route(A, I, A, I)},
		{"reverse aligned inverted", mesh.ReverseAligned, true, mesh.Route(R, R, I, I)},
		{"outside inverted", mesh.Outside, true, mesh.Route(O, R, A, I)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rightRoute(b, tt.left, tt.invert)
			for _, c := range mesh.Categories {
				assert.Same(t, tt.want[c], got[c], "category %s", c)
			}
		})
	}
}

func TestCategorizeSharedBucketSkipsPlaneTests(t *testing.T) {
	tr := pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0))
	tr.UpdateTranslations(tr.Root)
	a := tr.Get(0)
	m, err := mesh.FromPlanes(a.Planes)
	require.NoError(t, err)
	a.Bounds = m.Bounds
	before := len(m.Polygons)

	sink := &mesh.Bucket{}
	c := &categorizer{tree: tr}
	input := m.PolygonIndices()
	require.NoError(t, c.categorize(a, m, tr.Get(tr.Root), input, mesh.Route(sink, sink, sink, sink)))

	assert.Equal(t, input, sink.Polygons)
	assert.Len(t, m.Polygons, before, "no polygon may be split")
}

func TestUnionOverlapping(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0)))
	m := res.Mesh

	st := m.Stats()
	assert.Equal(t, 20, st.Polygons)
	assert.Equal(t, 14, st.Visible)
	assert.InDelta(t, 8.0, visibleArea(t, m), 1e-9)

	lo, hi, ok := m.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vec(0, 0, 0), lo)
	assert.Equal(t, geom.Vec(1.5, 1, 1), hi)
	assert.Equal(t, geom.AABB{MinX: 0, MaxX: 2, MinY: 0, MaxY: 1, MinZ: 0, MaxZ: 1}, m.Bounds)

	assertOutwardWinding(t, m)
	require.Len(t, res.Parts, 2)
	assert.NotEmpty(t, res.ID)
}

func TestUnionAdjacentHidesSharedFaces(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Addition, geom.Vec(1, 0, 0)))

	assert.Len(t, res.Mesh.VisiblePolygons(), 10)
	assert.InDelta(t, 10.0, visibleArea(t, res.Mesh), 1e-9)

	// The touching faces x=1 of both cubes end up inside the union.
	for _, part := range res.Parts {
		var shared int
		for _, poly := range part.Mesh.PolygonIndices() {
			pts, err := part.Mesh.PolygonVertices(poly)
			require.NoError(t, err)
			onSeam := true
			for _, p := range pts {
				x := p.X
				if part.Node == 1 {
					x += 1
				}
				if x != 1 {
					onSeam = false
				}
			}
			if onSeam {
				shared++
				assert.Equal(t, mesh.Inside, part.Mesh.Polygons[poly].Category)
				assert.False(t, part.Mesh.Polygons[poly].Visible)
			}
		}
		assert.Equal(t, 1, shared, "node %d", part.Node)
	}
}

func TestIntersectionOverlapping(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Common, geom.Vec(0.5, 0, 0)))
	m := res.Mesh

	assert.Len(t, m.VisiblePolygons(), 6)
	assert.InDelta(t, 4.0, visibleArea(t, m), 1e-9)
	lo, hi, ok := m.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vec(0.5, 0, 0), lo)
	assert.Equal(t, geom.Vec(1, 1, 1), hi)
	assertOutwardWinding(t, m)
}

func TestIntersectionDisjointIsEmpty(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Common, geom.Vec(3, 0, 0)))
	assert.Empty(t, res.Mesh.VisiblePolygons())
	_, _, ok := res.Mesh.Extents()
	assert.False(t, ok)
}

func TestSubtractionCavity(t *testing.T) {
	tr := tree.New()
	outer := tr.AddBrush("outer", cube(3), geom.Vector3{})
	inner := tr.AddBrush("inner", cube(1), geom.Vec(1, 1, 1))
	root, err := tr.AddOperation("root", tree.Subtraction, outer, inner, geom.Vector3{})
	require.NoError(t, err)
	require.NoError(t, tr.SetRoot(root))

	res := evaluate(t, tr)
	m := res.Mesh
	visible := m.VisiblePolygons()
	require.Len(t, visible, 12)
	assertOutwardWinding(t, m)

	center := geom.Vec(1.5, 1.5, 1.5)
	var cavity int
	for _, poly := range visible {
		pts, err := m.PolygonVertices(poly)
		require.NoError(t, err)
		var centroid geom.Vector3
		for _, p := range pts {
			centroid = centroid.Add(p)
		}
		centroid = centroid.Scale(1 / float64(len(pts)))
		n := m.Planes[m.Polygons[poly].Plane].Normal()
		toFace := centroid.Sub(center)
		if toFace.Length() < 1 {
			cavity++
			assert.Less(t, n.Dot(toFace), 0.0, "cavity face %d must face the hole's centre", poly)
		} else {
			assert.Greater(t, n.Dot(toFace), 0.0, "outer face %d must face away", poly)
		}
	}
	assert.Equal(t, 6, cavity)
	assert.InDelta(t, 54.0+6.0, visibleArea(t, m), 1e-9)
}

func TestSubtractionDisjointKeepsLeft(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Subtraction, geom.Vec(4, 0, 0)))
	assert.Len(t, res.Mesh.VisiblePolygons(), 6)
	assert.InDelta(t, 6.0, visibleArea(t, res.Mesh), 1e-9)
}

func TestSingleBrush(t *testing.T) {
	tr := tree.New()
	a := tr.AddBrush("a", cube(2), geom.Vec(1, 0, 0))
	require.NoError(t, tr.SetRoot(a))

	res := evaluate(t, tr)
	assert.Len(t, res.Mesh.VisiblePolygons(), 6)
	// The mesh is expressed relative to the root's own translation.
	lo, hi, ok := res.Mesh.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vec(0, 0, 0), lo)
	assert.Equal(t, geom.Vec(2, 2, 2), hi)
}

func TestNestedTranslations(t *testing.T) {
	tr := tree.New()
	a := tr.AddBrush("a", cube(1), geom.Vector3{})
	b := tr.AddBrush("b", cube(1), geom.Vec(1, 0, 0))
	ab, err := tr.AddOperation("ab", tree.Addition, a, b, geom.Vec(0, 0, 5))
	require.NoError(t, err)
	c := tr.AddBrush("c", cube(1), geom.Vector3{})
	root, err := tr.AddOperation("root", tree.Addition, ab, c, geom.Vector3{})
	require.NoError(t, err)
	require.NoError(t, tr.SetRoot(root))

	res := evaluate(t, tr)
	assert.Len(t, res.Mesh.VisiblePolygons(), 16)
	lo, hi, ok := res.Mesh.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vec(0, 0, 0), lo)
	assert.Equal(t, geom.Vec(2, 1, 6), hi)
}

func TestProcessOperatorNodeFromCache(t *testing.T) {
	tr := tree.New()
	a := tr.AddBrush("a", cube(1), geom.Vector3{})
	b := tr.AddBrush("b", cube(1), geom.Vec(1, 0, 0))
	ab, err := tr.AddOp(tree.Addition, a, b)
	require.NoError(t, err)
	c := tr.AddBrush("c", cube(1), geom.Vec(5, 0, 0))
	root, err := tr.AddOp(tree.Subtraction, ab, c)
	require.NoError(t, err)
	require.NoError(t, tr.SetRoot(root))
	tr.UpdateTranslations(root)

	p := &processor{ctx: context.Background(), tree: tr, cache: NewCache(), log: logging.For("csg")}
	parts, err := p.process(tr.Get(root), []tree.NodeID{ab, c})
	require.NoError(t, err)

	combined, err := mesh.Combine(geom.Vector3{}, toMeshParts(tr, parts))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, visibleArea(t, combined), 1e-9)
	assert.Len(t, combined.VisiblePolygons(), 10)
	assert.Equal(t, 4, p.cache.Len(), "brushes a, b, c and the union")
}

func TestCacheReuse(t *testing.T) {
	tr := pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0))
	cache := NewCache()

	first := evaluate(t, tr, WithCache(cache))
	hits, misses := cache.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 2, misses)

	second := evaluate(t, tr, WithCache(cache))
	hits, _ = cache.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, first.Mesh.Stats(), second.Mesh.Stats())
	assert.NotEqual(t, first.ID, second.ID)

	// Cached meshes stay uncategorized.
	base, ok := cache.get(0)
	require.True(t, ok)
	for _, p := range base.Polygons {
		assert.False(t, p.Visible)
	}
}

func TestCacheInvalidate(t *testing.T) {
	tr := pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0))
	cache := NewCache()
	evaluate(t, tr, WithCache(cache))
	cache.put(tr.Root, mesh.New())
	require.Equal(t, 3, cache.Len())

	cache.Invalidate(tr, 1)
	assert.Equal(t, 1, cache.Len())
	_, ok := cache.get(0)
	assert.True(t, ok)

	require.NoError(t, tr.SetPlanes(1, cube(2)))
	res := evaluate(t, tr, WithCache(cache))
	_, hi, _ := res.Mesh.Extents()
	assert.Equal(t, geom.Vec(2.5, 2, 2), hi)

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestEvaluateWithFilters(t *testing.T) {
	res := evaluate(t, pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0)), WithFilters(filter.All))
	assert.Len(t, res.Mesh.VisiblePolygons(), 14)
	assert.InDelta(t, 8.0, visibleArea(t, res.Mesh), 1e-9)
	lo, hi, ok := res.Mesh.Extents()
	require.True(t, ok)
	assert.Equal(t, geom.Vec(0, 0, 0), lo)
	assert.Equal(t, geom.Vec(1.5, 1, 1), hi)
}

func TestEvaluateRejectsInvalidTree(t *testing.T) {
	_, err := Evaluate(context.Background(), tree.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, tree.ErrInvalidTree))
}

func TestEvaluateRejectsNaNPlane(t *testing.T) {
	tr := pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0))
	tr.Get(0).Planes[0].A = math.NaN()
	_, err := Evaluate(context.Background(), tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tree.ErrInvalidTree))
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Evaluate(ctx, pairTree(t, tree.Addition, geom.Vec(0.5, 0, 0)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDegenerateBrushIsEmpty(t *testing.T) {
	tr := tree.New()
	a := tr.AddBrush("a", cube(1), geom.Vector3{})
	// x <= 0 and x >= 1 enclose nothing.
	b := tr.AddBrush("b", []geom.Plane{
		geom.NewPlane(geom.Vec(1, 0, 0), 0),
		geom.NewPlane(geom.Vec(-1, 0, 0), -1),
		geom.NewPlane(geom.Vec(0, 1, 0), 1),
		geom.NewPlane(geom.Vec(0, -1, 0), 0),
		geom.NewPlane(geom.Vec(0, 0, 1), 1),
		geom.NewPlane(geom.Vec(0, 0, -1), 0),
	}, geom.Vector3{})
	root, err := tr.AddOp(tree.Addition, a, b)
	require.NoError(t, err)
	require.NoError(t, tr.SetRoot(root))

	res := evaluate(t, tr)
	assert.Len(t, res.Mesh.VisiblePolygons(), 6)
}
