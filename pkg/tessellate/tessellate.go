// Package tessellate turns the visible polygons of an evaluated mesh into
// render triangles. Every polygon is convex, so a fan from its first
// vertex is enough. One mesh is produced for the whole solid or one per
// categorized part.
package tessellate

import (
	"github.com/deadsy/sdfx/sdf"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/chazu/bso/pkg/csg"
	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/kernel"
	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/tree"
)

// face is one visible polygon ready for output: its vertices in winding
// order and its unit outward normal.
type face struct {
	points []geom.Vector3
	normal geom.Vector3
}

// faces collects the visible polygons of m moved by offset. Visible
// reverse-aligned polygons, which only occur in meshes that were not
// combined, are emitted reversed.
func faces(m *mesh.Mesh, offset geom.Vector3) ([]face, error) {
	var out []face
	for _, poly := range m.VisiblePolygons() {
		pts, err := m.PolygonVertices(poly)
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate polygon %d", poly)
		}
		if len(pts) < 3 {
			continue
		}
		p := m.Polygons[poly]
		n := m.Planes[p.Plane].Normal().Normalize()
		if p.Category == mesh.ReverseAligned {
			pts = lo.Reverse(pts)
			n = n.Negate()
		}
		out = append(out, face{
			points: lo.Map(pts, func(v geom.Vector3, _ int) geom.Vector3 { return v.Add(offset) }),
			normal: n,
		})
	}
	return out, nil
}

// Triangles fans every visible polygon of m into triangles. A polygon with
// n vertices yields n-2 triangles wound like the polygon.
func Triangles(m *mesh.Mesh) ([]sdf.Triangle3, error) {
	fs, err := faces(m, geom.Vector3{})
	if err != nil {
		return nil, err
	}
	var out []sdf.Triangle3
	for _, f := range fs {
		for i := 1; i+1 < len(f.points); i++ {
			out = append(out, sdf.Triangle3{f.points[0].V3(), f.points[i].V3(), f.points[i+1].V3()})
		}
	}
	return out, nil
}

// Mesh flattens the visible polygons of m into a render mesh named name.
// Vertices are emitted per polygon so each carries its face normal.
func Mesh(m *mesh.Mesh, name string) (*kernel.Mesh, error) {
	fs, err := faces(m, geom.Vector3{})
	if err != nil {
		return nil, err
	}
	return flatten(fs, name), nil
}

func flatten(fs []face, name string) *kernel.Mesh {
	out := &kernel.Mesh{PartName: name}
	for _, f := range fs {
		base := uint32(out.VertexCount())
		for _, v := range f.points {
			out.Vertices = append(out.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			out.Normals = append(out.Normals, float32(f.normal.X), float32(f.normal.Y), float32(f.normal.Z))
		}
		for i := 1; i+1 < len(f.points); i++ {
			out.Indices = append(out.Indices, base, base+uint32(i), base+uint32(i+1))
		}
	}
	return out
}

// Tessellate produces one render mesh per categorized part of res,
// expressed in the frame of the combined mesh. Parts with no visible
// polygon are skipped. Mesh names come from the node names, falling back
// to the node id.
func Tessellate(t *tree.Tree, res *csg.Result) ([]*kernel.Mesh, error) {
	if res == nil {
		return nil, nil
	}
	root := t.Get(t.Root)
	if root == nil {
		return nil, errors.Wrap(tree.ErrInvalidTree, "tessellate: tree has no root")
	}

	var meshes []*kernel.Mesh
	for _, part := range res.Parts {
		n := t.Get(part.Node)
		if n == nil {
			return nil, errors.Wrapf(tree.ErrInvalidTree, "tessellate: part node %s", part.Node)
		}
		fs, err := faces(part.Mesh, n.Translation.Sub(root.Translation))
		if err != nil {
			return nil, errors.Wrapf(err, "tessellate %s", n.Label())
		}
		if len(fs) == 0 {
			continue
		}
		name := n.Name
		if name == "" {
			name = n.ID.String()
		}
		meshes = append(meshes, flatten(fs, name))
	}
	return meshes, nil
}
