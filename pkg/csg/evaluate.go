// Package csg evaluates a CSG tree of convex brushes into one half-edge
// mesh. Every brush mesh is categorized against the whole tree; only the
// polygons that end up on the boundary of the combined solid stay visible.
package csg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chazu/bso/pkg/filter"
	"github.com/chazu/bso/pkg/logging"
	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/tree"
)

// Options configure one evaluation.
type Options struct {
	Cache         *Cache
	Filters       filter.Mode
	FilterOptions filter.Options
}

// Option mutates Options.
type Option func(*Options)

// WithCache reuses base meshes across evaluations of the same tree.
func WithCache(c *Cache) Option {
	return func(o *Options) { o.Cache = c }
}

// WithFilters runs the given post-processing passes on the combined mesh.
func WithFilters(mode filter.Mode) Option {
	return func(o *Options) { o.Filters = mode }
}

// WithFilterOptions overrides the filter tolerances.
func WithFilterOptions(fo filter.Options) Option {
	return func(o *Options) { o.FilterOptions = fo }
}

// Part is the categorized mesh of one processed node.
type Part struct {
	Node tree.NodeID
	Mesh *mesh.Mesh
}

// Result is the outcome of Evaluate.
type Result struct {
	ID     string
	Mesh   *mesh.Mesh
	Parts  []Part
	Filter filter.Report
}

// Evaluate validates t, categorizes every brush against the root and
// combines the pieces relative to the root's translation. It updates the
// derived Translation and Bounds fields of the tree's nodes, so a tree
// must not be evaluated concurrently with itself.
func Evaluate(ctx context.Context, t *tree.Tree, opts ...Option) (*Result, error) {
	o := Options{FilterOptions: filter.DefaultOptions()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Cache == nil {
		o.Cache = NewCache()
	}
	if err := tree.Check(t); err != nil {
		return nil, err
	}

	start := time.Now()
	id := uuid.NewString()
	log := logging.For("csg").WithField("eval", id)

	t.UpdateTranslations(t.Root)
	root := t.Get(t.Root)

	p := &processor{
		ctx:   ctx,
		tree:  t,
		cache: o.Cache,
		log:   log,
	}
	parts, err := p.process(root, t.Brushes(t.Root))
	if err != nil {
		return nil, err
	}

	combined, err := mesh.Combine(root.Translation, toMeshParts(t, parts))
	if err != nil {
		return nil, errors.Wrapf(err, "combine %s", root.Label())
	}

	res := &Result{ID: id, Mesh: combined, Parts: parts}
	if o.Filters != filter.None {
		res.Filter, err = filter.Apply(combined, o.Filters, o.FilterOptions)
		if err != nil {
			return nil, errors.Wrap(err, "filter combined mesh")
		}
	}

	st := combined.Stats()
	log.WithFields(logrus.Fields{
		"polygons": st.Polygons,
		"visible":  st.Visible,
		"edges":    st.Edges,
		"vertices": st.Vertices,
		"duration": time.Since(start),
	}).Info("evaluated")
	return res, nil
}

func toMeshParts(t *tree.Tree, parts []Part) []mesh.Part {
	out := make([]mesh.Part, len(parts))
	for i, part := range parts {
		out[i] = mesh.Part{Mesh: part.Mesh, Translation: t.Get(part.Node).Translation}
	}
	return out
}

type processor struct {
	ctx   context.Context
	tree  *tree.Tree
	cache *Cache
	log   *logrus.Entry
}

// baseMesh returns a private copy of the uncategorized mesh of n. Operator
// nodes are evaluated on their own and combined into one mesh.
func (p *processor) baseMesh(n *tree.Node) (*mesh.Mesh, error) {
	if m, ok := p.cache.get(n.ID); ok {
		return m.Clone(), nil
	}

	var m *mesh.Mesh
	if n.Op == tree.Brush {
		var err error
		m, err = mesh.FromPlanes(n.Planes)
		if err != nil {
			return nil, errors.Wrapf(err, "build %s", n.Label())
		}
		if len(m.PolygonIndices()) == 0 {
			p.log.WithField("node", n.Label()).Warn("brush encloses no volume")
		}
	} else {
		parts, err := p.process(n, p.tree.Brushes(n.ID))
		if err != nil {
			return nil, err
		}
		m, err = mesh.Combine(n.Translation, toMeshParts(p.tree, parts))
		if err != nil {
			return nil, errors.Wrapf(err, "combine %s", n.Label())
		}
	}
	p.cache.put(n.ID, m)
	return m.Clone(), nil
}

// process categorizes the meshes of nodes against root and marks each
// polygon with its final category and visibility.
func (p *processor) process(root *tree.Node, nodes []tree.NodeID) ([]Part, error) {
	parts := make([]Part, 0, len(nodes))
	for _, id := range nodes {
		n := p.tree.Get(id)
		m, err := p.baseMesh(n)
		if err != nil {
			return nil, err
		}
		n.Bounds = m.Bounds
		parts = append(parts, Part{Node: id, Mesh: m})
	}

	p.tree.UpdateBounds(root.ID)

	c := &categorizer{tree: p.tree}
	for _, part := range parts {
		if err := p.ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "evaluation cancelled")
		}
		n := p.tree.Get(part.Node)
		m := part.Mesh

		b := mesh.NewBuckets()
		if err := c.categorize(n, m, root, m.PolygonIndices(), b); err != nil {
			return nil, err
		}
		for _, poly := range b[mesh.Inside].Polygons {
			m.Polygons[poly].Category = mesh.Inside
			m.Polygons[poly].Visible = false
		}
		for _, poly := range b[mesh.Outside].Polygons {
			m.Polygons[poly].Category = mesh.Outside
			m.Polygons[poly].Visible = false
		}
		// Reverse-aligned polygons are flipped when the parts are combined.
		for _, poly := range b[mesh.Aligned].Polygons {
			m.Polygons[poly].Category = mesh.Aligned
		}
		for _, poly := range b[mesh.ReverseAligned].Polygons {
			m.Polygons[poly].Category = mesh.ReverseAligned
		}

		p.log.WithFields(logrus.Fields{
			"node":            n.Label(),
			"inside":          b[mesh.Inside].Len(),
			"aligned":         b[mesh.Aligned].Len(),
			"reverse_aligned": b[mesh.ReverseAligned].Len(),
			"outside":         b[mesh.Outside].Len(),
		}).Debug("categorized")
	}
	return parts, nil
}
