package csg

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/mesh"
	"github.com/chazu/bso/pkg/tree"
)

// orTable[l][r] is the category of a polygon that the left operand of a
// union classified as l and the right operand as r.
//
//	              right: inside aligned r-aligned outside
//	left inside          I      I       I         I
//	     aligned         I      A       I         A
//	     r-aligned       I      I       R         R
//	     outside         I      A       R         O
var orTable = [4][4]mesh.Category{
	mesh.Inside:         {mesh.Inside, mesh.Inside, mesh.Inside, mesh.Inside},
	mesh.Aligned:        {mesh.Inside, mesh.Aligned, mesh.Inside, mesh.Aligned},
	mesh.ReverseAligned: {mesh.Inside, mesh.Inside, mesh.ReverseAligned, mesh.ReverseAligned},
	mesh.Outside:        {mesh.Inside, mesh.Aligned, mesh.ReverseAligned, mesh.Outside},
}

// rightRoute returns the destinations for polygons the left operand put in
// category lc. With invert the right operand is complemented first.
func rightRoute(b mesh.Buckets, lc mesh.Category, invert bool) mesh.Buckets {
	var out mesh.Buckets
	for _, rc := range mesh.Categories {
		src := rc
		if invert {
			src = rc.Inverted()
		}
		out[rc] = b[orTable[lc][src]]
	}
	return out
}

type categorizer struct {
	tree *tree.Tree
}

// categorize routes input polygons of m, which belongs to processed,
// into b according to their relation with the subtree at node.
func (c *categorizer) categorize(processed *tree.Node, m *mesh.Mesh, node *tree.Node, input []int, b mesh.Buckets) error {
	if b.Shared() {
		b[mesh.Inside].Add(input...)
		return nil
	}

	for {
		if node.ID == processed.ID {
			// The polygons belong to this node. Later brushes sharing the
			// surface turn them invisible again during intersection.
			for _, poly := range input {
				p := &m.Polygons[poly]
				b[p.Category].Add(poly)
				p.Visible = true
			}
			return nil
		}

		if node.Op == tree.Brush {
			if err := m.Intersect(node.Bounds, node.Planes, node.Translation, processed.Translation, input, b); err != nil {
				return errors.Wrapf(err, "categorize %s against %s", processed.Label(), node.Label())
			}
			return nil
		}

		left, right := c.tree.Get(node.Left), c.tree.Get(node.Right)
		outsideLeft := geom.IsOutsideTranslated(processed.Bounds, processed.Translation.Sub(left.Translation), left.Bounds)
		outsideRight := geom.IsOutsideTranslated(processed.Bounds, processed.Translation.Sub(right.Translation), right.Bounds)

		switch node.Op {
		case tree.Addition:
			switch {
			case outsideLeft && outsideRight:
				b[mesh.Outside].Add(input...)
				return nil
			case outsideLeft:
				node = right
				continue
			case outsideRight:
				node = left
				continue
			}
			return c.logicalOr(processed, m, node, input, b, false, false)

		case tree.Common:
			// !(!A || !B)
			if outsideLeft || outsideRight {
				b[mesh.Outside].Add(input...)
				return nil
			}
			return c.logicalOr(processed, m, node, input, b.Inverted(), true, true)

		case tree.Subtraction:
			// !(!A || B)
			if outsideLeft {
				b[mesh.Outside].Add(input...)
				return nil
			}
			if outsideRight {
				node = left
				continue
			}
			return c.logicalOr(processed, m, node, input, b.Inverted(), true, false)

		default:
			return errors.Wrapf(tree.ErrInvalidTree, "categorize against %s", node.Label())
		}
	}
}

// logicalOr categorizes input against the left operand, then sends each
// non-inside group through the right operand with the table's routing.
func (c *categorizer) logicalOr(processed *tree.Node, m *mesh.Mesh, node *tree.Node, input []int, b mesh.Buckets, invertLeft, invertRight bool) error {
	left, right := c.tree.Get(node.Left), c.tree.Get(node.Right)

	// Whatever lies inside the left operand is inside the union.
	groups := mesh.Buckets{mesh.Inside: b[mesh.Inside], mesh.Aligned: {}, mesh.ReverseAligned: {}, mesh.Outside: {}}
	route := groups
	if invertLeft {
		route = groups.Inverted()
	}
	if err := c.categorize(processed, m, left, input, route); err != nil {
		return err
	}

	for _, lc := range [...]mesh.Category{mesh.Aligned, mesh.ReverseAligned, mesh.Outside} {
		if groups[lc].Len() == 0 {
			continue
		}
		if err := c.categorize(processed, m, right, groups[lc].Polygons, rightRoute(b, lc, invertRight)); err != nil {
			return err
		}
	}
	return nil
}
