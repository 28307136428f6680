package tree

import (
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
)

// ErrInvalidTree is returned for malformed trees and bad node handles.
var ErrInvalidTree = errors.New("tree: invalid tree")

// Tree is an arena of CSG nodes with one designated root.
type Tree struct {
	Nodes []*Node
	Root  NodeID
	names map[string]NodeID
}

// New creates an empty tree without a root.
func New() *Tree {
	return &Tree{Root: NoNode, names: make(map[string]NodeID)}
}

func (t *Tree) add(n *Node) NodeID {
	n.ID = NodeID(len(t.Nodes))
	n.Parent, n.Bounds = NoNode, geom.EmptyAABB()
	t.Nodes = append(t.Nodes, n)
	if n.Name != "" {
		t.names[n.Name] = n.ID
	}
	return n.ID
}

// AddBrush adds a leaf bounded by planes, placed at translation relative
// to its future parent.
func (t *Tree) AddBrush(name string, planes []geom.Plane, translation geom.Vector3) NodeID {
	return t.add(&Node{
		Name:             name,
		Op:               Brush,
		Left:             NoNode,
		Right:            NoNode,
		Planes:           append([]geom.Plane(nil), planes...),
		LocalTranslation: translation,
	})
}

// AddOperation adds an operator over two parentless nodes.
func (t *Tree) AddOperation(name string, op Op, left, right NodeID, translation geom.Vector3) (NodeID, error) {
	if !op.IsOperation() {
		return NoNode, errors.Wrapf(ErrInvalidTree, "%s is not a Boolean operator", op)
	}
	if left == right {
		return NoNode, errors.Wrapf(ErrInvalidTree, "%s: both operands are node %s", op, left)
	}
	for _, c := range []NodeID{left, right} {
		n := t.Get(c)
		if n == nil {
			return NoNode, errors.Wrapf(ErrInvalidTree, "%s: operand %s does not exist", op, c)
		}
		if n.Parent.Valid() {
			return NoNode, errors.Wrapf(ErrInvalidTree, "%s: operand %s already belongs to %s", op, c, n.Parent)
		}
		if c == t.Root {
			return NoNode, errors.Wrapf(ErrInvalidTree, "%s: operand %s is the root", op, c)
		}
	}
	id := t.add(&Node{
		Name:             name,
		Op:               op,
		Left:             left,
		Right:            right,
		LocalTranslation: translation,
	})
	t.Nodes[left].Parent = id
	t.Nodes[right].Parent = id
	return id, nil
}

// AddOp is AddOperation without a name or translation.
func (t *Tree) AddOp(op Op, left, right NodeID) (NodeID, error) {
	return t.AddOperation("", op, left, right, geom.Vector3{})
}

// SetRoot designates the node evaluation starts from.
func (t *Tree) SetRoot(id NodeID) error {
	n := t.Get(id)
	if n == nil {
		return errors.Wrapf(ErrInvalidTree, "root %s does not exist", id)
	}
	if n.Parent.Valid() {
		return errors.Wrapf(ErrInvalidTree, "root %s has parent %s", id, n.Parent)
	}
	t.Root = id
	return nil
}

// Get returns the node for id, or nil.
func (t *Tree) Get(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[id]
}

// Lookup returns the node with the given name, or nil.
func (t *Tree) Lookup(name string) *Node {
	id, ok := t.names[name]
	if !ok {
		return nil
	}
	return t.Nodes[id]
}

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.Nodes)
}

// SetTranslation changes a node's local translation.
func (t *Tree) SetTranslation(id NodeID, v geom.Vector3) error {
	n := t.Get(id)
	if n == nil {
		return errors.Wrapf(ErrInvalidTree, "node %s does not exist", id)
	}
	if err := v.Validate(); err != nil {
		return errors.Wrapf(err, "translate %s", n.Label())
	}
	n.LocalTranslation = v
	return nil
}

// SetPlanes replaces the planes of a brush.
func (t *Tree) SetPlanes(id NodeID, planes []geom.Plane) error {
	n := t.Get(id)
	if n == nil || n.Op != Brush {
		return errors.Wrapf(ErrInvalidTree, "node %s is not a brush", id)
	}
	n.Planes = append([]geom.Plane(nil), planes...)
	return nil
}

// CopyBrush adds a new parentless brush with the planes and local
// translation of an existing one.
func (t *Tree) CopyBrush(id NodeID, name string) (NodeID, error) {
	n := t.Get(id)
	if n == nil || n.Op != Brush {
		return NoNode, errors.Wrapf(ErrInvalidTree, "node %s is not a brush", id)
	}
	return t.AddBrush(name, n.Planes, n.LocalTranslation), nil
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		Nodes: make([]*Node, len(t.Nodes)),
		Root:  t.Root,
		names: make(map[string]NodeID, len(t.names)),
	}
	for i, n := range t.Nodes {
		cp := *n
		cp.Planes = append([]geom.Plane(nil), n.Planes...)
		c.Nodes[i] = &cp
	}
	for k, v := range t.names {
		c.names[k] = v
	}
	return c
}

// Brushes returns the brush leaves under id in left-to-right order.
func (t *Tree) Brushes(id NodeID) []NodeID {
	var out []NodeID
	t.walk(id, func(n *Node) {
		if n.Op == Brush {
			out = append(out, n.ID)
		}
	})
	return out
}

// Descendants returns every node under id, id included, in pre-order.
func (t *Tree) Descendants(id NodeID) []NodeID {
	var out []NodeID
	t.walk(id, func(n *Node) {
		out = append(out, n.ID)
	})
	return out
}

func (t *Tree) walk(id NodeID, fn func(*Node)) {
	n := t.Get(id)
	if n == nil {
		return
	}
	fn(n)
	if n.Op.IsOperation() {
		t.walk(n.Left, fn)
		t.walk(n.Right, fn)
	}
}

// UpdateTranslations recomputes world translations below id from the
// translation of id's parent.
func (t *Tree) UpdateTranslations(id NodeID) {
	n := t.Get(id)
	if n == nil {
		return
	}
	n.Translation = n.LocalTranslation
	if p := t.Get(n.Parent); p != nil {
		n.Translation = p.Translation.Add(n.LocalTranslation)
	}
	if n.Op.IsOperation() {
		t.UpdateTranslations(n.Left)
		t.UpdateTranslations(n.Right)
	}
}

// UpdateBounds recomputes operator bounds below id as the union of their
// children's bounds. Brush bounds must already be set.
func (t *Tree) UpdateBounds(id NodeID) {
	n := t.Get(id)
	if n == nil || !n.Op.IsOperation() {
		return
	}
	n.Bounds = geom.EmptyAABB()
	for _, c := range n.Children() {
		t.UpdateBounds(c)
		child := t.Nodes[c]
		n.Bounds.Union(child.Bounds.Translated(child.Translation.Sub(n.Translation)))
	}
}
