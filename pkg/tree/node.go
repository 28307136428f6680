// Package tree holds the CSG operator tree: an arena of nodes addressed
// by NodeID, with brushes at the leaves and Boolean operators inside.
// Parent and child relations are indices, so a tree can be cloned by
// copying its node slice.
package tree

import (
	"fmt"

	"github.com/chazu/bso/pkg/geom"
)

// NodeID addresses a node within one Tree.
type NodeID int

// NoNode marks a missing parent or child.
const NoNode NodeID = -1

// Valid reports whether id refers to a node slot.
func (id NodeID) Valid() bool {
	return id >= 0
}

func (id NodeID) String() string {
	if !id.Valid() {
		return "none"
	}
	return fmt.Sprintf("#%d", int(id))
}

// Op enumerates node operators.
type Op int

const (
	Brush       Op = iota // convex leaf bounded by planes
	Addition              // union
	Subtraction           // left minus right
	Common                // intersection
)

func (o Op) String() string {
	switch o {
	case Brush:
		return "brush"
	case Addition:
		return "addition"
	case Subtraction:
		return "subtraction"
	case Common:
		return "common"
	default:
		return "unknown"
	}
}

// IsOperation reports whether o combines two children.
func (o Op) IsOperation() bool {
	return o == Addition || o == Subtraction || o == Common
}

// Node is one element of the tree. Translation is derived from the
// parent chain by UpdateTranslations; LocalTranslation is what callers set.
type Node struct {
	ID     NodeID
	Name   string
	Op     Op
	Parent NodeID
	Left   NodeID
	Right  NodeID

	// Planes bound a brush in its local frame. Unused for operators.
	Planes []geom.Plane

	LocalTranslation geom.Vector3
	Translation      geom.Vector3

	// Bounds is filled during evaluation, relative to Translation.
	Bounds geom.AABB
}

// Label identifies the node in logs and errors.
func (n *Node) Label() string {
	if n.Name != "" {
		return fmt.Sprintf("%s %s %q", n.Op, n.ID, n.Name)
	}
	return fmt.Sprintf("%s %s", n.Op, n.ID)
}

// Children returns the valid child IDs.
func (n *Node) Children() []NodeID {
	var out []NodeID
	if n.Left.Valid() {
		out = append(out, n.Left)
	}
	if n.Right.Valid() {
		out = append(out, n.Right)
	}
	return out
}
