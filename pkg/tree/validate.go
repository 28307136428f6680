package tree

import (
	"fmt"

	"github.com/pkg/errors"
)

// MinBrushPlanes is the fewest planes that can bound a closed convex solid.
const MinBrushPlanes = 4

// ValidationSeverity indicates whether a finding blocks evaluation.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID // NoNode for tree-level findings
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if !e.NodeID.Valid() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Validate checks the tree structure reachable from the root and returns
// every finding. It never mutates the tree.
func Validate(t *Tree) []ValidationError {
	if !t.Root.Valid() {
		return []ValidationError{{NodeID: NoNode, Message: "tree has no root", Severity: SeverityError}}
	}
	if t.Get(t.Root) == nil {
		return []ValidationError{{
			NodeID:   NoNode,
			Message:  fmt.Sprintf("root %s does not exist", t.Root),
			Severity: SeverityError,
		}}
	}
	var errs []ValidationError
	errs = append(errs, validateAcyclic(t)...)
	if len(errs) > 0 {
		return errs
	}
	errs = append(errs, validateLinks(t)...)
	errs = append(errs, validateBrushes(t)...)
	return errs
}

// Check runs Validate and folds blocking findings into one error wrapping
// ErrInvalidTree.
func Check(t *Tree) error {
	for _, v := range Validate(t) {
		if v.Severity == SeverityError {
			return errors.Wrap(ErrInvalidTree, v.Error())
		}
	}
	return nil
}

// validateAcyclic walks from the root with 3-colour marking. Reaching a
// grey node means a cycle; reaching a black one means a shared subtree.
func validateAcyclic(t *Tree) []ValidationError {
	const (
		white = iota
		grey
		black
	)
	colour := make([]int, len(t.Nodes))
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		n := t.Get(id)
		if n == nil {
			return false
		}
		switch colour[id] {
		case grey:
			errs = append(errs, ValidationError{NodeID: id, Message: "node is part of a cycle", Severity: SeverityError})
			return true
		case black:
			errs = append(errs, ValidationError{NodeID: id, Message: "node is reachable through more than one parent", Severity: SeverityError})
			return true
		}
		colour[id] = grey
		if n.Op.IsOperation() {
			if visit(n.Left) || visit(n.Right) {
				return true
			}
		}
		colour[id] = black
		return false
	}
	visit(t.Root)
	return errs
}

func validateLinks(t *Tree) []ValidationError {
	var errs []ValidationError
	for _, id := range t.Descendants(t.Root) {
		n := t.Nodes[id]
		if n.ID != id {
			errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf("stored id %s differs from slot", n.ID), Severity: SeverityError})
		}
		if id == t.Root && n.Parent.Valid() {
			errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf("root has parent %s", n.Parent), Severity: SeverityError})
		}
		switch {
		case n.Op == Brush:
			if n.Left.Valid() || n.Right.Valid() {
				errs = append(errs, ValidationError{NodeID: id, Message: "brush has children", Severity: SeverityError})
			}
		case n.Op.IsOperation():
			for _, c := range []NodeID{n.Left, n.Right} {
				child := t.Get(c)
				if child == nil {
					errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf("operand %s does not exist", c), Severity: SeverityError})
					continue
				}
				if child.Parent != id {
					errs = append(errs, ValidationError{NodeID: c, Message: fmt.Sprintf("parent is %s, expected %s", child.Parent, id), Severity: SeverityError})
				}
			}
		default:
			errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf("unknown operator %d", int(n.Op)), Severity: SeverityError})
		}
		if err := n.LocalTranslation.Validate(); err != nil {
			errs = append(errs, ValidationError{NodeID: id, Message: "translation is not finite", Severity: SeverityError})
		}
	}
	return errs
}

func validateBrushes(t *Tree) []ValidationError {
	var errs []ValidationError
	for _, id := range t.Brushes(t.Root) {
		n := t.Nodes[id]
		for i, p := range n.Planes {
			if err := p.Validate(); err != nil {
				errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf("plane %d: %v", i, err), Severity: SeverityError})
			}
		}
		if len(n.Planes) < MinBrushPlanes {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("%d planes cannot enclose a volume", len(n.Planes)),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
