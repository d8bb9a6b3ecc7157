// internal/decision/tree.go
package decision

import (
	"fmt"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Decision tree.
 *
 * A binary graph of condition nodes ending in chains of action nodes.
 *
 *   ConditionNode: if state[Variable] is one of Values, go to OnMatch,
 *                  otherwise go to Else
 *   ActionNode:    state[Variable] = Value, then continue with FurtherMore
 *
 * A missing branch ends evaluation as a no-op, mirroring a table without a
 * matching row. Values are compared like table cells: the state value is
 * coerced to the node's Kind and compared with value.Same.
 *
 * Validate rejects a tree without a root and any graph with a cycle, so
 * Evaluate always terminates.
 */

// Node is either a *ConditionNode or an *ActionNode.
type Node interface {
	decisionNode()
}

// ConditionNode routes on membership of a variable's value in Values.
type ConditionNode struct {
	Variable string
	Kind     value.Kind
	Values   []value.Value
	OnMatch  Node
	Else     Node
}

// ActionNode assigns Value to Variable, then runs FurtherMore.
type ActionNode struct {
	Variable    string
	Value       value.Value
	FurtherMore *ActionNode
}

func (*ConditionNode) decisionNode() {}
func (*ActionNode) decisionNode()    {}

// Tree is a named decision tree.
type Tree struct {
	Name string
	Root *ConditionNode
}

// Validate checks the tree has a root and no node is reachable from itself.
func (t *Tree) Validate() error {
	if t.Root == nil {
		return fmt.Errorf("%w: tree %q has no root", types.ErrMalformedTree, t.Name)
	}
	onPath := map[Node]bool{}
	var walk func(n Node) error
	walk = func(n Node) error {
		if n == nil || isNilNode(n) {
			return nil
		}
		if onPath[n] {
			return fmt.Errorf("%w: tree %q has a cycle", types.ErrMalformedTree, t.Name)
		}
		onPath[n] = true
		defer delete(onPath, n)

		switch node := n.(type) {
		case *ConditionNode:
			if err := walk(node.OnMatch); err != nil {
				return err
			}
			return walk(node.Else)
		case *ActionNode:
			if node.FurtherMore != nil {
				return walk(node.FurtherMore)
			}
		}
		return nil
	}
	return walk(t.Root)
}

// isNilNode catches typed nil pointers stored in a Node interface.
func isNilNode(n Node) bool {
	switch node := n.(type) {
	case *ConditionNode:
		return node == nil
	case *ActionNode:
		return node == nil
	}
	return false
}

// Evaluate walks the tree against state. Reports whether an action ran.
func (t *Tree) Evaluate(state State) (bool, error) {
	if t.Root == nil {
		return false, fmt.Errorf("%w: tree %q has no root", types.ErrMalformedTree, t.Name)
	}

	var n Node = t.Root
	for n != nil && !isNilNode(n) {
		switch node := n.(type) {
		case *ConditionNode:
			matched, err := node.matches(state)
			if err != nil {
				return false, fmt.Errorf("tree %q: %w", t.Name, err)
			}
			if matched {
				n = node.OnMatch
			} else {
				n = node.Else
			}
		case *ActionNode:
			for a := node; a != nil; a = a.FurtherMore {
				if err := state.Assign(a.Variable, a.Value); err != nil {
					return false, fmt.Errorf("tree %q action %q: %w", t.Name, a.Variable, err)
				}
			}
			return true, nil
		default:
			return false, fmt.Errorf("%w: tree %q has node %T", types.ErrMalformedTree, t.Name, n)
		}
	}
	return false, nil
}

func (c *ConditionNode) matches(state State) (bool, error) {
	v, ok := state.Lookup(c.Variable)
	if !ok {
		return false, fmt.Errorf("%w: condition %q", types.ErrMissingVariable, c.Variable)
	}
	coerced, err := value.Coerce(v, c.Kind)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.Variable, err)
	}
	for _, accepted := range c.Values {
		if value.Same(coerced, accepted) {
			return true, nil
		}
	}
	return false, nil
}
