// internal/rules/compile.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Rule validation.
 *
 * Statement trees are checked when a rule joins a ruleset so that a broken
 * definition fails at load time instead of midway through a run.
 *
 * Checks:
 *   1. Rule has a non-blank name
 *   2. No nil node anywhere in the tree (nil inside a list, nil operand)
 *   3. For loops name their counter
 *   4. Operators are valid for their position (binary vs unary)
 *   5. Nesting depth stays within MaxNestingDepth
 *
 * Optional children are allowed to be nil: If.Else, Break.When,
 * Continue.When, Try.OnError, Try.Finally, Switch.Default, Rule.When.
 * Unknown table and tree names are checked by Project.Validate, since a
 * rule can be built before the project it runs in.
 */

// MaxNestingDepth bounds statement nesting within one rule.
const MaxNestingDepth = 64

// ValidateRule checks r for structural errors. Returns ErrInvalidRule.
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", types.ErrInvalidRule)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: rule name is required", types.ErrInvalidRule)
	}
	v := validator{rule: r.Name}
	if r.When != nil {
		v.node(r.When, 1)
	}
	v.list(r.Do, 1)
	return v.err
}

type validator struct {
	rule string
	err  error
}

func (v *validator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf("%w: rule %q: %s", types.ErrInvalidRule, v.rule, fmt.Sprintf(format, args...))
	}
}

func (v *validator) list(nodes []Node, depth int) {
	for i, n := range nodes {
		if n == nil {
			v.fail("nil statement at position %d", i)
			return
		}
		v.node(n, depth)
	}
}

func (v *validator) required(n Node, what string, depth int) {
	if n == nil {
		v.fail("%s is required", what)
		return
	}
	v.node(n, depth)
}

func (v *validator) optional(n Node, depth int) {
	if n != nil {
		v.node(n, depth)
	}
}

func (v *validator) node(n Node, depth int) {
	if v.err != nil {
		return
	}
	if depth > MaxNestingDepth {
		v.fail("nesting deeper than %d", MaxNestingDepth)
		return
	}
	d := depth + 1

	switch n := n.(type) {
	case *Literal, *FactRef, *VariableRef, *ContextRef, *Return, *EvaluateTable, *EvaluateTree:
	case *Binary:
		if n.Op < OpAdd || n.Op > OpOr {
			v.fail("%s is not a binary operator", n.Op)
		}
		v.required(n.Left, "left operand", d)
		v.required(n.Right, "right operand", d)
	case *Unary:
		if n.Op != OpNeg && n.Op != OpNot && n.Op != OpSub {
			v.fail("%s is not a unary operator", n.Op)
		}
		v.required(n.Operand, "operand", d)
	case *Group:
		v.required(n.Base, "group base", d)
		for _, op := range n.Ops {
			if op.Op < OpAdd || op.Op > OpOr {
				v.fail("%s is not a group operator", op.Op)
			}
			v.required(op.Operand, "group operand", d)
		}
	case *Call:
		if strings.TrimSpace(n.Name) == "" {
			v.fail("function name is required")
		}
		v.list(n.Args, d)
	case *ItemOf:
		v.required(n.Collection, "collection", d)
		v.required(n.Index, "index", d)
	case *Path:
		if n.steps == nil && n.Text != "" {
			v.fail("path %q was not built with NewPath", n.Text)
		}
		v.required(n.Root, "path root", d)
		v.list(n.Args, d)
	case *SetFact:
		v.required(n.Value, "fact value", d)
	case *SetVariable:
		v.required(n.Value, "variable value", d)
	case *If:
		v.required(n.Cond, "condition", d)
		v.list(n.Then, d)
		v.list(n.Else, d)
	case *For:
		if strings.TrimSpace(n.Counter) == "" {
			v.fail("for loop counter name is required")
		}
		v.required(n.Count, "iteration count", d)
		v.list(n.Do, d)
	case *While:
		v.required(n.Cond, "condition", d)
		v.list(n.Do, d)
	case *RepeatUntil:
		v.list(n.Do, d)
		v.required(n.Until, "until condition", d)
	case *Switch:
		v.required(n.Selector, "selector", d)
		for _, c := range n.Cases {
			v.list(c.Values, d)
			v.list(c.Do, d)
		}
		v.list(n.Default, d)
	case *Continue:
		v.optional(n.When, d)
	case *Break:
		v.optional(n.When, d)
	case *RaiseError:
		v.required(n.Message, "error message", d)
	case *Try:
		v.list(n.Do, d)
		v.list(n.OnError, d)
		v.list(n.Finally, d)
	case *Sleep:
		v.required(n.Duration, "duration", d)
	case *Print:
		v.required(n.Value, "value", d)
	default:
		v.fail("unsupported node %T", n)
	}
}

// walkRule visits every node of r depth-first until fn returns false.
func walkRule(r *Rule, fn func(Node) bool) {
	if r.When != nil && !walk(r.When, fn) {
		return
	}
	walkList(r.Do, fn)
}

func walkList(nodes []Node, fn func(Node) bool) bool {
	for _, n := range nodes {
		if !walk(n, fn) {
			return false
		}
	}
	return true
}

func walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	switch n := n.(type) {
	case *Binary:
		return walk(n.Left, fn) && walk(n.Right, fn)
	case *Unary:
		return walk(n.Operand, fn)
	case *Group:
		if !walk(n.Base, fn) {
			return false
		}
		for _, op := range n.Ops {
			if !walk(op.Operand, fn) {
				return false
			}
		}
	case *Call:
		return walkList(n.Args, fn)
	case *ItemOf:
		return walk(n.Collection, fn) && walk(n.Index, fn)
	case *Path:
		return walk(n.Root, fn) && walkList(n.Args, fn)
	case *SetFact:
		return walk(n.Value, fn)
	case *SetVariable:
		return walk(n.Value, fn)
	case *If:
		return walk(n.Cond, fn) && walkList(n.Then, fn) && walkList(n.Else, fn)
	case *For:
		return walk(n.Count, fn) && walkList(n.Do, fn)
	case *While:
		return walk(n.Cond, fn) && walkList(n.Do, fn)
	case *RepeatUntil:
		return walkList(n.Do, fn) && walk(n.Until, fn)
	case *Switch:
		if !walk(n.Selector, fn) {
			return false
		}
		for _, c := range n.Cases {
			if !walkList(c.Values, fn) || !walkList(c.Do, fn) {
				return false
			}
		}
		return walkList(n.Default, fn)
	case *Continue:
		return walk(n.When, fn)
	case *Break:
		return walk(n.When, fn)
	case *RaiseError:
		return walk(n.Message, fn)
	case *Try:
		return walkList(n.Do, fn) && walkList(n.OnError, fn) && walkList(n.Finally, fn)
	case *Sleep:
		return walk(n.Duration, fn)
	case *Print:
		return walk(n.Value, fn)
	}
	return true
}
