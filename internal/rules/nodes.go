// internal/rules/nodes.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/sweetbre/internal/hostpath"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Statement tree.
 *
 * Node is a closed set: every node type lives in this file and carries the
 * unexported node() marker, and Context.eval is the single dispatch over
 * them. Nodes are immutable once built and may be shared by concurrent runs.
 *
 * Expression nodes yield a Value:
 *   Literal, FactRef, VariableRef, Binary, Unary, Group, Call, ItemOf, Path,
 *   ContextRef
 *
 * Statement nodes act through side effects and control signals and yield Null:
 *   SetFact, SetVariable, If, For, While, RepeatUntil, Switch, Continue,
 *   Break, Return, RaiseError, Try, Sleep, Print, EvaluateTable, EvaluateTree
 *
 * Any node may appear in a statement list; an expression there is evaluated
 * for its effects (typically a Call) and its value discarded.
 */

// Node is one element of a rule's statement tree.
type Node interface {
	node()
}

// Literal is a constant value.
type Literal struct {
	Value value.Value
}

// FactRef reads a fact. A missing fact is ErrMissingFact.
type FactRef struct {
	Name string
}

// VariableRef reads a variable or an enclosing loop counter.
// A missing variable is ErrMissingVariable.
type VariableRef struct {
	Name string
}

// Binary applies Op to Left and Right. And/Or short-circuit.
type Binary struct {
	Op    Operator
	Left  Node
	Right Node
}

// Unary applies OpNeg or OpNot to Operand.
type Unary struct {
	Op      Operator
	Operand Node
}

// GroupOp is one link of a Group chain.
type GroupOp struct {
	Op      Operator
	Operand Node
}

// Group folds Ops over Base strictly left to right with no precedence:
// base op1 x1 op2 x2 ... is ((base op1 x1) op2 x2).
type Group struct {
	Base Node
	Ops  []GroupOp
}

// Call invokes a registered function after alias resolution.
type Call struct {
	Name string
	Args []Node
}

// ItemOf indexes an array value. Out of bounds is ErrIndexOutOfRange.
type ItemOf struct {
	Collection Node
	Index      Node
}

// Path applies a reflection path to the value of Root.
// Args bind to $n placeholders in the path.
type Path struct {
	Root  Node
	Text  string
	Args  []Node
	steps []hostpath.MemberNode
}

// NewPath parses text once so evaluation never re-parses.
func NewPath(root Node, text string, args ...Node) (*Path, error) {
	steps, err := hostpath.Parse(text)
	if err != nil {
		return nil, err
	}
	return &Path{Root: root, Text: text, Args: args, steps: steps}, nil
}

// MustPath is NewPath for statically known paths. Panics on syntax errors.
func MustPath(root Node, text string, args ...Node) *Path {
	p, err := NewPath(root, text, args...)
	if err != nil {
		panic(err)
	}
	return p
}

// ContextRef yields the running evaluation context as a host object with
// members LastError, StopOnError, Ruleset, Rule, Facts, and Variables.
type ContextRef struct{}

// SetFact writes a fact, creating it if absent.
type SetFact struct {
	Name  string
	Value Node
}

// SetVariable writes a variable, creating it if absent.
// Writing a loop counter is ErrReadOnly.
type SetVariable struct {
	Name  string
	Value Node
}

// If runs Then when Cond is true, else Else.
type If struct {
	Cond Node
	Then []Node
	Else []Node
}

// For runs Do Count times with Counter bound to the zero-based iteration index.
type For struct {
	Counter string
	Count   Node
	Do      []Node
}

// While runs Do as long as Cond is true, testing before each iteration.
type While struct {
	Cond Node
	Do   []Node
}

// RepeatUntil runs Do, then stops once Until is true.
type RepeatUntil struct {
	Do    []Node
	Until Node
}

// Case is one arm of a Switch. It matches when the selector equals any of Values.
type Case struct {
	Values []Node
	Do     []Node
}

// Switch evaluates Selector once and runs the first matching Case, or Default.
// Cases never fall through.
type Switch struct {
	Selector Node
	Cases    []Case
	Default  []Node
}

// Continue skips to the next loop iteration when When is nil or true.
type Continue struct {
	When Node
}

// Break leaves the innermost loop when When is nil or true.
type Break struct {
	When Node
}

// Return ends the current rule. The ruleset continues with the next rule.
type Return struct{}

// RaiseError raises a *RuleError carrying the string value of Message.
type RaiseError struct {
	Message Node
}

// Try runs Do; an error raised inside Do is recorded as the context's last
// error and OnError runs. Finally runs exactly once on every path.
type Try struct {
	Do      []Node
	OnError []Node
	Finally []Node
}

// Sleep blocks for Duration (Integer milliseconds or a Time value).
// A halt ends the wait early.
type Sleep struct {
	Duration Node
}

// Print writes the string value of Value and a newline to the context output.
type Print struct {
	Value Node
}

// EvaluateTable applies the named decision table.
type EvaluateTable struct {
	Name string
}

// EvaluateTree applies the named decision tree.
type EvaluateTree struct {
	Name string
}

func (*Literal) node()       {}
func (*FactRef) node()       {}
func (*VariableRef) node()   {}
func (*Binary) node()        {}
func (*Unary) node()         {}
func (*Group) node()         {}
func (*Call) node()          {}
func (*ItemOf) node()        {}
func (*Path) node()          {}
func (*ContextRef) node()    {}
func (*SetFact) node()       {}
func (*SetVariable) node()   {}
func (*If) node()            {}
func (*For) node()           {}
func (*While) node()         {}
func (*RepeatUntil) node()   {}
func (*Switch) node()        {}
func (*Continue) node()      {}
func (*Break) node()         {}
func (*Return) node()        {}
func (*RaiseError) node()    {}
func (*Try) node()           {}
func (*Sleep) node()         {}
func (*Print) node()         {}
func (*EvaluateTable) node() {}
func (*EvaluateTree) node()  {}

// Lit wraps a native Go value as a Literal.
func Lit(x any) *Literal { return &Literal{Value: value.FromAny(x)} }

// Describe renders a one-line summary of n for errors and debugger events.
func Describe(n Node) string {
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case *Literal:
		return fmt.Sprintf("Literal(%#v)", n.Value)
	case *FactRef:
		return "Fact(" + n.Name + ")"
	case *VariableRef:
		return "Variable(" + n.Name + ")"
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", Describe(n.Left), n.Op, Describe(n.Right))
	case *Unary:
		return fmt.Sprintf("(%s %s)", n.Op, Describe(n.Operand))
	case *Group:
		var b strings.Builder
		b.WriteString("Group(" + Describe(n.Base))
		for _, op := range n.Ops {
			fmt.Fprintf(&b, " %s %s", op.Op, Describe(op.Operand))
		}
		b.WriteString(")")
		return b.String()
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = Describe(a)
		}
		return n.Name + "(" + strings.Join(args, ", ") + ")"
	case *ItemOf:
		return fmt.Sprintf("ItemOf(%s, %s)", Describe(n.Collection), Describe(n.Index))
	case *Path:
		return fmt.Sprintf("Path(%s, %q)", Describe(n.Root), n.Text)
	case *ContextRef:
		return "Context"
	case *SetFact:
		return "SetFact(" + n.Name + ")"
	case *SetVariable:
		return "SetVariable(" + n.Name + ")"
	case *If:
		return "If(" + Describe(n.Cond) + ")"
	case *For:
		return fmt.Sprintf("For(%s, %s)", n.Counter, Describe(n.Count))
	case *While:
		return "While(" + Describe(n.Cond) + ")"
	case *RepeatUntil:
		return "RepeatUntil(" + Describe(n.Until) + ")"
	case *Switch:
		return "Switch(" + Describe(n.Selector) + ")"
	case *Continue:
		return "Continue"
	case *Break:
		return "Break"
	case *Return:
		return "Return"
	case *RaiseError:
		return "RaiseError(" + Describe(n.Message) + ")"
	case *Try:
		return "Try"
	case *Sleep:
		return "Sleep(" + Describe(n.Duration) + ")"
	case *Print:
		return "Print(" + Describe(n.Value) + ")"
	case *EvaluateTable:
		return "EvaluateTable(" + n.Name + ")"
	case *EvaluateTree:
		return "EvaluateTree(" + n.Name + ")"
	}
	return fmt.Sprintf("%T", n)
}
