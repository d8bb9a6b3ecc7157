// internal/rules/exec_test.go
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/sweetbre/internal/decision"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// openContext opens a context over p's "main" ruleset with empty lists.
func openContext(t *testing.T, p *Project, opts ...Option) *Context {
	t.Helper()
	rt, err := NewRuntime(p, "main", opts...)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v, want nil", err)
	}
	c := rt.Open(nil, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func eq(l, r Node) *Binary { return bin(OpEq, l, r) }
func inc(name string, by Node) *SetVariable {
	return set(name, bin(OpAdd, vr(name), by))
}

func TestExecute_ControlFlow(t *testing.T) {
	tests := []struct {
		name  string
		stmts []Node
		want  value.Value
	}{
		{"for binds zero-based counter", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(5), Do: []Node{inc("out", vr("i"))}},
		}, value.Int(10)},
		{"continue skips to next iteration", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(5), Do: []Node{
				&Continue{When: eq(vr("i"), Lit(2))},
				inc("out", vr("i")),
			}},
		}, value.Int(8)},
		{"break leaves loop", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(5), Do: []Node{
				&Break{When: eq(vr("i"), Lit(3))},
				inc("out", vr("i")),
			}},
		}, value.Int(3)},
		{"break inside switch reaches loop", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(5), Do: []Node{
				&Switch{Selector: vr("i"), Cases: []Case{{Values: []Node{Lit(3)}, Do: []Node{&Break{}}}}},
				inc("out", vr("i")),
			}},
		}, value.Int(3)},
		{"break leaves inner loop only", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(3), Do: []Node{
				&For{Counter: "j", Count: Lit(3), Do: []Node{
					&Break{When: eq(vr("j"), Lit(1))},
					inc("out", Lit(1)),
				}},
			}},
		}, value.Int(3)},
		{"outer counter visible in inner loop", []Node{
			set("out", Lit(0)),
			&For{Counter: "i", Count: Lit(3), Do: []Node{
				&For{Counter: "j", Count: Lit(2), Do: []Node{inc("out", vr("I"))}},
			}},
		}, value.Int(6)},
		{"while tests before body", []Node{
			set("out", Lit(10)),
			&While{Cond: bin(OpLt, vr("out"), Lit(5)), Do: []Node{inc("out", Lit(1))}},
		}, value.Int(10)},
		{"while loops until false", []Node{
			set("out", Lit(0)),
			&While{Cond: bin(OpLt, vr("out"), Lit(5)), Do: []Node{inc("out", Lit(1))}},
		}, value.Int(5)},
		{"repeat until runs body at least once", []Node{
			set("out", Lit(10)),
			&RepeatUntil{Do: []Node{inc("out", Lit(1))}, Until: bin(OpGt, vr("out"), Lit(0))},
		}, value.Int(11)},
		{"repeat until loops while false", []Node{
			set("out", Lit(0)),
			&RepeatUntil{Do: []Node{inc("out", Lit(2))}, Until: bin(OpGte, vr("out"), Lit(7))},
		}, value.Int(8)},
		{"switch runs first match without fallthrough", []Node{
			set("out", Lit("none")),
			&Switch{Selector: Lit(2), Cases: []Case{
				{Values: []Node{Lit(1)}, Do: []Node{set("out", Lit("one"))}},
				{Values: []Node{Lit(2), Lit(3)}, Do: []Node{set("out", Lit("two or three"))}},
				{Values: []Node{Lit(2)}, Do: []Node{set("out", Lit("late"))}},
			}, Default: []Node{set("out", Lit("default"))}},
		}, value.String("two or three")},
		{"switch default", []Node{
			&Switch{Selector: Lit(9), Cases: []Case{
				{Values: []Node{Lit(1)}, Do: []Node{set("out", Lit("one"))}},
			}, Default: []Node{set("out", Lit("default"))}},
		}, value.String("default")},
		{"if else", []Node{
			&If{Cond: Lit(false), Then: []Node{set("out", Lit(1))}, Else: []Node{set("out", Lit(2))}},
		}, value.Int(2)},
		{"group folds left to right", []Node{
			set("out", &Group{Base: Lit(2), Ops: []GroupOp{{OpAdd, Lit(3)}, {OpMul, Lit(4)}}}),
		}, value.Int(20)},
		{"group subtracts left to right", []Node{
			set("out", &Group{Base: Lit(10), Ops: []GroupOp{{OpSub, Lit(2)}, {OpSub, Lit(3)}}}),
		}, value.Int(5)},
		{"and short circuits", []Node{
			set("out", bin(OpAnd, Lit(false), fact("missing"))),
		}, value.Bool(false)},
		{"or short circuits", []Node{
			set("out", bin(OpOr, Lit(true), fact("missing"))),
		}, value.Bool(true)},
		{"group or short circuits", []Node{
			set("out", &Group{Base: Lit(true), Ops: []GroupOp{{OpOr, fact("missing")}, {OpAnd, Lit(true)}}}),
		}, value.Bool(true)},
		{"string concatenation converts operands", []Node{
			set("out", bin(OpAdd, Lit("n="), Lit(3))),
		}, value.String("n=3")},
		{"division yields float", []Node{
			set("out", bin(OpDiv, Lit(9), Lit(3))),
		}, value.Float(3)},
		{"not", []Node{
			set("out", &Unary{Op: OpNot, Operand: eq(Lit(1), Lit(2))}),
		}, value.Bool(true)},
		{"item of", []Node{
			set("out", &ItemOf{Collection: call("array", Lit(1), Lit(2), Lit(3)), Index: Lit(1)}),
		}, value.Int(2)},
		{"alias resolves at call time", []Node{
			set("out", call("LEN", Lit("abc"))),
		}, value.Int(3)},
		{"path over context", []Node{
			set("out", MustPath(&ContextRef{}, "Ruleset")),
		}, value.String("main")},
		{"path over value", []Node{
			set("out", MustPath(Lit("hello"), "ToUpper()")),
		}, value.String("HELLO")},
		{"path with placeholder", []Node{
			set("out", MustPath(Lit("hello"), "Substring($0, 2)", Lit(1))),
		}, value.String("el")},
		{"variables via context", []Node{
			set("x", Lit(1)),
			set("out", MustPath(&ContextRef{}, "Variables.Count")),
		}, value.Int(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := openContext(t, newProject(t))
			state, err := c.Execute(tt.stmts)
			if err != nil {
				t.Fatalf("Execute() error = %v, want nil", err)
			}
			if state != StateRunning {
				t.Errorf("Execute() state = %v, want running", state)
			}
			got, ok := c.Variables().Get("out")
			if !ok {
				t.Fatalf("out not set")
			}
			if !value.Same(got, tt.want) {
				t.Errorf("out = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name string
		stmt Node
		want error
	}{
		{"missing fact", set("x", fact("nope")), types.ErrMissingFact},
		{"missing variable", set("x", vr("nope")), types.ErrMissingVariable},
		{"unknown function", call("nope"), types.ErrUnknownFunction},
		{"arity", call("abs", Lit(1), Lit(2)), types.ErrArityMismatch},
		{"division by zero", bin(OpDiv, Lit(1), Lit(0)), types.ErrDivisionByZero},
		{"type mismatch", bin(OpLt, Lit(true), Lit(1)), types.ErrTypeMismatch},
		{"non-boolean guard", &If{Cond: Lit(1)}, types.ErrTypeMismatch},
		{"index out of range", &ItemOf{Collection: call("array", Lit(1)), Index: Lit(3)}, types.ErrIndexOutOfRange},
		{"member not found", MustPath(&ContextRef{}, "Nope"), types.ErrMemberNotFound},
		{"unknown table", &EvaluateTable{Name: "nope"}, types.ErrUnknownDecision},
		{"raise", &RaiseError{Message: Lit("boom")}, types.ErrUserRaised},
		{"counter is read-only", &For{Counter: "i", Count: Lit(1), Do: []Node{set("i", Lit(5))}}, types.ErrReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := openContext(t, newProject(t))
			state, err := c.Execute([]Node{tt.stmt, set("after", Lit(true))})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.want)
			}
			if state != StateErrorRaised {
				t.Errorf("Execute() state = %v, want error", state)
			}
			if c.Variables().Has("after") {
				t.Errorf("statement after error ran")
			}
		})
	}
}

func TestTry_RaiseErrorSetsLastError(t *testing.T) {
	c := openContext(t, newProject(t))
	stmts := []Node{
		&Try{
			Do: []Node{
				&RaiseError{Message: Lit("test")},
				set("unreached", Lit(true)),
			},
			OnError: []Node{
				set("message", MustPath(&ContextRef{}, "LastError.Message")),
				set("kind", MustPath(&ContextRef{}, "LastError.Kind")),
			},
		},
		set("after", Lit(true)),
	}

	if _, err := c.Execute(stmts); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if got, _ := c.Variables().Get("message"); !value.Same(got, value.String("test")) {
		t.Errorf("LastError.Message = %#v, want string(test)", got)
	}
	if got, _ := c.Variables().Get("kind"); !value.Same(got, value.String(types.ErrUserRaised.Error())) {
		t.Errorf("LastError.Kind = %#v, want %q", got, types.ErrUserRaised.Error())
	}
	if c.Variables().Has("unreached") {
		t.Errorf("statement after RaiseError ran")
	}
	if !c.Variables().Has("after") {
		t.Errorf("statement after Try did not run")
	}
	var re *RuleError
	if !errors.As(c.LastError(), &re) || re.Message != "test" {
		t.Errorf("LastError() = %v, want *RuleError(test)", c.LastError())
	}
}

func TestTry_CatchesNestedStatementErrors(t *testing.T) {
	c := openContext(t, newProject(t))
	stmts := []Node{
		&Try{
			Do: []Node{&For{Counter: "i", Count: Lit(3), Do: []Node{
				&If{Cond: eq(vr("i"), Lit(1)), Then: []Node{set("x", bin(OpMod, Lit(1), Lit(0)))}},
			}}},
			OnError: []Node{set("kind", MustPath(&ContextRef{}, "LastError.Kind"))},
		},
	}

	if _, err := c.Execute(stmts); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if got, _ := c.Variables().Get("kind"); !value.Same(got, value.String(types.ErrDivisionByZero.Error())) {
		t.Errorf("LastError.Kind = %#v, want %q", got, types.ErrDivisionByZero.Error())
	}
}

func TestTry_FinallyErrorOverrides(t *testing.T) {
	c := openContext(t, newProject(t))
	stmts := []Node{&Try{
		Do:      []Node{&Return{}},
		Finally: []Node{&RaiseError{Message: Lit("from finally")}},
	}}

	state, err := c.Execute(stmts)
	if state != StateErrorRaised || err == nil || err.Error() != "from finally" {
		t.Errorf("Execute() = %v, %v, want error, from finally", state, err)
	}
}

func TestProperty_FinallyRunsOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("finally runs exactly once whether the body or handler raise", prop.ForAll(
		func(bodyRaises, handlerRaises bool) bool {
			p := NewProject("p")
			if err := p.AddRuleset(NewRuleset("main")); err != nil {
				return false
			}
			rt, err := NewRuntime(p, "main")
			if err != nil {
				return false
			}
			c := rt.Open(nil, nil)
			defer c.Close()
			c.Variables().Set("count", value.Int(0))

			try := &Try{Finally: []Node{inc("count", Lit(1))}}
			if bodyRaises {
				try.Do = []Node{&RaiseError{Message: Lit("body")}}
			}
			if handlerRaises {
				try.OnError = []Node{&RaiseError{Message: Lit("handler")}}
			}

			_, err = c.Execute([]Node{try})
			count, _ := c.Variables().Get("count")
			wantErr := bodyRaises && handlerRaises
			return value.Same(count, value.Int(1)) && (err != nil) == wantErr
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProperty_ListStopsAtNonRunning(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	stoppers := []func() Node{
		func() Node { return &Break{} },
		func() Node { return &Continue{} },
		func() Node { return &Return{} },
		func() Node { return &RaiseError{Message: Lit("stop")} },
	}

	properties.Property("no sibling after a non-running statement evaluates", prop.ForAll(
		func(n, k, kind int) bool {
			k %= n
			stmts := make([]Node, n)
			for i := range stmts {
				stmts[i] = set(fmt.Sprintf("s%d", i), Lit(true))
			}
			stmts[k] = stoppers[kind]()

			p := NewProject("p")
			if err := p.AddRuleset(NewRuleset("main")); err != nil {
				return false
			}
			rt, err := NewRuntime(p, "main")
			if err != nil {
				return false
			}
			c := rt.Open(nil, nil)
			defer c.Close()

			state, _ := c.Execute([]Node{&If{Cond: Lit(true), Then: stmts}})
			if state == StateRunning {
				return false
			}
			for i := range n {
				if i == k {
					continue
				}
				if c.Variables().Has(fmt.Sprintf("s%d", i)) != (i < k) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 7),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}

func TestDecisionStatements(t *testing.T) {
	p := newProject(t)
	table := decision.NewTable("step",
		[]decision.Column{{Name: "state", Kind: value.KindInteger}},
		[]decision.Column{{Name: "state", Kind: value.KindInteger}})
	if err := table.AddRow([]string{"0"}, []string{"1"}); err != nil {
		t.Fatalf("AddRow() error = %v, want nil", err)
	}
	if err := p.AddTable(table); err != nil {
		t.Fatalf("AddTable() error = %v, want nil", err)
	}
	tree := &decision.Tree{Name: "tier", Root: &decision.ConditionNode{
		Variable: "tier",
		Kind:     value.KindString,
		Values:   []value.Value{value.String("gold")},
		OnMatch:  &decision.ActionNode{Variable: "discount", Value: value.Int(20)},
	}}
	if err := p.AddTree(tree); err != nil {
		t.Fatalf("AddTree() error = %v, want nil", err)
	}

	t.Run("table match writes existing fact", func(t *testing.T) {
		c := openContext(t, p)
		c.Facts().Set("state", value.Int(0))
		if _, err := c.Execute([]Node{&EvaluateTable{Name: "step"}}); err != nil {
			t.Fatalf("Execute() error = %v, want nil", err)
		}
		if got, _ := c.Facts().Get("state"); !value.Same(got, value.Int(1)) {
			t.Errorf("state = %#v, want integer(1)", got)
		}
		if c.Variables().Has("state") {
			t.Errorf("table created a variable shadowing the fact")
		}
	})

	// No match is a no-op, unlike a lookup of an unknown table.
	t.Run("table no match is a no-op", func(t *testing.T) {
		c := openContext(t, p)
		c.Facts().Set("state", value.Int(7))
		if _, err := c.Execute([]Node{&EvaluateTable{Name: "step"}}); err != nil {
			t.Fatalf("Execute() error = %v, want nil", err)
		}
		if got, _ := c.Facts().Get("state"); !value.Same(got, value.Int(7)) {
			t.Errorf("state = %#v, want integer(7)", got)
		}
	})

	t.Run("tree writes variable", func(t *testing.T) {
		c := openContext(t, p)
		c.Facts().Set("tier", value.String("gold"))
		if _, err := c.Execute([]Node{&EvaluateTree{Name: "tier"}}); err != nil {
			t.Fatalf("Execute() error = %v, want nil", err)
		}
		if got, _ := c.Variables().Get("discount"); !value.Same(got, value.Int(20)) {
			t.Errorf("discount = %#v, want integer(20)", got)
		}
	})

	t.Run("tree missing branch is a no-op", func(t *testing.T) {
		c := openContext(t, p)
		c.Facts().Set("tier", value.String("basic"))
		if _, err := c.Execute([]Node{&EvaluateTree{Name: "tier"}}); err != nil {
			t.Fatalf("Execute() error = %v, want nil", err)
		}
		if c.Variables().Has("discount") {
			t.Errorf("discount set on missing branch")
		}
	})
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	c := openContext(t, newProject(t), WithOutput(&buf))
	if _, err := c.Execute([]Node{&Print{Value: bin(OpAdd, Lit("total: "), Lit(12))}}); err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if got := buf.String(); got != "total: 12\n" {
		t.Errorf("output = %q, want %q", got, "total: 12\n")
	}
}

func TestContext_Closed(t *testing.T) {
	c := openContext(t, newProject(t))
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if _, err := c.Execute([]Node{set("x", Lit(1))}); !errors.Is(err, types.ErrContextClosed) {
		t.Errorf("Execute() after Close error = %v, want ErrContextClosed", err)
	}
	if _, err := c.Evaluate(Lit(1)); !errors.Is(err, types.ErrContextClosed) {
		t.Errorf("Evaluate() after Close error = %v, want ErrContextClosed", err)
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name string
		rule *Rule
	}{
		{"blank name", &Rule{Name: " "}},
		{"nil statement", &Rule{Name: "r", Do: []Node{nil}}},
		{"unnamed counter", &Rule{Name: "r", Do: []Node{&For{Count: Lit(1)}}}},
		{"unary operator in binary", &Rule{Name: "r", Do: []Node{&Binary{Op: OpNot, Left: Lit(1), Right: Lit(2)}}}},
		{"missing operand", &Rule{Name: "r", When: &Binary{Op: OpEq, Left: Lit(1)}}},
		{"unparsed path", &Rule{Name: "r", Do: []Node{&Path{Root: Lit(1), Text: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRule(tt.rule); !errors.Is(err, types.ErrInvalidRule) {
				t.Errorf("ValidateRule() error = %v, want ErrInvalidRule", err)
			}
		})
	}

	deep := Node(Lit(1))
	for range MaxNestingDepth + 1 {
		deep = &Unary{Op: OpNeg, Operand: deep}
	}
	if err := ValidateRule(&Rule{Name: "deep", When: deep}); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("ValidateRule(deep) error = %v, want ErrInvalidRule", err)
	}
}

func TestProject_Validate(t *testing.T) {
	p := newProject(t, &Rule{Name: "r", Do: []Node{&If{Cond: Lit(true), Then: []Node{&EvaluateTree{Name: "missing"}}}}})
	if err := p.Validate(); !errors.Is(err, types.ErrUnknownDecision) {
		t.Errorf("Validate() error = %v, want ErrUnknownDecision", err)
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"+", OpAdd}, {"add", OpAdd}, {"<=", OpLte}, {"GTE", OpGte}, {"<>", OpNeq}, {"and", OpAnd}, {"!", OpNot},
	}
	for _, tt := range tests {
		got, err := ParseOperator(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseOperator(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseOperator("~"); err == nil {
		t.Errorf("ParseOperator(~) error = nil, want error")
	}
}
