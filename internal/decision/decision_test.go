package decision

import (
	"errors"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

type mapState map[string]value.Value

func (m mapState) Lookup(name string) (value.Value, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapState) Assign(name string, v value.Value) error {
	m[name] = v
	return nil
}

func intCols(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Kind: value.KindInteger}
	}
	return cols
}

// counterTable encodes (a,b,c) -> (a,b,c)+1 in base 3 with wraparound.
func counterTable(t *testing.T) *Table {
	t.Helper()
	table := NewTable("counter", intCols("a", "b", "c"), intCols("a", "b", "c"))
	for n := range 27 {
		next := (n + 1) % 27
		cond := []string{strconv.Itoa(n / 9), strconv.Itoa(n / 3 % 3), strconv.Itoa(n % 3)}
		act := []string{strconv.Itoa(next / 9), strconv.Itoa(next / 3 % 3), strconv.Itoa(next % 3)}
		if err := table.AddRow(cond, act); err != nil {
			t.Fatalf("AddRow() error = %v, want nil", err)
		}
	}
	return table
}

func TestTable_BaseThreeCounter(t *testing.T) {
	table := counterTable(t)
	state := mapState{"a": value.Int(0), "b": value.Int(0), "c": value.Int(0)}

	for step := 1; step <= 27; step++ {
		matched, err := table.Evaluate(state)
		if err != nil {
			t.Fatalf("Evaluate() step %d error = %v, want nil", step, err)
		}
		if !matched {
			t.Fatalf("Evaluate() step %d matched = false, want true", step)
		}
		if step == 1 && !value.Same(state["c"], value.Int(1)) {
			t.Errorf("after one step c = %#v, want integer(1)", state["c"])
		}
	}

	for _, name := range []string{"a", "b", "c"} {
		if !value.Same(state[name], value.Int(0)) {
			t.Errorf("after 27 steps %s = %#v, want integer(0)", name, state[name])
		}
	}
}

func TestTable_MergesRuns(t *testing.T) {
	table := counterTable(t)
	if table.Len() != 27 {
		t.Fatalf("Len() = %d, want 27", table.Len())
	}
	// Column a holds 3 runs of 9, b 9 runs of 3, c 27 runs of 1, and actions
	// are shifted by one row: a 4 runs, b 10 runs, c 27 runs.
	if got, want := table.Runs(), 3+9+27+4+10+27; got != want {
		t.Errorf("Runs() = %d, want %d", got, want)
	}

	cond, act := table.Row(26)
	wantCond := []value.Value{value.Int(2), value.Int(2), value.Int(2)}
	wantAct := []value.Value{value.Int(0), value.Int(0), value.Int(0)}
	for i := range cond {
		if !value.Same(cond[i], wantCond[i]) || !value.Same(act[i], wantAct[i]) {
			t.Errorf("Row(26)[%d] = %#v -> %#v, want %#v -> %#v", i, cond[i], act[i], wantCond[i], wantAct[i])
		}
	}
}

func TestTable_NoMatchIsNoOp(t *testing.T) {
	table := counterTable(t)
	state := mapState{"a": value.Int(7), "b": value.Int(0), "c": value.Int(0)}

	matched, err := table.Evaluate(state)
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if matched {
		t.Errorf("Evaluate() matched = true, want false")
	}
	if !value.Same(state["a"], value.Int(7)) {
		t.Errorf("state changed on no match: a = %#v", state["a"])
	}
}

func TestTable_Errors(t *testing.T) {
	table := NewTable("t", intCols("x"), intCols("y"))

	if err := table.AddRow([]string{"1", "2"}, []string{"3"}); !errors.Is(err, types.ErrTableShapeMismatch) {
		t.Errorf("AddRow(wide conditions) error = %v, want ErrTableShapeMismatch", err)
	}
	if err := table.AddRow([]string{"1"}, nil); !errors.Is(err, types.ErrTableShapeMismatch) {
		t.Errorf("AddRow(narrow actions) error = %v, want ErrTableShapeMismatch", err)
	}
	if err := table.AddRow([]string{"one"}, []string{"1"}); !errors.Is(err, types.ErrCoercionFailed) {
		t.Errorf("AddRow(bad cell) error = %v, want ErrCoercionFailed", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() after failed adds = %d, want 0", table.Len())
	}

	_ = table.AddRow([]string{"1"}, []string{"2"})
	if _, err := table.Evaluate(mapState{}); !errors.Is(err, types.ErrMissingVariable) {
		t.Errorf("Evaluate(empty state) error = %v, want ErrMissingVariable", err)
	}
}

func TestTable_KindAwareMatch(t *testing.T) {
	table := NewTable("kinds",
		[]Column{{Name: "code", Kind: value.KindString}, {Name: "qty", Kind: value.KindInteger}},
		[]Column{{Name: "out", Kind: value.KindString}})
	_ = table.AddRow([]string{"AB", "1"}, []string{"prefix"})
	_ = table.AddRow([]string{"ABC", "1"}, []string{"exact"})

	// Float 1.0 coerces to integer 1; "ABC" must not match the "AB" prefix row.
	state := mapState{"code": value.String("ABC"), "qty": value.Float(1)}
	if _, err := table.Evaluate(state); err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if !value.Same(state["out"], value.String("exact")) {
		t.Errorf("out = %#v, want string(exact)", state["out"])
	}
}

// linearMatch scans expanded rows without using run skipping.
func linearMatch(table *Table, inputs []value.Value) int {
	for r := range table.Len() {
		cond, _ := table.Row(r)
		all := true
		for c := range cond {
			if !value.Same(cond[c], inputs[c]) {
				all = false
				break
			}
		}
		if all {
			return r
		}
	}
	return -1
}

func TestProperty_MergedMatchEqualsExpanded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("Match on merged runs equals linear scan of expanded rows", prop.ForAll(
		func(cells []int, x, y int) bool {
			table := NewTable("p", intCols("x", "y"), intCols("r"))
			for i := 0; i+1 < len(cells); i += 2 {
				cond := []string{strconv.Itoa(cells[i]), strconv.Itoa(cells[i+1])}
				if err := table.AddRow(cond, []string{strconv.Itoa(i)}); err != nil {
					return false
				}
			}
			inputs := []value.Value{value.Int(int64(x)), value.Int(int64(y))}
			return table.Match(inputs) == linearMatch(table, inputs)
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}

func discountTree() *Tree {
	return &Tree{
		Name: "discount",
		Root: &ConditionNode{
			Variable: "tier",
			Kind:     value.KindString,
			Values:   []value.Value{value.String("gold"), value.String("platinum")},
			OnMatch: &ActionNode{
				Variable:    "discount",
				Value:       value.Int(20),
				FurtherMore: &ActionNode{Variable: "freeShipping", Value: value.Bool(true)},
			},
			Else: &ConditionNode{
				Variable: "country",
				Kind:     value.KindString,
				Values:   []value.Value{value.String("NL")},
				OnMatch:  &ActionNode{Variable: "discount", Value: value.Int(5)},
			},
		},
	}
}

func TestTree_Evaluate(t *testing.T) {
	tests := []struct {
		name         string
		state        mapState
		wantMatched  bool
		wantDiscount value.Value
		wantShipping value.Value
	}{
		{"matched branch runs chained actions", mapState{"tier": value.String("platinum"), "country": value.String("US")},
			true, value.Int(20), value.Bool(true)},
		{"else branch", mapState{"tier": value.String("basic"), "country": value.String("NL")},
			true, value.Int(5), value.Null()},
		{"missing branch is a no-op", mapState{"tier": value.String("basic"), "country": value.String("US")},
			false, value.Null(), value.Null()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := discountTree()
			if err := tree.Validate(); err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			matched, err := tree.Evaluate(tt.state)
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if matched != tt.wantMatched {
				t.Errorf("Evaluate() matched = %v, want %v", matched, tt.wantMatched)
			}
			if !value.Same(tt.state["discount"], tt.wantDiscount) {
				t.Errorf("discount = %#v, want %#v", tt.state["discount"], tt.wantDiscount)
			}
			if !value.Same(tt.state["freeShipping"], tt.wantShipping) {
				t.Errorf("freeShipping = %#v, want %#v", tt.state["freeShipping"], tt.wantShipping)
			}
		})
	}
}

func TestTree_Validate(t *testing.T) {
	if err := (&Tree{Name: "empty"}).Validate(); !errors.Is(err, types.ErrMalformedTree) {
		t.Errorf("Validate(no root) error = %v, want ErrMalformedTree", err)
	}

	loop := &ConditionNode{Variable: "x", Kind: value.KindInteger}
	loop.Else = loop
	if err := (&Tree{Name: "loop", Root: loop}).Validate(); !errors.Is(err, types.ErrMalformedTree) {
		t.Errorf("Validate(cycle) error = %v, want ErrMalformedTree", err)
	}

	chain := &ActionNode{Variable: "y", Value: value.Int(1)}
	chain.FurtherMore = chain
	tree := &Tree{Name: "chain", Root: &ConditionNode{Variable: "x", Kind: value.KindInteger, OnMatch: chain}}
	if err := tree.Validate(); !errors.Is(err, types.ErrMalformedTree) {
		t.Errorf("Validate(action cycle) error = %v, want ErrMalformedTree", err)
	}

	shared := &ActionNode{Variable: "y", Value: value.Int(1)}
	dag := &Tree{Name: "dag", Root: &ConditionNode{Variable: "x", Kind: value.KindInteger, OnMatch: shared, Else: shared}}
	if err := dag.Validate(); err != nil {
		t.Errorf("Validate(shared leaf) error = %v, want nil", err)
	}
}

func TestTree_MissingVariable(t *testing.T) {
	if _, err := discountTree().Evaluate(mapState{}); !errors.Is(err, types.ErrMissingVariable) {
		t.Errorf("Evaluate(empty state) error = %v, want ErrMissingVariable", err)
	}
}
