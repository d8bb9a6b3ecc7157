package functions

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

func TestRegistry_AliasResolvedAtCallTime(t *testing.T) {
	r := NewRegistry()

	// Alias registered before its target exists.
	if err := r.Alias("twice", "double"); err != nil {
		t.Fatalf("Alias() error = %v, want nil", err)
	}
	if _, err := r.Call("twice", []value.Value{value.Int(2)}); !errors.Is(err, types.ErrUnknownFunction) {
		t.Fatalf("Call(twice) before target error = %v, want ErrUnknownFunction", err)
	}

	err := r.Register(fixed("double", 1, func(args []value.Value) (value.Value, error) {
		return value.Mul(args[0], value.Int(2))
	}))
	if err != nil {
		t.Fatalf("Register() error = %v, want nil", err)
	}

	got, err := r.Call("TWICE", []value.Value{value.Int(21)})
	if err != nil {
		t.Fatalf("Call(TWICE) error = %v, want nil", err)
	}
	if !value.Same(got, value.Int(42)) {
		t.Errorf("Call(TWICE) = %#v, want integer(42)", got)
	}
}

func TestRegistry_AliasCycle(t *testing.T) {
	r := NewRegistry()
	_ = r.Alias("a", "b")
	_ = r.Alias("b", "a")

	if _, err := r.Resolve("a"); !errors.Is(err, types.ErrUnknownFunction) {
		t.Errorf("Resolve(cycle) error = %v, want ErrUnknownFunction", err)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		fn      string
		args    []value.Value
		wantErr error
	}{
		{"unknown function", "nosuch", nil, types.ErrUnknownFunction},
		{"too few args", "pow", []value.Value{value.Int(1)}, types.ErrArityMismatch},
		{"too many args", "abs", []value.Value{value.Int(1), value.Int(2)}, types.ErrArityMismatch},
		{"wrong kind", "sqrt", []value.Value{value.Bool(true)}, types.ErrTypeMismatch},
		{"substring out of range", "substring", []value.Value{value.String("abc"), value.Int(5)}, types.ErrIndexOutOfRange},
		{"item out of range", "item", []value.Value{value.Array(value.Int(1)), value.Int(1)}, types.ErrIndexOutOfRange},
		{"bad rounding mode", "round", []value.Value{value.Float(1.5), value.Int(0), value.String("up-ish")}, types.ErrCoercionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Call(tt.fn, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Call(%s) error = %v, want %v", tt.fn, err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_DuplicateRegister(t *testing.T) {
	r := Default()
	err := r.Register(fixed("ABS", 1, func(args []value.Value) (value.Value, error) { return args[0], nil }))
	if !errors.Is(err, types.ErrDuplicateName) {
		t.Errorf("Register(ABS) error = %v, want ErrDuplicateName", err)
	}
	if err := r.Alias("abs", "floor"); !errors.Is(err, types.ErrDuplicateName) {
		t.Errorf("Alias(abs) error = %v, want ErrDuplicateName", err)
	}
}

func TestBuiltins(t *testing.T) {
	r := Default()
	day := time.Date(2024, 1, 31, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		fn   string
		args []value.Value
		want value.Value
	}{
		{"round", []value.Value{value.Float(18.0*9/5 + 32), value.Int(2), value.String("away-from-zero")}, value.Float(64.4)},
		{"round", []value.Value{value.Float(160.0 / 9), value.Int(2), value.String("AwayFromZero")}, value.Float(17.78)},
		{"round", []value.Value{value.Float(160.0 / 9), value.Int(0)}, value.Float(18)},
		{"round", []value.Value{value.Float(2.5), value.Int(0), value.String("ToEven")}, value.Float(2)},
		{"round", []value.Value{value.Int(7), value.Int(2)}, value.Int(7)},
		{"abs", []value.Value{value.Int(-3)}, value.Int(3)},
		{"ceil", []value.Value{value.Float(1.2)}, value.Float(2)},
		{"power", []value.Value{value.Int(2), value.Int(10)}, value.Float(1024)},
		{"max", []value.Value{value.Int(3), value.Float(7.5), value.Int(5)}, value.Float(7.5)},
		{"min", []value.Value{value.Array(value.Int(3), value.Int(-1))}, value.Int(-1)},
		{"sum", []value.Value{value.Int(1), value.Int(2), value.Int(3)}, value.Int(6)},
		{"avg", []value.Value{value.Int(1), value.Int(2)}, value.Float(1.5)},
		{"len", []value.Value{value.String("héllo")}, value.Int(5)},
		{"upper", []value.Value{value.String("abc")}, value.String("ABC")},
		{"substr", []value.Value{value.String("rules"), value.Int(1), value.Int(3)}, value.String("ule")},
		{"indexof", []value.Value{value.String("héllo"), value.String("l")}, value.Int(2)},
		{"padleft", []value.Value{value.Int(7), value.Int(3), value.String("0")}, value.String("007")},
		{"concat", []value.Value{value.String("a"), value.Int(1), value.Bool(true)}, value.String("a1true")},
		{"tostring", []value.Value{value.Float(1234.5), value.String("N2")}, value.String("1,234.50")},
		{"tointeger", []value.Value{value.Float(9.9)}, value.Int(9)},
		{"adddays", []value.Value{value.Date(day), value.Int(1)}, value.Date(day.AddDate(0, 0, 1))},
		{"month", []value.Value{value.Date(day)}, value.Int(1)},
		{"formatdate", []value.Value{value.Date(day), value.String("yyyy-MM-dd HH:mm")}, value.String("2024-01-31 09:30")},
		{"daysbetween", []value.Value{value.Date(day), value.Date(day.AddDate(0, 0, 10))}, value.Int(10)},
		{"contains", []value.Value{value.Array(value.Int(1), value.Int(2)), value.Float(2)}, value.Bool(true)},
		{"reverse", []value.Value{value.Array(value.Int(1), value.Int(2))}, value.Array(value.Int(2), value.Int(1))},
		{"sort", []value.Value{value.Array(value.Int(3), value.Int(1), value.Int(2))}, value.Array(value.Int(1), value.Int(2), value.Int(3))},
		{"max", []value.Value{value.Int(1<<53 + 1), value.Int(1 << 53)}, value.Int(1<<53 + 1)},
		{"round", []value.Value{value.Float(1.5), value.Int(400)}, value.Float(1.5)},
		{"append", []value.Value{value.Array(value.Int(1)), value.Int(2)}, value.Array(value.Int(1), value.Int(2))},
		{"split", []value.Value{value.String("a,b"), value.String(",")}, value.Array(value.String("a"), value.String("b"))},
		{"join", []value.Value{value.Array(value.Int(1), value.Int(2)), value.String("-")}, value.String("1-2")},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			got, err := r.Call(tt.fn, tt.args)
			if err != nil {
				t.Fatalf("Call(%s) error = %v, want nil", tt.fn, err)
			}
			if !value.Same(got, tt.want) {
				t.Errorf("Call(%s) = %#v, want %#v", tt.fn, got, tt.want)
			}
		})
	}
}

func TestBuiltins_IntegerOverflow(t *testing.T) {
	r := Default()
	tests := []struct {
		fn   string
		args []value.Value
	}{
		{"abs", []value.Value{value.Int(math.MinInt64)}},
		{"sum", []value.Value{value.Int(math.MaxInt64), value.Int(1)}},
	}
	for _, tt := range tests {
		if _, err := r.Call(tt.fn, tt.args); !errors.Is(err, types.ErrTypeMismatch) {
			t.Errorf("Call(%s) error = %v, want %v", tt.fn, err, types.ErrTypeMismatch)
		}
	}
}

func TestBuiltins_Clock(t *testing.T) {
	pinned := time.Date(2025, 6, 1, 15, 4, 5, 0, time.UTC)
	clock = func() time.Time { return pinned }
	t.Cleanup(func() { clock = time.Now })

	r := Default()
	got, err := r.Call("today", nil)
	if err != nil {
		t.Fatalf("Call(today) error = %v, want nil", err)
	}
	want := value.Date(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if !value.Same(got, want) {
		t.Errorf("Call(today) = %#v, want %#v", got, want)
	}
}

func TestBuiltins_Guid(t *testing.T) {
	r := Default()
	got, err := r.Call("guid", nil)
	if err != nil {
		t.Fatalf("Call(guid) error = %v, want nil", err)
	}
	if got.Kind() != value.KindIdentifier {
		t.Fatalf("Call(guid).Kind() = %v, want identifier", got.Kind())
	}

	parsed, err := r.Call("parseguid", []value.Value{value.String(got.String())})
	if err != nil {
		t.Fatalf("Call(parseguid) error = %v, want nil", err)
	}
	if !value.Same(parsed, got) {
		t.Errorf("parseguid(%s) = %#v, want %#v", got, parsed, got)
	}
}
