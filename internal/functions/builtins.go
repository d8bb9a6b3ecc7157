// internal/functions/builtins.go
package functions

import (
	"fmt"
	"time"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// RegisterBuiltins installs the builtin library and its standard aliases into r.
// Existing functions with the same names are replaced.
func RegisterBuiltins(r *Registry) {
	for _, group := range [][]Function{mathFunctions(), stringFunctions(), dateFunctions(), arrayFunctions()} {
		for _, fn := range group {
			r.Replace(fn)
		}
	}
	for alias, target := range builtinAliases {
		// Builtin aliases never collide with builtin canonical names.
		_ = r.Alias(alias, target)
	}
}

var builtinAliases = map[string]string{
	"len":     "length",
	"power":   "pow",
	"ceil":    "ceiling",
	"avg":     "average",
	"substr":  "substring",
	"trunc":   "truncate",
	"toupper": "upper",
	"tolower": "lower",
	"size":    "count",
	"guid":    "newguid",
}

func fixed(name string, n int, call Func) Function {
	return Function{Name: name, MinArgs: n, MaxArgs: n, Call: call}
}

func ranged(name string, lo, hi int, call Func) Function {
	return Function{Name: name, MinArgs: lo, MaxArgs: hi, Call: call}
}

func argError(fn string, i int, want string, got value.Value) error {
	return fmt.Errorf("%w: %s argument %d: expected %s, got %s", types.ErrTypeMismatch, fn, i+1, want, got.Kind())
}

func numArg(fn string, args []value.Value, i int) (float64, error) {
	if f, ok := args[i].AsFloat(); ok {
		return f, nil
	}
	if c, err := value.Coerce(args[i], value.KindFloat); err == nil && !c.IsNull() {
		f, _ := c.AsFloat()
		return f, nil
	}
	return 0, argError(fn, i, "number", args[i])
}

func intArg(fn string, args []value.Value, i int) (int64, error) {
	c, err := value.Coerce(args[i], value.KindInteger)
	if err != nil || c.IsNull() {
		return 0, argError(fn, i, "integer", args[i])
	}
	n, _ := c.AsInt()
	return n, nil
}

func strArg(args []value.Value, i int) string {
	return args[i].String()
}

func dateArg(fn string, args []value.Value, i int) (time.Time, error) {
	if t, ok := args[i].AsDate(); ok {
		return t, nil
	}
	if s, ok := args[i].AsString(); ok {
		if d, err := value.ParseDate(s); err == nil {
			t, _ := d.AsDate()
			return t, nil
		}
	}
	return time.Time{}, argError(fn, i, "date", args[i])
}

func arrayArg(fn string, args []value.Value, i int) ([]value.Value, error) {
	if arr, ok := args[i].AsArray(); ok {
		return arr, nil
	}
	return nil, argError(fn, i, "array", args[i])
}
