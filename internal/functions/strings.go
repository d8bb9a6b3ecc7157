package functions

import (
	"fmt"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// String positions are rune offsets, zero-based.
func stringFunctions() []Function {
	return []Function{
		fixed("length", 1, func(args []value.Value) (value.Value, error) {
			n, ok := args[0].Len()
			if !ok {
				return value.Null(), argError("length", 0, "string or array", args[0])
			}
			return value.Int(int64(n)), nil
		}),
		fixed("upper", 1, func(args []value.Value) (value.Value, error) {
			return value.String(strings.ToUpper(strArg(args, 0))), nil
		}),
		fixed("lower", 1, func(args []value.Value) (value.Value, error) {
			return value.String(strings.ToLower(strArg(args, 0))), nil
		}),
		fixed("trim", 1, func(args []value.Value) (value.Value, error) {
			return value.String(strings.TrimSpace(strArg(args, 0))), nil
		}),
		ranged("substring", 2, 3, builtinSubstring),
		fixed("startswith", 2, func(args []value.Value) (value.Value, error) {
			return value.Bool(strings.HasPrefix(strArg(args, 0), strArg(args, 1))), nil
		}),
		fixed("endswith", 2, func(args []value.Value) (value.Value, error) {
			return value.Bool(strings.HasSuffix(strArg(args, 0), strArg(args, 1))), nil
		}),
		fixed("contains", 2, func(args []value.Value) (value.Value, error) {
			if arr, ok := args[0].AsArray(); ok {
				return value.Bool(indexOf(arr, args[1]) >= 0), nil
			}
			return value.Bool(strings.Contains(strArg(args, 0), strArg(args, 1))), nil
		}),
		fixed("indexof", 2, func(args []value.Value) (value.Value, error) {
			if arr, ok := args[0].AsArray(); ok {
				return value.Int(int64(indexOf(arr, args[1]))), nil
			}
			s, sub := strArg(args, 0), strArg(args, 1)
			i := strings.Index(s, sub)
			if i < 0 {
				return value.Int(-1), nil
			}
			return value.Int(int64(len([]rune(s[:i])))), nil
		}),
		fixed("replace", 3, func(args []value.Value) (value.Value, error) {
			return value.String(strings.ReplaceAll(strArg(args, 0), strArg(args, 1), strArg(args, 2))), nil
		}),
		{Name: "concat", MinArgs: 0, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			var b strings.Builder
			for i := range args {
				b.WriteString(strArg(args, i))
			}
			return value.String(b.String()), nil
		}},
		fixed("split", 2, func(args []value.Value) (value.Value, error) {
			parts := strings.Split(strArg(args, 0), strArg(args, 1))
			elems := make([]value.Value, len(parts))
			for i, p := range parts {
				elems[i] = value.String(p)
			}
			return value.Array(elems...), nil
		}),
		fixed("join", 2, func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("join", args, 0)
			if err != nil {
				return value.Null(), err
			}
			parts := make([]string, len(arr))
			for i, e := range arr {
				parts[i] = e.String()
			}
			return value.String(strings.Join(parts, strArg(args, 1))), nil
		}),
		ranged("padleft", 2, 3, func(args []value.Value) (value.Value, error) {
			return pad("padleft", args, true)
		}),
		ranged("padright", 2, 3, func(args []value.Value) (value.Value, error) {
			return pad("padright", args, false)
		}),
		ranged("tostring", 1, 2, func(args []value.Value) (value.Value, error) {
			format := ""
			if len(args) == 2 {
				format = strArg(args, 1)
			}
			s, err := value.Format(args[0], format)
			if err != nil {
				return value.Null(), err
			}
			return value.String(s), nil
		}),
		fixed("tointeger", 1, func(args []value.Value) (value.Value, error) {
			if f, ok := args[0].AsFloat(); ok && args[0].Kind() == value.KindFloat {
				return value.Int(int64(f)), nil
			}
			return value.Coerce(args[0], value.KindInteger)
		}),
		fixed("tofloat", 1, func(args []value.Value) (value.Value, error) {
			return value.Coerce(args[0], value.KindFloat)
		}),
		fixed("toboolean", 1, func(args []value.Value) (value.Value, error) {
			return value.Coerce(args[0], value.KindBoolean)
		}),
		fixed("isnull", 1, func(args []value.Value) (value.Value, error) {
			return value.Bool(args[0].IsNull()), nil
		}),
		fixed("typeof", 1, func(args []value.Value) (value.Value, error) {
			return value.String(args[0].Kind().String()), nil
		}),
	}
}

func builtinSubstring(args []value.Value) (value.Value, error) {
	runes := []rune(strArg(args, 0))
	start, err := intArg("substring", args, 1)
	if err != nil {
		return value.Null(), err
	}
	if start < 0 || start > int64(len(runes)) {
		return value.Null(), fmt.Errorf("%w: substring start %d, length %d", types.ErrIndexOutOfRange, start, len(runes))
	}
	end := int64(len(runes))
	if len(args) == 3 {
		n, err := intArg("substring", args, 2)
		if err != nil {
			return value.Null(), err
		}
		if n < 0 || start+n > end {
			return value.Null(), fmt.Errorf("%w: substring %d+%d, length %d", types.ErrIndexOutOfRange, start, n, len(runes))
		}
		end = start + n
	}
	return value.String(string(runes[start:end])), nil
}

func pad(fn string, args []value.Value, left bool) (value.Value, error) {
	s := strArg(args, 0)
	width, err := intArg(fn, args, 1)
	if err != nil {
		return value.Null(), err
	}
	fill := " "
	if len(args) == 3 {
		fill = strArg(args, 2)
		if len([]rune(fill)) != 1 {
			return value.Null(), argError(fn, 2, "single character", args[2])
		}
	}
	n := int(width) - len([]rune(s))
	if n <= 0 {
		return value.String(s), nil
	}
	padding := strings.Repeat(fill, n)
	if left {
		return value.String(padding + s), nil
	}
	return value.String(s + padding), nil
}

func indexOf(arr []value.Value, want value.Value) int {
	for i, e := range arr {
		if eq, err := value.Equal(e, want); err == nil && eq {
			return i
		}
	}
	return -1
}
