package functions

import (
	"fmt"
	"math"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

func mathFunctions() []Function {
	return []Function{
		fixed("abs", 1, func(args []value.Value) (value.Value, error) {
			if n, ok := args[0].AsInt(); ok {
				if n < 0 {
					return value.Neg(args[0])
				}
				return value.Int(n), nil
			}
			return unaryFloat("abs", args, math.Abs)
		}),
		ranged("round", 1, 3, builtinRound),
		fixed("floor", 1, func(args []value.Value) (value.Value, error) {
			return unaryFloat("floor", args, math.Floor)
		}),
		fixed("ceiling", 1, func(args []value.Value) (value.Value, error) {
			return unaryFloat("ceiling", args, math.Ceil)
		}),
		fixed("truncate", 1, func(args []value.Value) (value.Value, error) {
			return unaryFloat("truncate", args, math.Trunc)
		}),
		fixed("sqrt", 1, func(args []value.Value) (value.Value, error) {
			x, err := numArg("sqrt", args, 0)
			if err != nil {
				return value.Null(), err
			}
			if x < 0 {
				return value.Null(), fmt.Errorf("%w: sqrt of negative number %v", types.ErrInvocationFailed, x)
			}
			return value.Float(math.Sqrt(x)), nil
		}),
		fixed("pow", 2, func(args []value.Value) (value.Value, error) {
			x, err := numArg("pow", args, 0)
			if err != nil {
				return value.Null(), err
			}
			y, err := numArg("pow", args, 1)
			if err != nil {
				return value.Null(), err
			}
			return value.Float(math.Pow(x, y)), nil
		}),
		fixed("exp", 1, func(args []value.Value) (value.Value, error) {
			return unaryFloat("exp", args, math.Exp)
		}),
		ranged("log", 1, 2, func(args []value.Value) (value.Value, error) {
			x, err := numArg("log", args, 0)
			if err != nil {
				return value.Null(), err
			}
			if x <= 0 {
				return value.Null(), fmt.Errorf("%w: log of non-positive number %v", types.ErrInvocationFailed, x)
			}
			if len(args) == 1 {
				return value.Float(math.Log(x)), nil
			}
			base, err := numArg("log", args, 1)
			if err != nil {
				return value.Null(), err
			}
			return value.Float(math.Log(x) / math.Log(base)), nil
		}),
		fixed("log10", 1, func(args []value.Value) (value.Value, error) {
			return unaryFloat("log10", args, math.Log10)
		}),
		fixed("sign", 1, func(args []value.Value) (value.Value, error) {
			x, err := numArg("sign", args, 0)
			if err != nil {
				return value.Null(), err
			}
			switch {
			case x > 0:
				return value.Int(1), nil
			case x < 0:
				return value.Int(-1), nil
			}
			return value.Int(0), nil
		}),
		{Name: "min", MinArgs: 1, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			return extremum(args, -1)
		}},
		{Name: "max", MinArgs: 1, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			return extremum(args, 1)
		}},
		{Name: "sum", MinArgs: 0, MaxArgs: Variadic, Call: builtinSum},
		{Name: "average", MinArgs: 1, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			elems := spread(args)
			if len(elems) == 0 {
				return value.Null(), fmt.Errorf("%w: average of empty set", types.ErrInvocationFailed)
			}
			total, err := builtinSum(elems)
			if err != nil {
				return value.Null(), err
			}
			return value.Div(total, value.Int(int64(len(elems))))
		}},
	}
}

// builtinRound implements round(x [, digits [, mode]]).
// digits defaults to 0 and mode to away-from-zero.
func builtinRound(args []value.Value) (value.Value, error) {
	digits := int64(0)
	mode := value.RoundAwayFromZero
	if len(args) > 1 {
		d, err := intArg("round", args, 1)
		if err != nil {
			return value.Null(), err
		}
		digits = d
	}
	if len(args) > 2 {
		m, err := value.ParseRoundingMode(strArg(args, 2))
		if err != nil {
			return value.Null(), err
		}
		mode = m
	}
	if !args[0].IsNumeric() {
		x, err := numArg("round", args, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.Round(value.Float(x), int(digits), mode)
	}
	return value.Round(args[0], int(digits), mode)
}

func unaryFloat(fn string, args []value.Value, op func(float64) float64) (value.Value, error) {
	x, err := numArg(fn, args, 0)
	if err != nil {
		return value.Null(), err
	}
	return value.Float(op(x)), nil
}

// spread flattens a single array argument so min(list) and min(a, b, c) both work.
func spread(args []value.Value) []value.Value {
	if len(args) == 1 {
		if arr, ok := args[0].AsArray(); ok {
			return arr
		}
	}
	return args
}

func extremum(args []value.Value, sign int) (value.Value, error) {
	elems := spread(args)
	if len(elems) == 0 {
		return value.Null(), fmt.Errorf("%w: extremum of empty set", types.ErrInvocationFailed)
	}
	best := elems[0]
	for _, v := range elems[1:] {
		c, err := value.Compare(v, best)
		if err != nil {
			return value.Null(), err
		}
		if c == sign {
			best = v
		}
	}
	return best, nil
}

func builtinSum(args []value.Value) (value.Value, error) {
	total := value.Int(0)
	for _, v := range spread(args) {
		if !v.IsNumeric() {
			return value.Null(), fmt.Errorf("%w: sum of %s", types.ErrTypeMismatch, v.Kind())
		}
		var err error
		if total, err = value.Add(total, v); err != nil {
			return value.Null(), err
		}
	}
	return total, nil
}
