package functions

import (
	"fmt"
	"slices"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

func arrayFunctions() []Function {
	return []Function{
		{Name: "array", MinArgs: 0, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			return value.Array(args...), nil
		}},
		fixed("count", 1, func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("count", args, 0)
			if err != nil {
				return value.Null(), err
			}
			return value.Int(int64(len(arr))), nil
		}),
		fixed("item", 2, func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("item", args, 0)
			if err != nil {
				return value.Null(), err
			}
			i, err := intArg("item", args, 1)
			if err != nil {
				return value.Null(), err
			}
			if i < 0 || i >= int64(len(arr)) {
				return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, i, len(arr))
			}
			return arr[i], nil
		}),
		fixed("first", 1, func(args []value.Value) (value.Value, error) {
			return edge("first", args, func(arr []value.Value) value.Value { return arr[0] })
		}),
		fixed("last", 1, func(args []value.Value) (value.Value, error) {
			return edge("last", args, func(arr []value.Value) value.Value { return arr[len(arr)-1] })
		}),
		{Name: "append", MinArgs: 2, MaxArgs: Variadic, Call: func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("append", args, 0)
			if err != nil {
				return value.Null(), err
			}
			out := make([]value.Value, 0, len(arr)+len(args)-1)
			out = append(out, arr...)
			out = append(out, args[1:]...)
			return value.Array(out...), nil
		}},
		fixed("reverse", 1, func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("reverse", args, 0)
			if err != nil {
				return value.Null(), err
			}
			out := slices.Clone(arr)
			slices.Reverse(out)
			return value.Array(out...), nil
		}),
		fixed("sort", 1, func(args []value.Value) (value.Value, error) {
			arr, err := arrayArg("sort", args, 0)
			if err != nil {
				return value.Null(), err
			}
			out := slices.Clone(arr)
			var cmpErr error
			slices.SortStableFunc(out, func(a, b value.Value) int {
				c, err := value.Compare(a, b)
				if err != nil && cmpErr == nil {
					cmpErr = err
				}
				return c
			})
			if cmpErr != nil {
				return value.Null(), cmpErr
			}
			return value.Array(out...), nil
		}),
	}
}

func edge(fn string, args []value.Value, pick func([]value.Value) value.Value) (value.Value, error) {
	arr, err := arrayArg(fn, args, 0)
	if err != nil {
		return value.Null(), err
	}
	if len(arr) == 0 {
		return value.Null(), fmt.Errorf("%w: %s of empty array", types.ErrIndexOutOfRange, fn)
	}
	return pick(arr), nil
}
