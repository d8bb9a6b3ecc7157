// internal/hostpath/evaluate.go
package hostpath

import (
	"fmt"
	"sync"

	"github.com/solatis/sweetbre/internal/functions"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Path evaluation.
 *
 * Each step is applied to the running value through the Host capability of
 * that value's runtime kind:
 *   - HostRef whose object implements Host: the object itself
 *   - any other HostRef: Go reflection over fields, methods, and map keys
 *   - builtin kinds: members and methods backed by the function registry,
 *     with the receiver passed as the first argument
 *
 * Resolution failures wrap ErrMemberNotFound; methods that panic or return a
 * non-nil error wrap ErrInvocationFailed.
 */

// Host is the capability a value exposes to path evaluation.
type Host interface {
	Member(name string) (value.Value, error)
	Call(name string, args []value.Value) (value.Value, error)
	Index(i value.Value) (value.Value, error)
}

// Evaluator applies parsed paths. The zero value uses the builtin function library.
type Evaluator struct {
	Functions *functions.Registry
}

var defaultFunctions = sync.OnceValue(functions.Default)

// Evaluate applies nodes to root using the builtin function library.
func Evaluate(root value.Value, nodes []MemberNode, extra []value.Value) (value.Value, error) {
	return Evaluator{}.Evaluate(root, nodes, extra)
}

// Evaluate applies nodes to root left to right. extra binds $n placeholders.
func (e Evaluator) Evaluate(root value.Value, nodes []MemberNode, extra []value.Value) (value.Value, error) {
	current := root
	for i, node := range nodes {
		host := e.hostFor(current)
		var err error
		switch node.Kind {
		case Indexer:
			current, err = host.Index(node.Index)
		case Member:
			current, err = host.Member(node.Name)
		case Method:
			var args []value.Value
			args, err = bindArgs(node.Args, extra)
			if err == nil {
				current, err = host.Call(node.Name, args)
			}
		default:
			err = fmt.Errorf("%w: unknown step kind %v", types.ErrPathSyntax, node.Kind)
		}
		if err != nil {
			return value.Null(), fmt.Errorf("step %d %s: %w", i, node, err)
		}
	}
	return current, nil
}

// EvaluateText parses and evaluates text in one call.
func (e Evaluator) EvaluateText(root value.Value, text string, extra []value.Value) (value.Value, error) {
	nodes, err := Parse(text)
	if err != nil {
		return value.Null(), err
	}
	return e.Evaluate(root, nodes, extra)
}

func (e Evaluator) hostFor(v value.Value) Host {
	if obj, ok := v.AsHost(); ok {
		if h, ok := obj.(Host); ok {
			return h
		}
		return reflectHost{obj: obj}
	}
	reg := e.Functions
	if reg == nil {
		reg = defaultFunctions()
	}
	return valueHost{v: v, funcs: reg}
}

func bindArgs(args []Arg, extra []value.Value) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, a := range args {
		if !a.IsPlaceholder {
			out[i] = a.Literal
			continue
		}
		if a.Placeholder < 0 || a.Placeholder >= len(extra) {
			return nil, fmt.Errorf("%w: placeholder $%d with %d extra arguments",
				types.ErrArityMismatch, a.Placeholder, len(extra))
		}
		out[i] = extra[a.Placeholder]
	}
	return out, nil
}
