// internal/functions/registry.go
package functions

import (
	"fmt"

	"github.com/solatis/sweetbre/internal/names"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Function registry.
 *
 * Call nodes name a function; the registry maps that name to an
 * implementation. Names are case-insensitive. Aliases map an alternate name
 * to a canonical one and are resolved at call time, so an alias may be
 * registered before its target and redirected later.
 *
 * Resolution order for a name:
 *   1. canonical function with that name
 *   2. alias with that name -> canonical name -> function
 *
 * Alias chains are followed up to maxAliasDepth hops; a cycle resolves to
 * ErrUnknownFunction.
 */

// Variadic marks a function that accepts any number of arguments above MinArgs.
const Variadic = -1

const maxAliasDepth = 8

// Func is a callable builtin. Args are already evaluated.
type Func func(args []value.Value) (value.Value, error)

// Function is a registered callable and its arity bounds.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic for no upper bound
	Call    Func
}

// Registry resolves function names to implementations.
// Safe for concurrent use.
type Registry struct {
	funcs   *names.List[Function]
	aliases *names.List[string]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs:   names.New[Function](),
		aliases: names.New[string](),
	}
}

// Default returns a registry populated with the builtin library.
func Default() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register adds fn. Returns ErrDuplicateName if fn.Name is already registered.
func (r *Registry) Register(fn Function) error {
	if fn.Call == nil {
		return fmt.Errorf("function %q: nil implementation", fn.Name)
	}
	if fn.MaxArgs != Variadic && fn.MaxArgs < fn.MinArgs {
		return fmt.Errorf("function %q: max args %d below min args %d", fn.Name, fn.MaxArgs, fn.MinArgs)
	}
	return r.funcs.Add(fn.Name, fn)
}

// Replace registers fn, overwriting any function with the same name.
func (r *Registry) Replace(fn Function) {
	r.funcs.Set(fn.Name, fn)
}

// Alias maps alias to target. The target need not exist yet.
func (r *Registry) Alias(alias, target string) error {
	if r.funcs.Has(alias) {
		return fmt.Errorf("%w: alias %q shadows a function", types.ErrDuplicateName, alias)
	}
	r.aliases.Set(alias, target)
	return nil
}

// Resolve returns the function a name refers to after alias expansion.
func (r *Registry) Resolve(name string) (Function, error) {
	current := name
	for range maxAliasDepth {
		if fn, ok := r.funcs.Get(current); ok {
			return fn, nil
		}
		target, ok := r.aliases.Get(current)
		if !ok {
			break
		}
		current = target
	}
	return Function{}, fmt.Errorf("%w: %q", types.ErrUnknownFunction, name)
}

// Call resolves name and invokes it with args after checking arity.
func (r *Registry) Call(name string, args []value.Value) (value.Value, error) {
	fn, err := r.Resolve(name)
	if err != nil {
		return value.Null(), err
	}
	if len(args) < fn.MinArgs || (fn.MaxArgs != Variadic && len(args) > fn.MaxArgs) {
		return value.Null(), fmt.Errorf("%w: %s takes %s arguments, got %d",
			types.ErrArityMismatch, fn.Name, arityText(fn), len(args))
	}
	return fn.Call(args)
}

// Names lists canonical function names in registration order.
func (r *Registry) Names() []string {
	return r.funcs.Names()
}

// Aliases returns alias -> target pairs in registration order.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, r.aliases.Len())
	for alias, target := range r.aliases.All() {
		out[alias] = target
	}
	return out
}

func arityText(fn Function) string {
	switch {
	case fn.MaxArgs == Variadic:
		return fmt.Sprintf("at least %d", fn.MinArgs)
	case fn.MinArgs == fn.MaxArgs:
		return fmt.Sprintf("%d", fn.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", fn.MinArgs, fn.MaxArgs)
	}
}
