// internal/rules/host.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/sweetbre/internal/names"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// contextHost is what ContextRef yields to reflection paths.
type contextHost struct {
	c *Context
}

func (h *contextHost) Member(name string) (value.Value, error) {
	switch strings.ToLower(name) {
	case "lasterror":
		if h.c.lastError == nil {
			return value.Null(), nil
		}
		return value.HostRef(newErrorView(h.c.lastError)), nil
	case "stoponerror":
		return value.Bool(h.c.stopOnError), nil
	case "ruleset":
		return value.String(h.c.rulesetName()), nil
	case "rule":
		return value.String(h.c.ruleName()), nil
	case "facts":
		return value.HostRef(&listHost{kind: "facts", list: h.c.facts.List}), nil
	case "variables":
		return value.HostRef(&listHost{kind: "variables", list: h.c.vars.List}), nil
	case "halted":
		return value.Bool(h.c.Halted()), nil
	}
	return value.Null(), fmt.Errorf("%w: context has no member %s", types.ErrMemberNotFound, name)
}

func (h *contextHost) Call(name string, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return h.Member(name)
	}
	return value.Null(), fmt.Errorf("%w: context has no method %s", types.ErrMemberNotFound, name)
}

func (h *contextHost) Index(value.Value) (value.Value, error) {
	return value.Null(), fmt.Errorf("%w: context is not indexable", types.ErrMemberNotFound)
}

func (h *contextHost) String() string { return "context(" + h.c.rulesetName() + ")" }

// listHost exposes a fact or variable list. Members resolve by entry name;
// Count, Names, Has(name), and Get(name) are methods.
type listHost struct {
	kind string
	list *names.List[value.Value]
}

func (h *listHost) Member(name string) (value.Value, error) {
	switch strings.ToLower(name) {
	case "count", "length":
		return value.Int(int64(h.list.Len())), nil
	case "names":
		return namesArray(h.list.Names()), nil
	}
	if v, ok := h.list.Get(name); ok {
		return v, nil
	}
	return value.Null(), fmt.Errorf("%w: %s has no entry %s", types.ErrMemberNotFound, h.kind, name)
}

func (h *listHost) Call(name string, args []value.Value) (value.Value, error) {
	switch strings.ToLower(name) {
	case "has", "get":
		if len(args) != 1 {
			return value.Null(), fmt.Errorf("%w: %s takes 1 argument, got %d", types.ErrArityMismatch, name, len(args))
		}
		key := args[0].String()
		if strings.EqualFold(name, "has") {
			return value.Bool(h.list.Has(key)), nil
		}
		return h.Member(key)
	}
	if len(args) == 0 {
		return h.Member(name)
	}
	return value.Null(), fmt.Errorf("%w: %s has no method %s", types.ErrMemberNotFound, h.kind, name)
}

// Index accepts an entry name or a zero-based position.
func (h *listHost) Index(i value.Value) (value.Value, error) {
	if s, ok := i.AsString(); ok {
		return h.Member(s)
	}
	n, ok := i.AsInt()
	if !ok {
		return value.Null(), fmt.Errorf("%w: index must be integer or string, got %s", types.ErrTypeMismatch, i.Kind())
	}
	pos := int64(0)
	for _, v := range h.list.All() {
		if pos == n {
			return v, nil
		}
		pos++
	}
	return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, n, h.list.Len())
}

func namesArray(ns []string) value.Value {
	elems := make([]value.Value, len(ns))
	for i, n := range ns {
		elems[i] = value.String(n)
	}
	return value.Array(elems...)
}
