// internal/rules/store.go
package rules

import (
	"github.com/solatis/sweetbre/internal/names"
	"github.com/solatis/sweetbre/internal/value"
)

// FactList holds the named facts a run reads and writes. Facts describe
// external state and are shared by every rule of a run.
type FactList struct {
	*names.List[value.Value]
}

// NewFactList creates an empty FactList.
func NewFactList(opts ...names.Option[value.Value]) *FactList {
	return &FactList{List: names.New(opts...)}
}

// FactsFrom builds a FactList from native Go values in the given order.
func FactsFrom(pairs ...any) *FactList {
	facts := NewFactList()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		facts.Set(name, value.FromAny(pairs[i+1]))
	}
	return facts
}

// VariableList holds rule execution state.
type VariableList struct {
	*names.List[value.Value]
}

// NewVariableList creates an empty VariableList.
func NewVariableList(opts ...names.Option[value.Value]) *VariableList {
	return &VariableList{List: names.New(opts...)}
}

// Map snapshots the list as native Go values keyed by display name.
func (f *FactList) Map() map[string]any { return snapshot(f.List) }

// Map snapshots the list as native Go values keyed by display name.
func (v *VariableList) Map() map[string]any { return snapshot(v.List) }

func snapshot(l *names.List[value.Value]) map[string]any {
	out := make(map[string]any, l.Len())
	for name, v := range l.All() {
		out[name] = v.Any()
	}
	return out
}
