// internal/rules/ruleset.go
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/sweetbre/internal/decision"
	"github.com/solatis/sweetbre/internal/names"
	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Rules, rulesets, and projects.
 *
 * A Rule is an optional guard plus a statement list. A Ruleset owns its
 * rules; adding a rule to a second ruleset moves it. Execution order is by
 * ascending (Priority, SubPriority) with ties kept in declaration order
 * (stable sort), so reordering never depends on map iteration or sort
 * implementation details.
 *
 * A Project groups rulesets with the decision tables and trees their
 * statements reference by name. The graph is built once and then shared
 * read-only by every run.
 */

// Rule is a guarded statement list.
type Rule struct {
	Name        string
	Priority    int
	SubPriority int
	When        Node // nil means always
	Do          []Node

	owner *Ruleset
}

// ownership guards Rule.owner and the rule lists it mirrors. A move touches
// two rulesets, so one lock spans all of them.
var ownership sync.Mutex

// Ruleset returns the ruleset that currently owns r, or nil.
func (r *Rule) Ruleset() *Ruleset {
	ownership.Lock()
	defer ownership.Unlock()
	return r.owner
}

// Ruleset is a named, ordered collection of rules.
type Ruleset struct {
	Name string

	rules *names.List[*Rule]
}

// NewRuleset creates an empty ruleset.
func NewRuleset(name string) *Ruleset {
	return &Ruleset{Name: name, rules: names.New[*Rule]()}
}

// AddRule validates r and appends it. A rule owned by another ruleset is
// removed from it first. Returns ErrDuplicateName on a name collision.
func (rs *Ruleset) AddRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	ownership.Lock()
	defer ownership.Unlock()
	if r.owner == rs {
		return fmt.Errorf("ruleset %q: %w: rule %q", rs.Name, types.ErrDuplicateName, r.Name)
	}
	if err := rs.rules.Add(r.Name, r); err != nil {
		return fmt.Errorf("ruleset %q: %w", rs.Name, err)
	}
	if prev := r.owner; prev != nil {
		prev.removeRule(r.Name)
	}
	r.owner = rs
	return nil
}

// RemoveRule detaches the named rule, reporting whether it existed.
func (rs *Ruleset) RemoveRule(name string) bool {
	ownership.Lock()
	defer ownership.Unlock()
	return rs.removeRule(name)
}

// removeRule is RemoveRule with ownership held.
func (rs *Ruleset) removeRule(name string) bool {
	r, ok := rs.rules.Get(name)
	if !ok {
		return false
	}
	rs.rules.Remove(name)
	if r.owner == rs {
		r.owner = nil
	}
	return true
}

// Rule looks up a rule by name.
func (rs *Ruleset) Rule(name string) (*Rule, bool) { return rs.rules.Get(name) }

// Len returns the number of rules.
func (rs *Ruleset) Len() int { return rs.rules.Len() }

// Ordered returns the rules in execution order.
func (rs *Ruleset) Ordered() []*Rule {
	out := make([]*Rule, 0, rs.rules.Len())
	for _, r := range rs.rules.All() {
		out = append(out, r)
	}
	// Stable sort: equal priorities keep declaration order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].SubPriority < out[j].SubPriority
	})
	return out
}

// Project is the complete rule graph a runtime evaluates.
type Project struct {
	Name string

	rulesets *names.List[*Ruleset]
	tables   *names.List[*decision.Table]
	trees    *names.List[*decision.Tree]
}

// NewProject creates an empty project.
func NewProject(name string) *Project {
	return &Project{
		Name:     name,
		rulesets: names.New[*Ruleset](),
		tables:   names.New[*decision.Table](),
		trees:    names.New[*decision.Tree](),
	}
}

// AddRuleset registers rs. Returns ErrDuplicateName on a name collision.
func (p *Project) AddRuleset(rs *Ruleset) error {
	return p.rulesets.Add(rs.Name, rs)
}

// Ruleset looks up a ruleset. Returns ErrUnknownRuleset when absent.
func (p *Project) Ruleset(name string) (*Ruleset, error) {
	rs, ok := p.rulesets.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownRuleset, name)
	}
	return rs, nil
}

// Rulesets returns ruleset names in declaration order.
func (p *Project) Rulesets() []string { return p.rulesets.Names() }

// AddTable registers a decision table.
func (p *Project) AddTable(t *decision.Table) error {
	return p.tables.Add(t.Name, t)
}

// Table looks up a decision table. Returns ErrUnknownDecision when absent.
func (p *Project) Table(name string) (*decision.Table, error) {
	t, ok := p.tables.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", types.ErrUnknownDecision, name)
	}
	return t, nil
}

// AddTree validates and registers a decision tree.
func (p *Project) AddTree(t *decision.Tree) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return p.trees.Add(t.Name, t)
}

// Tree looks up a decision tree. Returns ErrUnknownDecision when absent.
func (p *Project) Tree(name string) (*decision.Tree, error) {
	t, ok := p.trees.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: tree %q", types.ErrUnknownDecision, name)
	}
	return t, nil
}

// Validate checks that every EvaluateTable and EvaluateTree statement
// names a table or tree the project defines.
func (p *Project) Validate() error {
	for _, rs := range p.rulesets.All() {
		for _, r := range rs.Ordered() {
			var err error
			walkRule(r, func(n Node) bool {
				switch n := n.(type) {
				case *EvaluateTable:
					_, err = p.Table(n.Name)
				case *EvaluateTree:
					_, err = p.Tree(n.Name)
				}
				return err == nil
			})
			if err != nil {
				return fmt.Errorf("ruleset %q rule %q: %w", rs.Name, r.Name, err)
			}
		}
	}
	return nil
}
