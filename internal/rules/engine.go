// internal/rules/engine.go
package rules

import (
	"context"
	"sync/atomic"

	"github.com/solatis/sweetbre/internal/types"
)

// Engine runs named rulesets of the current project. The project can be
// swapped at any time; runs already in flight keep the project they started with.
type Engine struct {
	project atomic.Pointer[Project]
	opts    []Option
}

// NewEngine creates an engine. opts apply to every run.
func NewEngine(p *Project, opts ...Option) *Engine {
	e := &Engine{opts: opts}
	if p != nil {
		e.project.Store(p)
	}
	return e
}

// SetProject replaces the project used by subsequent runs.
func (e *Engine) SetProject(p *Project) { e.project.Store(p) }

// Project returns the current project, or nil.
func (e *Engine) Project() *Project { return e.project.Load() }

// Run executes ruleset against facts and vars, which the run mutates.
// Per-run opts are applied after the engine's own.
func (e *Engine) Run(ctx context.Context, ruleset string, facts *FactList, vars *VariableList, opts ...Option) (*Result, error) {
	p := e.project.Load()
	if p == nil {
		return nil, types.ErrNoProject
	}
	all := make([]Option, 0, len(e.opts)+len(opts))
	all = append(all, e.opts...)
	all = append(all, opts...)
	rt, err := NewRuntime(p, ruleset, all...)
	if err != nil {
		return nil, err
	}
	return rt.Run(ctx, facts, vars)
}
