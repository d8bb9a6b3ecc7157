// internal/rules/runtime.go
package rules

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/solatis/sweetbre/internal/functions"
	"github.com/solatis/sweetbre/internal/types"
)

// settings carries the options shared by Runtime and Engine.
type settings struct {
	debugger    Debugger
	stopOnError bool
	functions   *functions.Registry
	output      io.Writer
}

var defaultFunctions = sync.OnceValue(functions.Default)

func defaultSettings() settings {
	return settings{
		stopOnError: true,
		functions:   defaultFunctions(),
		output:      os.Stdout,
	}
}

// Option configures a Runtime or an Engine run.
type Option func(*settings)

// WithDebugger reports each rule and statement step to d.
func WithDebugger(d Debugger) Option {
	return func(s *settings) { s.debugger = d }
}

// WithStopOnError sets whether an uncaught error aborts the whole run
// (default true) or only the rule that raised it.
func WithStopOnError(stop bool) Option {
	return func(s *settings) { s.stopOnError = stop }
}

// WithFunctions replaces the builtin function registry.
func WithFunctions(r *functions.Registry) Option {
	return func(s *settings) {
		if r != nil {
			s.functions = r
		}
	}
}

// WithOutput sets the writer Print statements write to (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// Result describes one completed or aborted run.
type Result struct {
	RunID          types.RunID
	Ruleset        string
	RulesEvaluated int
	RulesFired     int
	// Errors holds errors that abandoned a rule while stopOnError was off.
	Errors   []error
	Err      error // set when the run aborted
	Started  time.Time
	Duration time.Duration

	Facts     *FactList
	Variables *VariableList
}

// Run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeErrors  = "errors"  // completed with abandoned rules
	OutcomeAborted = "aborted" // stopped on the first error
	OutcomeHalted  = "halted"
)

// Outcome classifies the run as one of the Outcome constants.
func (r *Result) Outcome() string {
	switch {
	case r.Err != nil && errors.Is(r.Err, types.ErrHalted):
		return OutcomeHalted
	case r.Err != nil:
		return OutcomeAborted
	case len(r.Errors) > 0:
		return OutcomeErrors
	}
	return OutcomeOK
}

// Runtime runs one ruleset of a project.
type Runtime struct {
	project  *Project
	ruleset  *Ruleset
	settings settings
}

// NewRuntime resolves rulesetName in p. Returns ErrUnknownRuleset when absent.
func NewRuntime(p *Project, rulesetName string, opts ...Option) (*Runtime, error) {
	rs, err := p.Ruleset(rulesetName)
	if err != nil {
		return nil, err
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Runtime{project: p, ruleset: rs, settings: s}, nil
}

// Ruleset returns the ruleset the runtime executes.
func (rt *Runtime) Ruleset() *Ruleset { return rt.ruleset }

// Open creates an evaluation context over facts and vars. Nil lists are
// replaced by empty ones. The caller must Close it.
func (rt *Runtime) Open(facts *FactList, vars *VariableList) *Context {
	return newContext(rt.project, rt.ruleset, facts, vars, rt.settings)
}

// Run executes the ruleset once. Cancelling ctx halts the run before the
// next statement. The Result is always returned; err is Result.Err.
func (rt *Runtime) Run(ctx context.Context, facts *FactList, vars *VariableList) (*Result, error) {
	c := rt.Open(facts, vars)
	defer c.Close()

	if ctx.Err() != nil {
		c.Halt()
	}
	stop := context.AfterFunc(ctx, c.Halt)
	defer stop()

	res := &Result{
		RunID:     types.NewRunID(),
		Ruleset:   rt.ruleset.Name,
		Started:   time.Now(),
		Facts:     c.facts,
		Variables: c.vars,
	}
	res.Err = c.runRuleset(res)
	res.Duration = time.Since(res.Started)
	return res, res.Err
}
