// internal/rules/context.go
package rules

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/solatis/sweetbre/internal/functions"
	"github.com/solatis/sweetbre/internal/hostpath"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Evaluation context.
 *
 * A Context is one run's view of the world: the project graph (read-only),
 * the fact and variable lists it owns for the run, the function registry,
 * the stop-on-error policy, and the last error caught by a Try. It is used
 * from a single goroutine; only Halt may be called concurrently.
 *
 * Lifecycle:
 *   open (Runtime.Open) -> Evaluate/Execute/run ... -> Close
 *
 * After Close every entry point returns ErrContextClosed. Halt is checked
 * before each statement and unwinds every active scope to the context
 * boundary with StateHalted.
 */

// Context evaluates statement trees against one set of facts and variables.
type Context struct {
	project     *Project
	ruleset     *Ruleset
	facts       *FactList
	vars        *VariableList
	functions   *functions.Registry
	paths       hostpath.Evaluator
	stopOnError bool
	debugger    Debugger
	output      io.Writer

	halted   atomic.Bool
	done     chan struct{}
	haltOnce sync.Once
	closed   atomic.Bool

	rule      *Rule
	lastError error
}

func newContext(p *Project, rs *Ruleset, facts *FactList, vars *VariableList, s settings) *Context {
	if facts == nil {
		facts = NewFactList()
	}
	if vars == nil {
		vars = NewVariableList()
	}
	return &Context{
		project:     p,
		ruleset:     rs,
		facts:       facts,
		vars:        vars,
		functions:   s.functions,
		paths:       hostpath.Evaluator{Functions: s.functions},
		stopOnError: s.stopOnError,
		debugger:    s.debugger,
		output:      s.output,
		done:        make(chan struct{}),
	}
}

// Facts returns the fact list the context reads and writes.
func (c *Context) Facts() *FactList { return c.facts }

// Variables returns the variable list the context reads and writes.
func (c *Context) Variables() *VariableList { return c.vars }

// StopOnError reports whether an uncaught error aborts the whole run.
func (c *Context) StopOnError() bool { return c.stopOnError }

// LastError returns the most recent error caught by a Try, or nil.
func (c *Context) LastError() error { return c.lastError }

// Halt requests that evaluation stop before the next statement.
// Safe to call from any goroutine, any number of times.
func (c *Context) Halt() {
	c.halted.Store(true)
	c.haltOnce.Do(func() { close(c.done) })
}

// Halted reports whether Halt was called.
func (c *Context) Halted() bool { return c.halted.Load() }

// Close releases the context. Further use returns ErrContextClosed.
func (c *Context) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.Halt()
	return nil
}

// Evaluate evaluates a single node outside any rule.
func (c *Context) Evaluate(n Node) (value.Value, error) {
	if c.closed.Load() {
		return value.Null(), types.ErrContextClosed
	}
	v, sig := c.eval(n, &scope{kind: ruleScope})
	return v, sig.err()
}

// Execute runs a statement list in a fresh rule scope and returns the
// state it ended in. Return, Break, and Continue are reported, not consumed.
func (c *Context) Execute(list []Node) (ScopeState, error) {
	if c.closed.Load() {
		return StateRunning, types.ErrContextClosed
	}
	sig := c.execList(list, &scope{kind: ruleScope})
	return sig.State, sig.err()
}

func (s Signal) err() error {
	switch s.State {
	case StateErrorRaised:
		return s.Err
	case StateHalted:
		return types.ErrHalted
	}
	return nil
}

func (c *Context) ruleName() string {
	if c.rule == nil {
		return ""
	}
	return c.rule.Name
}

func (c *Context) rulesetName() string {
	if c.ruleset == nil {
		return ""
	}
	return c.ruleset.Name
}

func (c *Context) step(e Event) {
	if c.debugger == nil {
		return
	}
	e.Ruleset = c.rulesetName()
	e.Rule = c.ruleName()
	c.debugger.Step(e)
}

// fail raises err at node n.
func (c *Context) fail(n Node, err error) Signal {
	return raised(wrap(n, c.ruleName(), err))
}

var haltSignal = Signal{State: StateHalted, Err: types.ErrHalted}

// execList runs statements in order and stops at the first non-running signal.
func (c *Context) execList(list []Node, sc *scope) Signal {
	for _, n := range list {
		if c.halted.Load() {
			return haltSignal
		}
		_, sig := c.eval(n, sc)
		c.step(Event{Status: StatusStatement, Statement: n, State: sig.State, Err: sig.Err})
		if sig.State != StateRunning {
			return sig
		}
	}
	return running
}

// decisionState exposes the context to decision tables and trees.
// Reads see loop counters, then variables, then facts. Writes go to an
// existing fact when no variable of that name exists, else to a variable.
type decisionState struct {
	c  *Context
	sc *scope
}

func (s decisionState) Lookup(name string) (value.Value, bool) {
	if v, ok := s.sc.lookupCounter(name); ok {
		return v, true
	}
	if v, ok := s.c.vars.Get(name); ok {
		return v, true
	}
	return s.c.facts.Get(name)
}

func (s decisionState) Assign(name string, v value.Value) error {
	if _, ok := s.sc.lookupCounter(name); ok {
		return fmt.Errorf("%w: loop counter %q", types.ErrReadOnly, name)
	}
	if !s.c.vars.Has(name) && s.c.facts.Has(name) {
		s.c.facts.Set(name, v)
		return nil
	}
	s.c.vars.Set(name, v)
	return nil
}

// errorView is the LastError member of the context host.
type errorView struct {
	Message string
	Kind    string
	Rule    string
}

func newErrorView(err error) errorView {
	view := errorView{Message: err.Error(), Kind: ErrorKind(err)}
	var re *RuleError
	var se *StatementError
	switch {
	case errors.As(err, &re):
		view.Rule = re.Rule
	case errors.As(err, &se):
		view.Rule = se.Rule
		view.Message = se.Cause.Error()
	}
	return view
}
