// internal/rules/scope.go
package rules

import (
	"fmt"

	"github.com/solatis/sweetbre/internal/names"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Scope stack and control signals.
 *
 * Every nested block runs in its own scope. Statement lists return a Signal
 * and stop at the first statement whose signal is not Running. The scope
 * that ran the list decides whether it consumes the signal or forwards it:
 *
 *   scope    consumes                       forwards
 *   rule     Return, Break, Continue        ErrorRaised, Halted
 *   loop     Break, Continue                Return, ErrorRaised, Halted
 *   try      ErrorRaised (body only)        Break, Continue, Return, Halted
 *   block    nothing                        everything
 *
 * Halted is never consumed below the context. A Break or Continue outside
 * any loop ends the rule like Return.
 */

// ScopeState is the control state of a scope after running a statement.
type ScopeState int

const (
	StateRunning ScopeState = iota
	StateBreak
	StateContinue
	StateReturn
	StateErrorRaised
	StateHalted
)

var stateNames = [...]string{
	StateRunning:     "running",
	StateBreak:       "break",
	StateContinue:    "continue",
	StateReturn:      "return",
	StateErrorRaised: "error",
	StateHalted:      "halted",
}

func (s ScopeState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Signal is the outcome of evaluating a node or statement list.
// Err is set only for StateErrorRaised.
type Signal struct {
	State ScopeState
	Err   error
}

var running = Signal{}

func raised(err error) Signal { return Signal{State: StateErrorRaised, Err: err} }

type scopeKind int

const (
	ruleScope scopeKind = iota
	loopScope
	tryScope
	blockScope
)

// scope is one frame of the stack. Loop scopes bind a read-only counter.
type scope struct {
	kind    scopeKind
	parent  *scope
	counter string
	index   value.Value
}

func (s *scope) push(kind scopeKind) *scope {
	return &scope{kind: kind, parent: s}
}

func (s *scope) loop(counter string, index int64) *scope {
	return &scope{kind: loopScope, parent: s, counter: counter, index: value.Int(index)}
}

// lookupCounter finds the innermost loop counter named name.
func (s *scope) lookupCounter(name string) (value.Value, bool) {
	key := names.Normalize(name)
	for sc := s; sc != nil; sc = sc.parent {
		if sc.counter != "" && names.Normalize(sc.counter) == key {
			return sc.index, true
		}
	}
	return value.Null(), false
}

// depth counts frames to the rule scope.
func (s *scope) depth() int {
	d := 0
	for sc := s; sc.parent != nil; sc = sc.parent {
		d++
	}
	return d
}
