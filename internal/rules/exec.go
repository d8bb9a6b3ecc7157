// internal/rules/exec.go
package rules

import (
	"fmt"
	"time"

	"github.com/solatis/sweetbre/internal/hostpath"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Node evaluation.
 *
 * eval is the single dispatch over the closed Node set. Every case returns
 * the node's value (Null for statements) and a Signal; callers must check
 * the signal before using the value. Errors are raised as StateErrorRaised
 * carrying a *StatementError or *RuleError, never returned as a default value.
 *
 * Block scopes:
 *   If/Switch arms and Try handlers  -> blockScope
 *   Try body                         -> tryScope
 *   For/While/RepeatUntil bodies     -> loopScope (one per iteration)
 */

func (c *Context) eval(n Node, sc *scope) (value.Value, Signal) {
	null := value.Null()

	switch n := n.(type) {
	case *Literal:
		return n.Value, running

	case *FactRef:
		v, ok := c.facts.Get(n.Name)
		if !ok {
			return null, c.fail(n, fmt.Errorf("%w: %q", types.ErrMissingFact, n.Name))
		}
		return v, running

	case *VariableRef:
		if v, ok := sc.lookupCounter(n.Name); ok {
			return v, running
		}
		v, ok := c.vars.Get(n.Name)
		if !ok {
			return null, c.fail(n, fmt.Errorf("%w: %q", types.ErrMissingVariable, n.Name))
		}
		return v, running

	case *Binary:
		left, sig := c.eval(n.Left, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		if n.Op.IsLogical() {
			l, err := value.Truth(left)
			if err != nil {
				return null, c.fail(n, err)
			}
			if shortCircuit(n.Op, l) {
				return value.Bool(l), running
			}
		}
		right, sig := c.eval(n.Right, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		v, err := apply(n.Op, left, right)
		if err != nil {
			return null, c.fail(n, err)
		}
		return v, running

	case *Unary:
		operand, sig := c.eval(n.Operand, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		v, err := applyUnary(n.Op, operand)
		if err != nil {
			return null, c.fail(n, err)
		}
		return v, running

	case *Group:
		return c.evalGroup(n, sc)

	case *Call:
		args, sig := c.evalArgs(n.Args, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		v, err := c.functions.Call(n.Name, args)
		if err != nil {
			return null, c.fail(n, err)
		}
		return v, running

	case *ItemOf:
		coll, sig := c.eval(n.Collection, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		idx, sig := c.eval(n.Index, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		v, err := itemOf(coll, idx)
		if err != nil {
			return null, c.fail(n, err)
		}
		return v, running

	case *Path:
		return c.evalPath(n, sc)

	case *ContextRef:
		return value.HostRef(&contextHost{c: c}), running

	case *SetFact:
		v, sig := c.eval(n.Value, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		c.facts.Set(n.Name, v)
		return null, running

	case *SetVariable:
		if _, ok := sc.lookupCounter(n.Name); ok {
			return null, c.fail(n, fmt.Errorf("%w: loop counter %q", types.ErrReadOnly, n.Name))
		}
		v, sig := c.eval(n.Value, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		c.vars.Set(n.Name, v)
		return null, running

	case *If:
		ok, sig := c.condition(n.Cond, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		if ok {
			return null, c.execList(n.Then, sc.push(blockScope))
		}
		return null, c.execList(n.Else, sc.push(blockScope))

	case *For:
		return null, c.evalFor(n, sc)

	case *While:
		return null, c.evalWhile(n, sc)

	case *RepeatUntil:
		return null, c.evalRepeat(n, sc)

	case *Switch:
		return null, c.evalSwitch(n, sc)

	case *Continue:
		return null, c.control(n.When, sc, StateContinue)

	case *Break:
		return null, c.control(n.When, sc, StateBreak)

	case *Return:
		return null, Signal{State: StateReturn}

	case *RaiseError:
		msg, sig := c.eval(n.Message, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		return null, raised(&RuleError{Message: msg.String(), Rule: c.ruleName()})

	case *Try:
		return null, c.evalTry(n, sc)

	case *Sleep:
		return null, c.evalSleep(n, sc)

	case *Print:
		v, sig := c.eval(n.Value, sc)
		if sig.State != StateRunning {
			return null, sig
		}
		if _, err := fmt.Fprintln(c.output, v.String()); err != nil {
			return null, c.fail(n, err)
		}
		return null, running

	case *EvaluateTable:
		table, err := c.project.Table(n.Name)
		if err == nil {
			_, err = table.Evaluate(decisionState{c: c, sc: sc})
		}
		if err != nil {
			return null, c.fail(n, err)
		}
		return null, running

	case *EvaluateTree:
		tree, err := c.project.Tree(n.Name)
		if err == nil {
			_, err = tree.Evaluate(decisionState{c: c, sc: sc})
		}
		if err != nil {
			return null, c.fail(n, err)
		}
		return null, running
	}

	return null, c.fail(n, fmt.Errorf("%w: unsupported node %T", types.ErrInvalidRule, n))
}

// condition evaluates a Boolean guard.
func (c *Context) condition(n Node, sc *scope) (bool, Signal) {
	v, sig := c.eval(n, sc)
	if sig.State != StateRunning {
		return false, sig
	}
	ok, err := value.Truth(v)
	if err != nil {
		return false, c.fail(n, err)
	}
	return ok, running
}

func (c *Context) evalArgs(nodes []Node, sc *scope) ([]value.Value, Signal) {
	args := make([]value.Value, len(nodes))
	for i, a := range nodes {
		v, sig := c.eval(a, sc)
		if sig.State != StateRunning {
			return nil, sig
		}
		args[i] = v
	}
	return args, running
}

// evalGroup folds left to right. A decided and/or skips its operand.
func (c *Context) evalGroup(n *Group, sc *scope) (value.Value, Signal) {
	acc, sig := c.eval(n.Base, sc)
	if sig.State != StateRunning {
		return value.Null(), sig
	}
	for _, op := range n.Ops {
		if op.Op.IsLogical() {
			l, err := value.Truth(acc)
			if err != nil {
				return value.Null(), c.fail(n, err)
			}
			if shortCircuit(op.Op, l) {
				acc = value.Bool(l)
				continue
			}
		}
		rhs, sig := c.eval(op.Operand, sc)
		if sig.State != StateRunning {
			return value.Null(), sig
		}
		var err error
		if acc, err = apply(op.Op, acc, rhs); err != nil {
			return value.Null(), c.fail(n, err)
		}
	}
	return acc, running
}

func itemOf(coll, idx value.Value) (value.Value, error) {
	elems, ok := coll.AsArray()
	if !ok {
		return value.Null(), fmt.Errorf("%w: ItemOf needs an array, got %s", types.ErrTypeMismatch, coll.Kind())
	}
	i, err := integer(idx)
	if err != nil {
		return value.Null(), err
	}
	if i < 0 || i >= int64(len(elems)) {
		return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, i, len(elems))
	}
	return elems[i], nil
}

// integer coerces v to an int64 loop count or index.
func integer(v value.Value) (int64, error) {
	iv, err := value.Coerce(v, value.KindInteger)
	if err != nil {
		return 0, err
	}
	i, ok := iv.AsInt()
	if !ok {
		return 0, fmt.Errorf("%w: expected integer, got %s", types.ErrTypeMismatch, v.Kind())
	}
	return i, nil
}

func (c *Context) evalPath(n *Path, sc *scope) (value.Value, Signal) {
	root, sig := c.eval(n.Root, sc)
	if sig.State != StateRunning {
		return value.Null(), sig
	}
	args, sig := c.evalArgs(n.Args, sc)
	if sig.State != StateRunning {
		return value.Null(), sig
	}
	steps := n.steps
	if steps == nil && n.Text != "" {
		var err error
		if steps, err = hostpath.Parse(n.Text); err != nil {
			return value.Null(), c.fail(n, err)
		}
	}
	v, err := c.paths.Evaluate(root, steps, args)
	if err != nil {
		return value.Null(), c.fail(n, err)
	}
	return v, running
}

// control produces a Break or Continue signal when its optional condition holds.
func (c *Context) control(when Node, sc *scope, state ScopeState) Signal {
	if when != nil {
		ok, sig := c.condition(when, sc)
		if sig.State != StateRunning || !ok {
			return sig
		}
	}
	return Signal{State: state}
}

// loopBody runs one iteration and reports whether the loop should go on.
// Break and Continue stop at the loop; every other state propagates.
func (c *Context) loopBody(body []Node, sc *scope) (bool, Signal) {
	sig := c.execList(body, sc)
	switch sig.State {
	case StateRunning, StateContinue:
		return true, running
	case StateBreak:
		return false, running
	}
	return false, sig
}

func (c *Context) evalFor(n *For, sc *scope) Signal {
	countV, sig := c.eval(n.Count, sc)
	if sig.State != StateRunning {
		return sig
	}
	count, err := integer(countV)
	if err != nil {
		return c.fail(n, err)
	}
	for i := int64(0); i < count; i++ {
		if c.halted.Load() {
			return haltSignal
		}
		more, sig := c.loopBody(n.Do, sc.loop(n.Counter, i))
		if !more {
			return sig
		}
	}
	return running
}

func (c *Context) evalWhile(n *While, sc *scope) Signal {
	for {
		if c.halted.Load() {
			return haltSignal
		}
		ok, sig := c.condition(n.Cond, sc)
		if sig.State != StateRunning || !ok {
			return sig
		}
		more, sig := c.loopBody(n.Do, sc.push(loopScope))
		if !more {
			return sig
		}
	}
}

func (c *Context) evalRepeat(n *RepeatUntil, sc *scope) Signal {
	for {
		if c.halted.Load() {
			return haltSignal
		}
		more, sig := c.loopBody(n.Do, sc.push(loopScope))
		if !more {
			return sig
		}
		done, sig := c.condition(n.Until, sc)
		if sig.State != StateRunning || done {
			return sig
		}
	}
}

func (c *Context) evalSwitch(n *Switch, sc *scope) Signal {
	sel, sig := c.eval(n.Selector, sc)
	if sig.State != StateRunning {
		return sig
	}
	for _, cs := range n.Cases {
		for _, cv := range cs.Values {
			v, sig := c.eval(cv, sc)
			if sig.State != StateRunning {
				return sig
			}
			eq, err := value.Equal(sel, v)
			if err != nil {
				return c.fail(n, err)
			}
			if eq {
				return c.execList(cs.Do, sc.push(blockScope))
			}
		}
	}
	return c.execList(n.Default, sc.push(blockScope))
}

// evalTry catches errors raised by the body only. OnError and Finally run
// outside interception; a non-running Finally overrides the pending signal.
func (c *Context) evalTry(n *Try, sc *scope) Signal {
	sig := c.execList(n.Do, sc.push(tryScope))
	if sig.State == StateErrorRaised {
		c.lastError = sig.Err
		c.step(Event{Status: StatusError, Statement: n, State: sig.State, Err: sig.Err})
		sig = c.execList(n.OnError, sc.push(blockScope))
	}
	if len(n.Finally) > 0 {
		if fin := c.execList(n.Finally, sc.push(blockScope)); fin.State != StateRunning {
			return fin
		}
	}
	return sig
}

func (c *Context) evalSleep(n *Sleep, sc *scope) Signal {
	v, sig := c.eval(n.Duration, sc)
	if sig.State != StateRunning {
		return sig
	}
	var d time.Duration
	switch v.Kind() {
	case value.KindTime:
		d, _ = v.AsTime()
	case value.KindInteger, value.KindFloat:
		ms, _ := v.AsFloat()
		d = time.Duration(ms * float64(time.Millisecond))
	default:
		return c.fail(n, fmt.Errorf("%w: sleep needs milliseconds or a time, got %s", types.ErrTypeMismatch, v.Kind()))
	}
	if d <= 0 {
		return running
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return running
	case <-c.done:
		return haltSignal
	}
}
