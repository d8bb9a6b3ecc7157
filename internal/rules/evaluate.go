// internal/rules/evaluate.go
package rules

import (
	"errors"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Ruleset evaluation orchestration.
 *
 * Evaluation flow per run:
 *   1. Rules sorted by (Priority, SubPriority), stable
 *   2. Per rule: guard (When) -> statement list in a fresh rule scope
 *   3. Rule scope consumes Return and any Break/Continue that escaped loops
 *   4. An error escaping every Try abandons the rule
 *   5. stopOnError: abandon the run too; otherwise record and go on
 *
 * Halt is checked between rules as well as between statements and always
 * ends the run with ErrHalted, regardless of stopOnError.
 *
 * A guard that fails to evaluate is a rule error, handled like an error in
 * the body. A false guard skips the rule and does not count as fired.
 */

// runRuleset executes every rule of the context's ruleset, filling res.
func (c *Context) runRuleset(res *Result) error {
	if c.closed.Load() {
		return types.ErrContextClosed
	}
	defer func() { c.rule = nil }()

	for _, r := range c.ruleset.Ordered() {
		if c.halted.Load() {
			c.step(Event{Status: StatusHalted})
			return types.ErrHalted
		}
		res.RulesEvaluated++
		fired, err := c.runRule(r)
		if fired {
			res.RulesFired++
		}
		if err == nil {
			continue
		}
		if errors.Is(err, types.ErrHalted) {
			c.step(Event{Status: StatusHalted})
			return err
		}
		if c.stopOnError {
			return err
		}
		res.Errors = append(res.Errors, err)
	}
	return nil
}

// runRule evaluates one rule. fired reports whether its guard passed.
func (c *Context) runRule(r *Rule) (fired bool, err error) {
	c.rule = r
	c.step(Event{Status: StatusRuleStart})

	root := &scope{kind: ruleScope}
	if r.When != nil {
		v, sig := c.eval(r.When, root)
		if sig.State != StateRunning {
			return false, c.endRule(sig)
		}
		ok, terr := value.Truth(v)
		if terr != nil {
			return false, c.endRule(c.fail(r.When, terr))
		}
		if !ok {
			c.step(Event{Status: StatusRuleSkipped})
			return false, nil
		}
	}

	return true, c.endRule(c.execList(r.Do, root))
}

// endRule applies the rule scope's consumption policy to the final signal.
func (c *Context) endRule(sig Signal) error {
	switch sig.State {
	case StateErrorRaised:
		c.step(Event{Status: StatusError, State: sig.State, Err: sig.Err})
		return sig.Err
	case StateHalted:
		return types.ErrHalted
	}
	c.step(Event{Status: StatusRuleEnd, State: sig.State})
	return nil
}
