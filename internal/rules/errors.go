// internal/rules/errors.go
package rules

import (
	"errors"
	"fmt"

	"github.com/solatis/sweetbre/internal/types"
)

// StatementError is an evaluation failure at a specific node.
// It unwraps to both the sentinel kind and the underlying cause, so
// errors.Is(err, types.ErrTypeMismatch) works through it.
type StatementError struct {
	Err   error // sentinel from internal/types, nil if unclassified
	Node  Node
	Rule  string
	Cause error
}

func (e *StatementError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("rule %q: %s: %v", e.Rule, Describe(e.Node), e.Cause)
	}
	return fmt.Sprintf("%s: %v", Describe(e.Node), e.Cause)
}

func (e *StatementError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Err, e.Cause}
}

// RuleError is raised by a RaiseError statement. Error returns the message verbatim.
type RuleError struct {
	Message string
	Rule    string
}

func (e *RuleError) Error() string { return e.Message }

// Is matches types.ErrUserRaised.
func (e *RuleError) Is(target error) bool { return target == types.ErrUserRaised }

// sentinels lists the error kinds a StatementError is classified into, most
// specific first.
var sentinels = []error{
	types.ErrUserRaised,
	types.ErrDivisionByZero,
	types.ErrIndexOutOfRange,
	types.ErrMissingFact,
	types.ErrMissingVariable,
	types.ErrReadOnly,
	types.ErrUnknownFunction,
	types.ErrArityMismatch,
	types.ErrMemberNotFound,
	types.ErrInvocationFailed,
	types.ErrPathSyntax,
	types.ErrCoercionFailed,
	types.ErrTableShapeMismatch,
	types.ErrMalformedTree,
	types.ErrUnknownDecision,
	types.ErrDuplicateName,
	types.ErrTypeMismatch,
	types.ErrHalted,
}

// classify returns the first sentinel err matches, or nil.
func classify(err error) error {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

// ErrorKind names the sentinel kind of err ("type mismatch", "rule raised error"),
// or "error" when unclassified.
func ErrorKind(err error) string {
	if s := classify(err); s != nil {
		return s.Error()
	}
	return "error"
}

// wrap attaches node and rule context to err unless it already carries it.
func wrap(n Node, rule string, err error) error {
	var se *StatementError
	if errors.As(err, &se) {
		return err
	}
	var re *RuleError
	if errors.As(err, &re) {
		return err
	}
	return &StatementError{Err: classify(err), Node: n, Rule: rule, Cause: err}
}
