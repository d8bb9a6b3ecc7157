package types

import "errors"

// Sentinel errors for rule evaluation.
// Evaluation errors wrap exactly one of these so callers can errors.Is on the kind.
var (
	// ErrTypeMismatch indicates an operand kind the operation cannot accept.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDivisionByZero indicates a zero divisor for / or %.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrCoercionFailed indicates a value cannot be converted to a declared kind.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrUnknownFunction indicates a call to a name absent from the function registry.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArityMismatch indicates a call with the wrong number of arguments.
	ErrArityMismatch = errors.New("argument count mismatch")

	// ErrMemberNotFound indicates a reflection path step that cannot be resolved.
	ErrMemberNotFound = errors.New("member not found")

	// ErrInvocationFailed indicates a dynamic method call that panicked or returned an error.
	ErrInvocationFailed = errors.New("invocation failed")

	// ErrPathSyntax indicates malformed reflection path text.
	ErrPathSyntax = errors.New("invalid path syntax")

	// ErrIndexOutOfRange indicates an array index outside bounds.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMissingFact indicates a read of a fact that does not exist.
	ErrMissingFact = errors.New("fact not found")

	// ErrMissingVariable indicates a read of a variable that does not exist.
	ErrMissingVariable = errors.New("variable not found")

	// ErrReadOnly indicates a write to a loop counter.
	ErrReadOnly = errors.New("variable is read-only")

	// ErrUserRaised marks errors manufactured by a RaiseError statement.
	ErrUserRaised = errors.New("rule raised error")

	// ErrTableShapeMismatch indicates a decision table row whose width differs from its columns.
	ErrTableShapeMismatch = errors.New("decision table row width does not match columns")

	// ErrMalformedTree indicates a decision tree without a root or with a cycle.
	ErrMalformedTree = errors.New("malformed decision tree")

	// ErrUnknownDecision indicates a reference to a table or tree the project does not define.
	ErrUnknownDecision = errors.New("unknown decision table or tree")

	// ErrDuplicateName indicates a fact, variable, rule, or function name collision.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownRuleset indicates a reference to a ruleset the project does not define.
	ErrUnknownRuleset = errors.New("unknown ruleset")

	// ErrHalted indicates the run was stopped by the host between statements.
	ErrHalted = errors.New("evaluation halted")

	// ErrContextClosed indicates use of an evaluation context after release.
	ErrContextClosed = errors.New("evaluation context closed")

	// ErrInvalidRule indicates a statement tree that cannot be evaluated
	// (nil node, unnamed loop counter, nesting too deep).
	ErrInvalidRule = errors.New("invalid rule definition")

	// ErrNoProject indicates a run requested before any project was loaded.
	ErrNoProject = errors.New("no project loaded")
)
