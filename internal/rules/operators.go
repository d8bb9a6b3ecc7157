// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Operator dispatch.
 *
 * Binary, Unary, and Group nodes name an Operator; apply maps it onto the
 * value package. Arithmetic follows value promotion (/ always Float, String
 * + concatenates). Comparison uses value.Compare, equality value.Equal so
 * that null == null holds and null == 0 is false without error.
 *
 * Operators:
 *   - add/sub/mul/div/mod: arithmetic
 *   - eq/neq: equality, Null-safe
 *   - lt/lte/gt/gte: ordering, ErrTypeMismatch across incomparable kinds
 *   - and/or: Boolean only, short-circuited by the evaluator
 *   - neg/not: unary
 */

// Operator identifies an arithmetic, comparison, or logical operation.
type Operator int

const (
	OpUnspecified Operator = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpNeg
	OpNot
)

var operatorSymbols = [...]string{
	OpUnspecified: "?",
	OpAdd:         "+",
	OpSub:         "-",
	OpMul:         "*",
	OpDiv:         "/",
	OpMod:         "%",
	OpEq:          "==",
	OpNeq:         "!=",
	OpLt:          "<",
	OpLte:         "<=",
	OpGt:          ">",
	OpGte:         ">=",
	OpAnd:         "and",
	OpOr:          "or",
	OpNeg:         "neg",
	OpNot:         "not",
}

func (op Operator) String() string {
	if op >= 0 && int(op) < len(operatorSymbols) {
		return operatorSymbols[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// ParseOperator accepts operator symbols ("+", "<=") and names ("add", "lte").
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "add", "plus":
		return OpAdd, nil
	case "-", "sub", "subtract", "minus":
		return OpSub, nil
	case "*", "mul", "multiply", "times":
		return OpMul, nil
	case "/", "div", "divide":
		return OpDiv, nil
	case "%", "mod", "modulo":
		return OpMod, nil
	case "==", "=", "eq", "equal":
		return OpEq, nil
	case "!=", "<>", "neq", "notequal":
		return OpNeq, nil
	case "<", "lt", "less":
		return OpLt, nil
	case "<=", "lte", "lessorequal":
		return OpLte, nil
	case ">", "gt", "greater":
		return OpGt, nil
	case ">=", "gte", "greaterorequal":
		return OpGte, nil
	case "&&", "and":
		return OpAnd, nil
	case "||", "or":
		return OpOr, nil
	case "neg", "negate":
		return OpNeg, nil
	case "!", "not":
		return OpNot, nil
	}
	return OpUnspecified, fmt.Errorf("unknown operator %q", s)
}

// IsLogical reports whether op short-circuits.
func (op Operator) IsLogical() bool { return op == OpAnd || op == OpOr }

// apply evaluates a non-short-circuit binary operator.
// And/Or reach here only with both operands already evaluated.
func apply(op Operator, a, b value.Value) (value.Value, error) {
	switch op {
	case OpAdd:
		return value.Add(a, b)
	case OpSub:
		return value.Sub(a, b)
	case OpMul:
		return value.Mul(a, b)
	case OpDiv:
		return value.Div(a, b)
	case OpMod:
		return value.Mod(a, b)
	case OpEq:
		eq, err := value.Equal(a, b)
		return value.Bool(eq), err
	case OpNeq:
		eq, err := value.Equal(a, b)
		return value.Bool(!eq), err
	case OpLt, OpLte, OpGt, OpGte:
		c, err := value.Compare(a, b)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(ordered(op, c)), nil
	case OpAnd, OpOr:
		l, err := value.Truth(a)
		if err != nil {
			return value.Null(), err
		}
		r, err := value.Truth(b)
		if err != nil {
			return value.Null(), err
		}
		if op == OpAnd {
			return value.Bool(l && r), nil
		}
		return value.Bool(l || r), nil
	}
	return value.Null(), fmt.Errorf("%w: %s is not a binary operator", types.ErrTypeMismatch, op)
}

func ordered(op Operator, c int) bool {
	switch op {
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

// applyUnary evaluates neg and not.
func applyUnary(op Operator, a value.Value) (value.Value, error) {
	switch op {
	case OpNeg, OpSub:
		return value.Neg(a)
	case OpNot:
		return value.Not(a)
	}
	return value.Null(), fmt.Errorf("%w: %s is not a unary operator", types.ErrTypeMismatch, op)
}

// shortCircuit reports whether the left operand alone decides a logical op.
func shortCircuit(op Operator, left bool) bool {
	return (op == OpAnd && !left) || (op == OpOr && left)
}
