// internal/value/arith.go
package value

import (
	"fmt"
	"math"
	"time"

	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Arithmetic with kind promotion.
 *
 * Promotion rules:
 *   - Integer op Integer stays Integer for + - * %
 *   - any Float operand promotes the result to Float
 *   - / always yields Float (18*9/5 = 32.4, never 32)
 *   - + with a String operand concatenates using the standard string conversion
 *   - Date + Time -> Date, Date - Time -> Date, Date - Date -> Time, Time +- Time -> Time
 *   - Array + Array concatenates
 *
 * Division and modulo by zero return ErrDivisionByZero for both Integer and Float.
 * Integer and Time results that leave the int64 range return ErrTypeMismatch
 * instead of wrapping; they are never promoted to Float.
 */

// Add returns a + b.
func Add(a, b Value) (Value, error) {
	if a.kind == KindString || b.kind == KindString {
		return String(a.String() + b.String()), nil
	}
	switch {
	case a.kind == KindInteger && b.kind == KindInteger:
		return checked(Int, "+")(addInt(a.i, b.i))
	case a.IsNumeric() && b.IsNumeric():
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return Float(fa + fb), nil
	case a.kind == KindDate && b.kind == KindTime:
		return Date(a.t.Add(time.Duration(b.i))), nil
	case a.kind == KindTime && b.kind == KindDate:
		return Date(b.t.Add(time.Duration(a.i))), nil
	case a.kind == KindTime && b.kind == KindTime:
		return checked(duration, "+")(addInt(a.i, b.i))
	case a.kind == KindArray && b.kind == KindArray:
		arr := make([]Value, 0, len(a.arr)+len(b.arr))
		arr = append(arr, a.arr...)
		arr = append(arr, b.arr...)
		return Value{kind: KindArray, arr: arr}, nil
	}
	return Null(), mismatch("+", a, b)
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	switch {
	case a.kind == KindInteger && b.kind == KindInteger:
		return checked(Int, "-")(subInt(a.i, b.i))
	case a.IsNumeric() && b.IsNumeric():
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return Float(fa - fb), nil
	case a.kind == KindDate && b.kind == KindDate:
		return Time(a.t.Sub(b.t)), nil
	case a.kind == KindDate && b.kind == KindTime:
		return Date(a.t.Add(-time.Duration(b.i))), nil
	case a.kind == KindTime && b.kind == KindTime:
		return checked(duration, "-")(subInt(a.i, b.i))
	}
	return Null(), mismatch("-", a, b)
}

// Mul returns a * b.
func Mul(a, b Value) (Value, error) {
	switch {
	case a.kind == KindInteger && b.kind == KindInteger:
		return checked(Int, "*")(mulInt(a.i, b.i))
	case a.IsNumeric() && b.IsNumeric():
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		return Float(fa * fb), nil
	case a.kind == KindTime && b.IsNumeric():
		fb, _ := b.AsFloat()
		return Time(time.Duration(float64(a.i) * fb)), nil
	}
	return Null(), mismatch("*", a, b)
}

// Div returns a / b as Float.
func Div(a, b Value) (Value, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null(), mismatch("/", a, b)
	}
	fa, _ := a.AsFloat()
	fb, _ := b.AsFloat()
	if fb == 0 {
		return Null(), types.ErrDivisionByZero
	}
	return Float(fa / fb), nil
}

// Mod returns the remainder of a / b. Integer operands keep Integer.
func Mod(a, b Value) (Value, error) {
	switch {
	case a.kind == KindInteger && b.kind == KindInteger:
		if b.i == 0 {
			return Null(), types.ErrDivisionByZero
		}
		return Int(a.i % b.i), nil
	case a.IsNumeric() && b.IsNumeric():
		fa, _ := a.AsFloat()
		fb, _ := b.AsFloat()
		if fb == 0 {
			return Null(), types.ErrDivisionByZero
		}
		return Float(math.Mod(fa, fb)), nil
	}
	return Null(), mismatch("%", a, b)
}

// Neg returns -a.
func Neg(a Value) (Value, error) {
	switch a.kind {
	case KindInteger:
		return checked(Int, "-")(subInt(0, a.i))
	case KindFloat:
		return Float(-a.f), nil
	case KindTime:
		return checked(duration, "-")(subInt(0, a.i))
	}
	return Null(), fmt.Errorf("%w: cannot negate %s", types.ErrTypeMismatch, a.kind)
}

// Not returns the boolean negation of a.
func Not(a Value) (Value, error) {
	b, ok := a.AsBool()
	if !ok {
		return Null(), fmt.Errorf("%w: cannot apply not to %s", types.ErrTypeMismatch, a.kind)
	}
	return Bool(!b), nil
}

// Truth extracts a Boolean guard. Non-boolean values are a type mismatch;
// rules never rely on truthiness of numbers or strings.
func Truth(a Value) (bool, error) {
	b, ok := a.AsBool()
	if !ok {
		return false, fmt.Errorf("%w: expected boolean, got %s", types.ErrTypeMismatch, a.kind)
	}
	return b, nil
}

func addInt(a, b int64) (int64, bool) {
	r := a + b
	return r, (r > a) == (b > 0)
}

func subInt(a, b int64) (int64, bool) {
	r := a - b
	return r, (r < a) == (b > 0)
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return r, false
	}
	return r, true
}

func duration(n int64) Value { return Time(time.Duration(n)) }

// checked wraps an overflow-reporting integer operation into a Value result.
func checked(mk func(int64) Value, op string) func(int64, bool) (Value, error) {
	return func(n int64, ok bool) (Value, error) {
		if !ok {
			return Null(), fmt.Errorf("%w: integer overflow in %s", types.ErrTypeMismatch, op)
		}
		return mk(n), nil
	}
}

func mismatch(op string, a, b Value) error {
	return fmt.Errorf("%w: %s %s %s", types.ErrTypeMismatch, a.kind, op, b.kind)
}
