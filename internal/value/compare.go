// internal/value/compare.go
package value

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Comparison logic.
 *
 * Compare is a three-way comparison with a total order inside each kind:
 *   - Integer vs Integer compares as int64; Integer vs Float compares the
 *     exact values without widening the integer
 *   - NaN orders below every other number and equals nothing under Equal
 *   - String vs number compares numerically if the string parses as a number
 *   - Boolean: false < true
 *   - Date and Time by instant/duration, Identifier by bytes
 *   - Array lexicographically by element
 *   - Null equals only Null
 *
 * Incomparable kinds return ErrTypeMismatch. Equal never fails when either
 * side is Null; it reports false instead so guards like `x == null` work.
 */

// Compare returns -1, 0, or 1 ordering a against b.
func Compare(a, b Value) (int, error) {
	if a.kind == KindNull && b.kind == KindNull {
		return 0, nil
	}

	if na, nb, ok := asNumbers(a, b); ok {
		return na.compare(nb), nil
	}

	if a.kind != b.kind {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", types.ErrTypeMismatch, a.kind, b.kind)
	}

	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s), nil
	case KindBoolean:
		return cmpInt(a.i, b.i), nil
	case KindDate:
		return a.t.Compare(b.t), nil
	case KindTime:
		return cmpInt(a.i, b.i), nil
	case KindIdentifier:
		return bytes.Compare(a.id[:], b.id[:]), nil
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			c, err := Compare(a.arr[i], b.arr[i])
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmpInt(int64(len(a.arr)), int64(len(b.arr))), nil
	case KindHostRef:
		if sameRef(a.ref, b.ref) {
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: %s values are not ordered", types.ErrTypeMismatch, a.kind)
}

// Equal reports whether a and b are equal under Compare semantics.
func Equal(a, b Value) (bool, error) {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == b.kind, nil
	}
	if a.kind == KindHostRef && b.kind == KindHostRef {
		return sameRef(a.ref, b.ref), nil
	}
	if na, nb, ok := asNumbers(a, b); ok && (na.isNaN() || nb.isNaN()) {
		return false, nil
	}
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// Same reports strict equality: same kind and same payload, no coercion.
// Used where a type-aware exact match is required (decision cells).
func Same(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	eq, err := Equal(a, b)
	return err == nil && eq
}

// number is a numeric operand kept in its own representation.
type number struct {
	isInt bool
	i     int64
	f     float64
}

func (n number) isNaN() bool { return !n.isInt && math.IsNaN(n.f) }

func (n number) compare(o number) int {
	switch {
	case n.isInt && o.isInt:
		return cmpInt(n.i, o.i)
	case n.isInt:
		return cmpIntFloat(n.i, o.f)
	case o.isInt:
		return -cmpIntFloat(o.i, n.f)
	}
	return cmp.Compare(n.f, o.f)
}

// asNumbers returns both operands as numbers when both are numeric, or when
// one is numeric and the other a string holding a number.
func asNumbers(a, b Value) (number, number, bool) {
	na, oka := numericOperand(a, b)
	nb, okb := numericOperand(b, a)
	return na, nb, oka && okb
}

func numericOperand(v, other Value) (number, bool) {
	switch v.kind {
	case KindInteger:
		return number{isInt: true, i: v.i}, true
	case KindFloat:
		return number{f: v.f}, true
	case KindString:
		if !other.IsNumeric() {
			return number{}, false
		}
		text := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return number{isInt: true, i: i}, true
		}
		f, err := strconv.ParseFloat(text, 64)
		return number{f: f}, err == nil
	}
	return number{}, false
}

// cmpIntFloat orders i against f exactly. NaN sorts below every integer.
func cmpIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 1<<63:
		return -1
	case f < -(1 << 63):
		return 1
	}
	t := math.Trunc(f)
	if c := cmpInt(i, int64(t)); c != 0 {
		return c
	}
	return cmp.Compare(0, f-t)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// sameRef compares host references by identity. Non-comparable dynamic types
// (maps, slices, funcs) are equal only to themselves by pointer.
func sameRef(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Pointer:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
