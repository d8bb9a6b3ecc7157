// internal/value/value.go
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

/*
 * Dynamically-typed runtime value.
 *
 * Every statement in a rule tree evaluates to a Value. A Value is a small
 * tagged struct rather than an interface so that scalars never allocate and
 * equality of kinds is a single integer compare.
 *
 * Kinds:
 *   - Null: absence of a value
 *   - Integer (int64), Float (float64), Boolean, String
 *   - Date (time.Time), Time (time of day or span, time.Duration)
 *   - Identifier (uuid.UUID)
 *   - Array (ordered []Value)
 *   - HostRef (opaque reference to an object owned by the host application)
 *
 * Values are immutable. Array values share their backing slice; Array()
 * copies on construction so callers cannot mutate a value after the fact.
 */

// Kind identifies the runtime value category.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindString
	KindDate
	KindTime
	KindIdentifier
	KindArray
	KindHostRef
)

var kindNames = [...]string{
	KindNull:       "null",
	KindInteger:    "integer",
	KindFloat:      "float",
	KindBoolean:    "boolean",
	KindString:     "string",
	KindDate:       "date",
	KindTime:       "time",
	KindIdentifier: "identifier",
	KindArray:      "array",
	KindHostRef:    "hostref",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a declared type name to its Kind.
// Accepts the canonical names plus the common aliases used by rule documents.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null", "none":
		return KindNull, true
	case "integer", "int", "long":
		return KindInteger, true
	case "float", "double", "decimal", "number":
		return KindFloat, true
	case "boolean", "bool":
		return KindBoolean, true
	case "string", "text":
		return KindString, true
	case "date", "datetime":
		return KindDate, true
	case "time", "timespan", "duration":
		return KindTime, true
	case "identifier", "guid", "uuid":
		return KindIdentifier, true
	case "array", "list":
		return KindArray, true
	case "hostref", "object":
		return KindHostRef, true
	default:
		return KindNull, false
	}
}

// Value is a single runtime value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	id   uuid.UUID
	arr  []Value
	ref  any
}

// Null returns the null value.
func Null() Value { return Value{} }

// Int returns an Integer value.
func Int(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a Boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.i = 1
	}
	return v
}

// String returns a String value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date returns a Date value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Time returns a Time value (time of day or span).
func Time(d time.Duration) Value { return Value{kind: KindTime, i: int64(d)} }

// Identifier returns an Identifier value.
func Identifier(id uuid.UUID) Value { return Value{kind: KindIdentifier, id: id} }

// Array returns an Array value holding a copy of elems.
func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

// HostRef wraps an externally-owned object. A nil object yields Null.
func HostRef(obj any) Value {
	if obj == nil {
		return Value{}
	}
	return Value{kind: KindHostRef, ref: obj}
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v is Integer or Float.
func (v Value) IsNumeric() bool { return v.kind == KindInteger || v.kind == KindFloat }

// AsInt returns the Integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInteger }

// AsFloat returns the numeric payload widened to float64. Integers convert.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInteger:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the Boolean payload.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.kind == KindBoolean }

// AsString returns the String payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsDate returns the Date payload.
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

// AsTime returns the Time payload.
func (v Value) AsTime() (time.Duration, bool) { return time.Duration(v.i), v.kind == KindTime }

// AsIdentifier returns the Identifier payload.
func (v Value) AsIdentifier() (uuid.UUID, bool) { return v.id, v.kind == KindIdentifier }

// AsArray returns the Array elements. The slice must not be modified.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsHost returns the HostRef object.
func (v Value) AsHost() (any, bool) { return v.ref, v.kind == KindHostRef }

// Len returns the element count of an Array or the rune count of a String.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindArray:
		return len(v.arr), true
	case KindString:
		return len([]rune(v.s)), true
	default:
		return 0, false
	}
}

// String implements the standard Value-to-string conversion used by
// concatenation, Print, and ToString without a format.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBoolean:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	case KindDate:
		return v.t.Format(time.RFC3339)
	case KindTime:
		return formatDuration(time.Duration(v.i))
	case KindIdentifier:
		return v.id.String()
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindHostRef:
		return fmt.Sprintf("%v", v.ref)
	default:
		return ""
	}
}

// GoString renders the kind alongside the value for test diagnostics.
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.String())
}

// Any converts v to the closest native Go value.
func (v Value) Any() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindBoolean:
		return v.i != 0
	case KindString:
		return v.s
	case KindDate:
		return v.t
	case KindTime:
		return time.Duration(v.i)
	case KindIdentifier:
		return v.id
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Any()
		}
		return out
	case KindHostRef:
		return v.ref
	default:
		return nil
	}
}

// FromAny converts a native Go value into a Value.
// Unrecognized types become HostRef so reflection paths can reach them.
func FromAny(x any) Value {
	switch n := x.(type) {
	case nil:
		return Null()
	case Value:
		return n
	case int:
		return Int(int64(n))
	case int8:
		return Int(int64(n))
	case int16:
		return Int(int64(n))
	case int32:
		return Int(int64(n))
	case int64:
		return Int(n)
	case uint:
		return Int(int64(n))
	case uint8:
		return Int(int64(n))
	case uint16:
		return Int(int64(n))
	case uint32:
		return Int(int64(n))
	case uint64:
		if n > math.MaxInt64 {
			return Float(float64(n))
		}
		return Int(int64(n))
	case float32:
		return Float(float64(n))
	case float64:
		return Float(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Int(i)
		}
		f, _ := n.Float64()
		return Float(f)
	case bool:
		return Bool(n)
	case string:
		return String(n)
	case time.Time:
		return Date(n)
	case time.Duration:
		return Time(n)
	case uuid.UUID:
		return Identifier(n)
	case []Value:
		return Array(n...)
	case []any:
		arr := make([]Value, len(n))
		for i, e := range n {
			arr[i] = FromAny(e)
		}
		return Value{kind: KindArray, arr: arr}
	case []string:
		arr := make([]Value, len(n))
		for i, e := range n {
			arr[i] = String(e)
		}
		return Value{kind: KindArray, arr: arr}
	case []int:
		arr := make([]Value, len(n))
		for i, e := range n {
			arr[i] = Int(int64(e))
		}
		return Value{kind: KindArray, arr: arr}
	case []float64:
		arr := make([]Value, len(n))
		for i, e := range n {
			arr[i] = Float(e)
		}
		return Value{kind: KindArray, arr: arr}
	default:
		return HostRef(x)
	}
}

// formatFloat renders the shortest representation that round-trips.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatDuration renders a Time value as [-][d.]hh:mm:ss[.fffffff].
func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second

	var b strings.Builder
	b.WriteString(sign)
	if days > 0 {
		fmt.Fprintf(&b, "%d.", days)
	}
	fmt.Fprintf(&b, "%02d:%02d:%02d", h, m, s)
	if d > 0 {
		frac := strings.TrimRight(fmt.Sprintf("%09d", int64(d)), "0")
		b.WriteString("." + frac)
	}
	return b.String()
}
