// internal/value/coercion.go
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Coercion to declared kinds.
 *
 * Decision table columns, tree nodes, and conversion builtins declare the kind
 * they operate on. Coerce converts a runtime Value to that kind; Parse converts
 * a string-encoded cell.
 *
 * Kind modes:
 *   - Integer: strict. Floats must be integral, strings must parse, booleans rejected
 *   - Float: strict. Integers widen, strings must parse, booleans rejected
 *   - Boolean: strict. Only "true"/"false" strings (any case) convert
 *   - String: lenient. Every kind converts via the standard string conversion
 *   - Date, Time, Identifier: strings parse; same kind passes through
 *   - Null: only Null
 *
 * Null input always coerces to Null: a missing value is not a coercion failure.
 * Whitespace-only strings are not valid numbers.
 */

// Coerce converts v to kind, returning ErrCoercionFailed when impossible.
func Coerce(v Value, kind Kind) (Value, error) {
	if v.kind == kind || v.kind == KindNull {
		return v, nil
	}

	switch kind {
	case KindInteger:
		return coerceInteger(v)
	case KindFloat:
		return coerceFloat(v)
	case KindBoolean:
		return coerceBoolean(v)
	case KindString:
		return String(v.String()), nil
	case KindDate:
		if s, ok := v.AsString(); ok {
			return ParseDate(s)
		}
	case KindTime:
		if s, ok := v.AsString(); ok {
			return ParseTime(s)
		}
		if i, ok := v.AsInt(); ok {
			return Time(time.Duration(i) * time.Millisecond), nil
		}
	case KindIdentifier:
		if s, ok := v.AsString(); ok {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return Null(), coercionError(v, kind)
			}
			return Identifier(id), nil
		}
	case KindArray:
		return Array(v), nil
	case KindHostRef:
		return HostRef(v.Any()), nil
	}
	return Null(), coercionError(v, kind)
}

// Parse decodes a string-encoded cell into a value of kind.
// The literal "null" (any case) decodes to Null for every kind except String.
func Parse(text string, kind Kind) (Value, error) {
	if kind == KindString {
		return String(text), nil
	}
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, "null") {
		return Null(), nil
	}
	if kind == KindNull {
		if trimmed == "" {
			return Null(), nil
		}
		return Null(), coercionError(String(text), kind)
	}
	return Coerce(String(text), kind)
}

func coerceInteger(v Value) (Value, error) {
	switch v.kind {
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) {
			return Null(), coercionError(v, KindInteger)
		}
		return Int(int64(v.f)), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return Null(), coercionError(v, KindInteger)
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
		// "3.0" is an acceptable spelling of 3
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return Null(), coercionError(v, KindInteger)
		}
		return Int(int64(f)), nil
	case KindTime:
		return Int(int64(time.Duration(v.i) / time.Millisecond)), nil
	}
	return Null(), coercionError(v, KindInteger)
}

func coerceFloat(v Value) (Value, error) {
	switch v.kind {
	case KindInteger:
		return Float(float64(v.i)), nil
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return Null(), coercionError(v, KindFloat)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null(), coercionError(v, KindFloat)
		}
		return Float(f), nil
	}
	return Null(), coercionError(v, KindFloat)
}

func coerceBoolean(v Value) (Value, error) {
	if s, ok := v.AsString(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
	}
	// Strict mode: no numeric-to-boolean coercion (avoids "1" vs true ambiguity)
	return Null(), coercionError(v, KindBoolean)
}

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseDate parses the date layouts accepted in rule documents.
func ParseDate(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date(t), nil
		}
	}
	return Null(), coercionError(String(s), KindDate)
}

// ParseTime parses [-][d.]hh:mm[:ss[.fff]] or a Go duration string ("1h30m").
func ParseTime(s string) (Value, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return Time(d), nil
	}

	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")

	var days int64
	if dot := strings.Index(body, "."); dot >= 0 && dot < strings.Index(body, ":") {
		n, err := strconv.ParseInt(body[:dot], 10, 64)
		if err != nil {
			return Null(), coercionError(String(s), KindTime)
		}
		days = n
		body = body[dot+1:]
	}

	parts := strings.Split(body, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Null(), coercionError(String(s), KindTime)
	}
	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return Null(), coercionError(String(s), KindTime)
	}
	var sec float64
	if len(parts) == 3 {
		f, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Null(), coercionError(String(s), KindTime)
		}
		sec = f
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second))
	if neg {
		d = -d
	}
	return Time(d), nil
}

func coercionError(v Value, kind Kind) error {
	return fmt.Errorf("%w: %s %q to %s", types.ErrCoercionFailed, v.kind, v.String(), kind)
}
