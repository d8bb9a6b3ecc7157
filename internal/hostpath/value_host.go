package hostpath

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/sweetbre/internal/functions"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// valueHost exposes builtin kinds. Members and methods not listed in
// kindMembers fall through to the function registry with the receiver first,
// so "'abc'.Substring(1)" calls substring("abc", 1).
type valueHost struct {
	v     value.Value
	funcs *functions.Registry
}

// kindMembers are properties computed directly rather than through the registry.
var kindMembers = map[value.Kind]map[string]func(value.Value) value.Value{
	value.KindTime: {
		"days":         func(v value.Value) value.Value { return value.Int(int64(dur(v) / (24 * time.Hour))) },
		"hours":        func(v value.Value) value.Value { return value.Int(int64(dur(v)/time.Hour) % 24) },
		"minutes":      func(v value.Value) value.Value { return value.Int(int64(dur(v)/time.Minute) % 60) },
		"seconds":      func(v value.Value) value.Value { return value.Int(int64(dur(v)/time.Second) % 60) },
		"totaldays":    func(v value.Value) value.Value { return value.Float(dur(v).Hours() / 24) },
		"totalhours":   func(v value.Value) value.Value { return value.Float(dur(v).Hours()) },
		"totalminutes": func(v value.Value) value.Value { return value.Float(dur(v).Minutes()) },
		"totalseconds": func(v value.Value) value.Value { return value.Float(dur(v).Seconds()) },
	},
	value.KindDate: {
		"date": func(v value.Value) value.Value {
			t, _ := v.AsDate()
			y, m, d := t.Date()
			return value.Date(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
		},
		"timeofday": func(v value.Value) value.Value {
			t, _ := v.AsDate()
			y, m, d := t.Date()
			return value.Time(t.Sub(time.Date(y, m, d, 0, 0, 0, 0, t.Location())))
		},
	},
}

func dur(v value.Value) time.Duration {
	d, _ := v.AsTime()
	return d
}

func (h valueHost) Member(name string) (value.Value, error) {
	key := strings.ToLower(name)
	if key == "kind" {
		return value.String(h.v.Kind().String()), nil
	}
	if members, ok := kindMembers[h.v.Kind()]; ok {
		if fn, ok := members[key]; ok {
			return fn(h.v), nil
		}
	}
	if h.v.IsNull() {
		return value.Null(), fmt.Errorf("%w: %s on null", types.ErrMemberNotFound, name)
	}
	return h.viaRegistry(name, nil)
}

func (h valueHost) Call(name string, args []value.Value) (value.Value, error) {
	if h.v.IsNull() && !strings.EqualFold(name, "ToString") {
		return value.Null(), fmt.Errorf("%w: %s() on null", types.ErrMemberNotFound, name)
	}
	return h.viaRegistry(name, args)
}

func (h valueHost) Index(i value.Value) (value.Value, error) {
	n, ok := i.AsInt()
	if !ok {
		return value.Null(), fmt.Errorf("%w: index must be integer, got %s", types.ErrTypeMismatch, i.Kind())
	}
	switch h.v.Kind() {
	case value.KindArray:
		arr, _ := h.v.AsArray()
		if n < 0 || n >= int64(len(arr)) {
			return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, n, len(arr))
		}
		return arr[n], nil
	case value.KindString:
		s, _ := h.v.AsString()
		runes := []rune(s)
		if n < 0 || n >= int64(len(runes)) {
			return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, n, len(runes))
		}
		return value.String(string(runes[n])), nil
	}
	return value.Null(), fmt.Errorf("%w: %s is not indexable", types.ErrMemberNotFound, h.v.Kind())
}

func (h valueHost) viaRegistry(name string, args []value.Value) (value.Value, error) {
	full := make([]value.Value, 0, len(args)+1)
	full = append(full, h.v)
	full = append(full, args...)

	out, err := h.funcs.Call(name, full)
	if errors.Is(err, types.ErrUnknownFunction) {
		return value.Null(), fmt.Errorf("%w: %s has no member %s", types.ErrMemberNotFound, h.v.Kind(), name)
	}
	return out, err
}
