package hostpath

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Go reflection host.
 *
 * Member resolution on an arbitrary object, case-insensitive, in order:
 *   1. exported struct field
 *   2. exported method taking no arguments (getter style)
 *   3. map entry for a string-keyed map (exact key, then case-insensitive)
 *
 * Call resolves an exported method by case-insensitive name and converts each
 * Value argument to the parameter type. A trailing error result that is
 * non-nil, or a panic inside the method, becomes ErrInvocationFailed.
 */

var (
	errorType = reflect.TypeFor[error]()
	valueType = reflect.TypeFor[value.Value]()
)

type reflectHost struct {
	obj any
}

func (h reflectHost) Member(name string) (value.Value, error) {
	rv := reflect.ValueOf(h.obj)
	base := reflect.Indirect(rv)

	if base.Kind() == reflect.Struct {
		if f := fieldByFold(base, name); f.IsValid() {
			return toValue(f), nil
		}
	}
	if m, ok := methodByFold(rv, name); ok && m.Type().NumIn() == 0 {
		return invoke(name, m, nil)
	}
	if base.Kind() == reflect.Map && base.Type().Key().Kind() == reflect.String {
		if v := mapByFold(base, name); v.IsValid() {
			return toValue(v), nil
		}
	}
	if base.Kind() == reflect.Slice || base.Kind() == reflect.Array {
		switch strings.ToLower(name) {
		case "length", "count":
			return value.Int(int64(base.Len())), nil
		}
	}
	return value.Null(), fmt.Errorf("%w: %T has no member %s", types.ErrMemberNotFound, h.obj, name)
}

func (h reflectHost) Call(name string, args []value.Value) (value.Value, error) {
	m, ok := methodByFold(reflect.ValueOf(h.obj), name)
	if !ok {
		return value.Null(), fmt.Errorf("%w: %T has no method %s", types.ErrMemberNotFound, h.obj, name)
	}
	in, err := convertArgs(m.Type(), args)
	if err != nil {
		return value.Null(), fmt.Errorf("%s: %w", name, err)
	}
	return invoke(name, m, in)
}

func (h reflectHost) Index(i value.Value) (value.Value, error) {
	base := reflect.Indirect(reflect.ValueOf(h.obj))
	switch base.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		n, ok := i.AsInt()
		if !ok {
			return value.Null(), fmt.Errorf("%w: index must be integer, got %s", types.ErrTypeMismatch, i.Kind())
		}
		if n < 0 || n >= int64(base.Len()) {
			return value.Null(), fmt.Errorf("%w: index %d, length %d", types.ErrIndexOutOfRange, n, base.Len())
		}
		return toValue(base.Index(int(n))), nil
	case reflect.Map:
		key, err := convertArg(i, base.Type().Key())
		if err != nil {
			return value.Null(), err
		}
		v := base.MapIndex(key)
		if !v.IsValid() {
			return value.Null(), fmt.Errorf("%w: key %s", types.ErrMemberNotFound, i)
		}
		return toValue(v), nil
	}
	return value.Null(), fmt.Errorf("%w: %T is not indexable", types.ErrMemberNotFound, h.obj)
}

func fieldByFold(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func methodByFold(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := range t.NumMethod() {
		if strings.EqualFold(t.Method(i).Name, name) {
			return v.Method(i), true
		}
	}
	// Methods with pointer receivers on an addressable copy.
	if v.Kind() != reflect.Pointer {
		p := reflect.New(t)
		p.Elem().Set(v)
		pt := p.Type()
		for i := range pt.NumMethod() {
			if strings.EqualFold(pt.Method(i).Name, name) {
				return p.Method(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func mapByFold(m reflect.Value, name string) reflect.Value {
	key := reflect.ValueOf(name).Convert(m.Type().Key())
	if v := m.MapIndex(key); v.IsValid() {
		return v
	}
	iter := m.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), name) {
			return iter.Value()
		}
	}
	return reflect.Value{}
}

func convertArgs(ft reflect.Type, args []value.Value) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("%w: want at least %d arguments, got %d", types.ErrArityMismatch, n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", types.ErrArityMismatch, n, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= n-1 {
			pt = ft.In(n - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		rv, err := convertArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		in[i] = rv
	}
	return in, nil
}

func convertArg(a value.Value, t reflect.Type) (reflect.Value, error) {
	if t == valueType {
		return reflect.ValueOf(a), nil
	}
	raw := a.Any()
	if raw == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: null for %s", types.ErrTypeMismatch, t)
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if numericKind(rv.Kind()) && numericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == reflect.String && t.Kind() == reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %s for %s", types.ErrTypeMismatch, a.Kind(), t)
}

func numericKind(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func invoke(name string, m reflect.Value, in []reflect.Value) (out value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = value.Null()
			err = fmt.Errorf("%w: %s panicked: %v", types.ErrInvocationFailed, name, r)
		}
	}()

	results := m.Call(in)
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && last.Type().Kind() == reflect.Interface {
			if !last.IsNil() {
				return value.Null(), fmt.Errorf("%w: %s: %v", types.ErrInvocationFailed, name, last.Interface())
			}
			results = results[:len(results)-1]
		}
	}
	if len(results) == 0 {
		return value.Null(), nil
	}
	return toValue(results[0]), nil
}

func toValue(rv reflect.Value) value.Value {
	if !rv.IsValid() || !rv.CanInterface() {
		return value.Null()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return value.Null()
		}
	}
	v := value.FromAny(rv.Interface())
	if v.Kind() != value.KindHostRef {
		return v
	}
	// Named basic types (type Celsius float64) are not matched by FromAny.
	switch {
	case rv.CanInt():
		return value.Int(rv.Int())
	case rv.CanUint():
		return value.Int(int64(rv.Uint()))
	case rv.CanFloat():
		return value.Float(rv.Float())
	case rv.Kind() == reflect.Bool:
		return value.Bool(rv.Bool())
	case rv.Kind() == reflect.String:
		return value.String(rv.String())
	}
	return v
}
