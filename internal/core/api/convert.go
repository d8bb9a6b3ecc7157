package api

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Value <-> protobuf conversion.
 *
 * JSON-native kinds map directly: Null, Boolean, String, Array (list),
 * Integer and Float (number). A number arriving from the wire is an Integer
 * when it is integral and exactly representable, otherwise a Float.
 *
 * Kinds without a JSON form travel as a typed object holding the persisted
 * text encoding:
 *
 *   {"$kind": "date", "$value": "2024-01-31T00:00:00Z"}
 *
 * Date, Time, and Identifier always encode this way, as do integers
 * beyond 2^53 and non-finite floats. An integral Float arrives back as an
 * Integer.
 */

const (
	kindKey  = "$kind"
	valueKey = "$value"

	maxExactInt = 1 << 53
)

// ToProto converts v. HostRef values have no wire form.
func ToProto(v value.Value) (*structpb.Value, error) {
	switch v.Kind() {
	case value.KindNull:
		return structpb.NewNullValue(), nil
	case value.KindBoolean:
		b, _ := v.AsBool()
		return structpb.NewBoolValue(b), nil
	case value.KindString:
		s, _ := v.AsString()
		return structpb.NewStringValue(s), nil
	case value.KindInteger:
		i, _ := v.AsInt()
		if i > maxExactInt || i < -maxExactInt {
			return typed(v)
		}
		return structpb.NewNumberValue(float64(i)), nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return typed(v)
		}
		return structpb.NewNumberValue(f), nil
	case value.KindArray:
		elems, _ := v.AsArray()
		list := &structpb.ListValue{Values: make([]*structpb.Value, len(elems))}
		for i, e := range elems {
			pv, err := ToProto(e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			list.Values[i] = pv
		}
		return structpb.NewListValue(list), nil
	}
	return typed(v)
}

func typed(v value.Value) (*structpb.Value, error) {
	kind, text, err := value.Encode(v)
	if err != nil {
		return nil, err
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		kindKey:  structpb.NewStringValue(kind),
		valueKey: structpb.NewStringValue(text),
	}}), nil
}

// FromProto converts a wire value. Objects other than typed values are rejected.
func FromProto(pv *structpb.Value) (value.Value, error) {
	switch k := pv.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return value.Null(), nil
	case *structpb.Value_BoolValue:
		return value.Bool(k.BoolValue), nil
	case *structpb.Value_StringValue:
		return value.String(k.StringValue), nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f == math.Trunc(f) && f <= maxExactInt && f >= -maxExactInt {
			return value.Int(int64(f)), nil
		}
		return value.Float(f), nil
	case *structpb.Value_ListValue:
		elems := make([]value.Value, len(k.ListValue.GetValues()))
		for i, e := range k.ListValue.GetValues() {
			v, err := FromProto(e)
			if err != nil {
				return value.Null(), fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = v
		}
		return value.Array(elems...), nil
	case *structpb.Value_StructValue:
		fields := k.StructValue.GetFields()
		kind, okKind := fields[kindKey].GetKind().(*structpb.Value_StringValue)
		text, okText := fields[valueKey].GetKind().(*structpb.Value_StringValue)
		if len(fields) != 2 || !okKind || !okText {
			return value.Null(), fmt.Errorf("objects must be typed values {%q, %q}", kindKey, valueKey)
		}
		return value.Decode(kind.StringValue, text.StringValue)
	}
	return value.Null(), fmt.Errorf("unsupported value %T", pv.GetKind())
}

// FactsFromStruct fills a FactList in sorted key order; protobuf maps carry no order.
func FactsFromStruct(s *structpb.Struct, into *rules.FactList) (*rules.FactList, error) {
	if into == nil {
		into = rules.NewFactList()
	}
	for _, name := range sortedKeys(s) {
		v, err := FromProto(s.GetFields()[name])
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", name, err)
		}
		into.Set(name, v)
	}
	return into, nil
}

// VariablesFromStruct is FactsFromStruct for variables.
func VariablesFromStruct(s *structpb.Struct) (*rules.VariableList, error) {
	vars := rules.NewVariableList()
	for _, name := range sortedKeys(s) {
		v, err := FromProto(s.GetFields()[name])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		vars.Set(name, v)
	}
	return vars, nil
}

// listToStruct converts every entry of a Fact or Variable list.
// Entries without a wire form are skipped and reported in skipped.
func listToStruct(all iter.Seq2[string, value.Value]) (*structpb.Struct, []string) {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	var skipped []string
	for name, v := range all {
		pv, err := ToProto(v)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		out.Fields[name] = pv
	}
	return out, skipped
}

func sortedKeys(s *structpb.Struct) []string {
	keys := make([]string, 0, len(s.GetFields()))
	for k := range s.GetFields() {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
