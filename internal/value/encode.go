package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/solatis/sweetbre/internal/types"
)

// encodedElem is the JSON shape of one array element in persisted text.
type encodedElem struct {
	Kind  string `json:"k"`
	Value string `json:"v"`
}

// Encode renders v as (kind name, text) for storage.
// HostRef values cannot be persisted and return ErrCoercionFailed.
func Encode(v Value) (string, string, error) {
	switch v.kind {
	case KindHostRef:
		return "", "", fmt.Errorf("%w: host references cannot be persisted", types.ErrCoercionFailed)
	case KindFloat:
		return v.kind.String(), strconv.FormatFloat(v.f, 'g', -1, 64), nil
	case KindDate:
		return v.kind.String(), v.t.Format(time.RFC3339Nano), nil
	case KindTime:
		return v.kind.String(), strconv.FormatInt(v.i, 10), nil
	case KindArray:
		elems := make([]encodedElem, len(v.arr))
		for i, e := range v.arr {
			k, text, err := Encode(e)
			if err != nil {
				return "", "", err
			}
			elems[i] = encodedElem{Kind: k, Value: text}
		}
		data, err := json.Marshal(elems)
		if err != nil {
			return "", "", err
		}
		return v.kind.String(), string(data), nil
	default:
		return v.kind.String(), v.String(), nil
	}
}

// Decode is the inverse of Encode.
func Decode(kindName, text string) (Value, error) {
	kind, ok := ParseKind(kindName)
	if !ok {
		return Null(), fmt.Errorf("%w: unknown kind %q", types.ErrCoercionFailed, kindName)
	}
	switch kind {
	case KindNull:
		return Null(), nil
	case KindTime:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("%w: time %q", types.ErrCoercionFailed, text)
		}
		return Time(time.Duration(n)), nil
	case KindDate:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return Null(), fmt.Errorf("%w: date %q", types.ErrCoercionFailed, text)
		}
		return Date(t), nil
	case KindArray:
		var elems []encodedElem
		if err := json.Unmarshal([]byte(text), &elems); err != nil {
			return Null(), fmt.Errorf("%w: array: %v", types.ErrCoercionFailed, err)
		}
		arr := make([]Value, len(elems))
		for i, e := range elems {
			ev, err := Decode(e.Kind, e.Value)
			if err != nil {
				return Null(), err
			}
			arr[i] = ev
		}
		return Value{kind: KindArray, arr: arr}, nil
	default:
		return Parse(text, kind)
	}
}
