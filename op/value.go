package op

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/drpcorg/objgraph/objgraph_errors"
)

// Canonical maps a value onto the JSON value space so that replicas that
// received it through different transports store identical Go values:
// integers and integral floats become int64, other numbers float64, lists
// []any and maps map[string]any. Anything else goes through encoding/json.
func Canonical(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case ID:
		return string(t), nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return canonicalUint(uint64(t)), nil
	case uint64:
		return canonicalUint(t), nil
	case float32:
		return canonicalFloat(float64(t))
	case float64:
		return canonicalFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", objgraph_errors.ErrMalformed, t)
		}
		return canonicalFloat(f)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := Canonical(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			c, err := Canonical(e)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: value not serializable: %v", objgraph_errors.ErrMalformed, err)
	}
	return DecodeValue(raw)
}

func canonicalUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

// Whole floats in [-2^63, 2^63) become int64. JSON renders them as plain
// digits, which decode as int64 on the other side, so both ends must agree.
const twoTo63 = float64(1 << 63)

func canonicalFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not a JSON number", objgraph_errors.ErrMalformed, f)
	}
	if f == math.Trunc(f) && f >= -twoTo63 && f < twoTo63 {
		return int64(f), nil
	}
	return f, nil
}

// DecodeValue parses JSON into a canonical value.
func DecodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: bad value: %v", objgraph_errors.ErrMalformed, err)
	}
	return Canonical(v)
}

// Equal compares two values by their canonical forms.
func Equal(a, b any) bool {
	ca, erra := Canonical(a)
	cb, errb := Canonical(b)
	if erra != nil || errb != nil {
		return false
	}
	return reflect.DeepEqual(ca, cb)
}

// CopyValue deep-copies the list and map parts of a canonical value so a
// caller can keep or modify what a query returned.
func CopyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CopyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CopyValue(e)
		}
		return out
	default:
		return v
	}
}
