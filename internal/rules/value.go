package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the kind of a namespace Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTuple:
		return "tuple"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a scalar or an ordered tuple of Values.
//
// The zero Value is Empty. Values are immutable.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	s     string
	tuple []Value
}

// EmptyValue returns the Empty value (null).
func EmptyValue() Value { return Value{} }

// BoolValue returns a Boolean value.
func BoolValue(b bool) Value { return Value{kind: KindBoolean, b: b} }

// NumberValue returns a Number value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, n: n} }

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// TupleValue returns a Tuple of the given values.
func TupleValue(values ...Value) Value {
	t := make([]Value, len(values))
	copy(t, values)
	return Value{kind: KindTuple, tuple: t}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is Empty.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBoolean {
		return false, v.expected(KindBoolean)
	}
	return v.b, nil
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.expected(KindNumber)
	}
	return v.n, nil
}

// AsString returns the string held by v.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.expected(KindString)
	}
	return v.s, nil
}

// AsTuple returns a copy of the tuple held by v.
func (v Value) AsTuple() ([]Value, error) {
	if v.kind != KindTuple {
		return nil, v.expected(KindTuple)
	}
	t := make([]Value, len(v.tuple))
	copy(t, v.tuple)
	return t, nil
}

// AsStrings returns v as a list of strings. v must be a tuple of strings.
func (v Value) AsStrings() ([]string, error) {
	tuple, err := v.AsTuple()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tuple))
	for i, elem := range tuple {
		s, err := elem.AsString()
		if err != nil {
			return nil, fmt.Errorf("tuple element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func (v Value) expected(want Kind) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrEvaluation, want, v.kind)
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindEmpty:
		return true
	case KindBoolean:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindTuple:
		if len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !v.tuple[i].Equal(o.tuple[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String formats v for diagnostics: strings are quoted, tuples are
// parenthesised and Empty is "()".
func (v Value) String() string {
	switch v.kind {
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindTuple:
		parts := make([]string, len(v.tuple))
		for i, elem := range v.tuple {
			parts[i] = elem.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return "()"
	}
}

// FromJSON converts a JSON-shaped scalar into a Value.
//
// Objects and arrays must be flattened before they get here; they yield
// ErrConversion, as do non-finite numbers.
func FromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return EmptyValue(), nil
	case bool:
		return BoolValue(val), nil
	case string:
		return StringValue(val), nil
	case float64:
		return finiteNumber(val)
	case float32:
		return finiteNumber(float64(val))
	case int:
		return NumberValue(float64(val)), nil
	case int64:
		return NumberValue(float64(val)), nil
	case uint64:
		return NumberValue(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %s: %w", ErrConversion, val, err)
		}
		return finiteNumber(f)
	case map[string]any, []any:
		return Value{}, fmt.Errorf("%w: structured value %T reached leaf conversion", ErrConversion, v)
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrConversion, v)
	}
}

func finiteNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: number %v is not finite", ErrConversion, f)
	}
	return NumberValue(f), nil
}

// ToJSON converts v into its JSON-shaped equivalent. Tuples become arrays.
func (v Value) ToJSON() (any, error) {
	switch v.kind {
	case KindEmpty:
		return nil, nil
	case KindBoolean:
		return v.b, nil
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("%w: number %v is not finite", ErrConversion, v.n)
		}
		return v.n, nil
	case KindString:
		return v.s, nil
	case KindTuple:
		out := make([]any, len(v.tuple))
		for i, elem := range v.tuple {
			j, err := elem.ToJSON()
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrConversion, v.kind)
	}
}
