package otlp

import (
	"encoding/json"
	"strconv"
)

// ValueType tags which typed column an attribute value occupies.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeDouble ValueType = "double"
	TypeBool   ValueType = "bool"
	TypeArray  ValueType = "array"
)

// Value is the normalized form of an AnyValue: an explicit type tag plus the
// one field matching it. Arrays are serialized to JSON and stored in Str.
type Value struct {
	Type   ValueType
	Str    string
	Int    int64
	Double float64
	Bool   bool
}

// Normalize decodes an AnyValue union into a Value. When more than one union
// field is populated the first match wins, in the order string, int, double,
// bool, array. An empty union normalizes to an empty string rather than an
// error.
func Normalize(v AnyValue) Value {
	switch {
	case v.StringValue != nil:
		return Value{Type: TypeString, Str: *v.StringValue}
	case v.IntValue != nil:
		return Value{Type: TypeInt, Int: int64(*v.IntValue)}
	case v.DoubleValue != nil:
		return Value{Type: TypeDouble, Double: *v.DoubleValue}
	case v.BoolValue != nil:
		return Value{Type: TypeBool, Bool: *v.BoolValue}
	case v.ArrayValue != nil:
		return Value{Type: TypeArray, Str: arrayToJSON(v.ArrayValue)}
	default:
		return Value{Type: TypeString, Str: ""}
	}
}

// arrayToJSON serializes an ArrayValue to a JSON string.
func arrayToJSON(arr *ArrayValue) string {
	if arr == nil || len(arr.Values) == 0 {
		return "[]"
	}
	values := make([]any, len(arr.Values))
	for i, v := range arr.Values {
		values[i] = valueToInterface(v)
	}
	b, _ := json.Marshal(values)
	return string(b)
}

// valueToInterface converts an AnyValue to a plain Go value for JSON
// marshaling.
func valueToInterface(v AnyValue) any {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.IntValue != nil:
		return int64(*v.IntValue)
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.BoolValue != nil:
		return *v.BoolValue
	case v.ArrayValue != nil:
		arr := make([]any, len(v.ArrayValue.Values))
		for i, elem := range v.ArrayValue.Values {
			arr[i] = valueToInterface(elem)
		}
		return arr
	default:
		return nil
	}
}

// String renders the populated field as text, independent of type. Used for
// log output and query responses.
func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeDouble:
		return strconv.FormatFloat(v.Double, 'f', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}
