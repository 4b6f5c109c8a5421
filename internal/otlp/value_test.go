package otlp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string    { return &s }
func intPtr(i int64) *Int64      { v := Int64(i); return &v }
func dblPtr(f float64) *float64  { return &f }
func boolPtr(b bool) *bool       { return &b }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   AnyValue
		want Value
	}{
		{
			name: "string",
			in:   AnyValue{StringValue: strPtr("checkout")},
			want: Value{Type: TypeString, Str: "checkout"},
		},
		{
			name: "int",
			in:   AnyValue{IntValue: intPtr(42)},
			want: Value{Type: TypeInt, Int: 42},
		},
		{
			name: "double",
			in:   AnyValue{DoubleValue: dblPtr(3.25)},
			want: Value{Type: TypeDouble, Double: 3.25},
		},
		{
			name: "bool",
			in:   AnyValue{BoolValue: boolPtr(true)},
			want: Value{Type: TypeBool, Bool: true},
		},
		{
			name: "array",
			in: AnyValue{ArrayValue: &ArrayValue{Values: []AnyValue{
				{StringValue: strPtr("a")},
				{IntValue: intPtr(1)},
			}}},
			want: Value{Type: TypeArray, Str: `["a",1]`},
		},
		{
			name: "empty union falls back to empty string",
			in:   AnyValue{},
			want: Value{Type: TypeString, Str: ""},
		},
		{
			name: "string wins over int when both set",
			in:   AnyValue{StringValue: strPtr("s"), IntValue: intPtr(7)},
			want: Value{Type: TypeString, Str: "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeEmptyArray(t *testing.T) {
	got := Normalize(AnyValue{ArrayValue: &ArrayValue{}})
	assert.Equal(t, TypeArray, got.Type)
	assert.Equal(t, "[]", got.Str)
}

func TestInt64UnmarshalStringAndNumber(t *testing.T) {
	var v struct {
		A Int64 `json:"a"`
		B Int64 `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"123","b":456}`), &v))
	assert.Equal(t, Int64(123), v.A)
	assert.Equal(t, Int64(456), v.B)
}

func TestDataPointValueFallback(t *testing.T) {
	tests := []struct {
		name string
		dp   DataPoint
		want float64
	}{
		{"asDouble first", DataPoint{AsDouble: dblPtr(1.5), AsInt: intPtr(9)}, 1.5},
		{"asInt when no double", DataPoint{AsInt: intPtr(9)}, 9},
		{"sum when no number value", DataPoint{Sum: dblPtr(42)}, 42},
		{"count last", DataPoint{Count: intPtr(7)}, 7},
		{"all absent yields zero", DataPoint{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dp.Value())
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", Value{Type: TypeInt, Int: 42}.String())
	assert.Equal(t, "2.5", Value{Type: TypeDouble, Double: 2.5}.String())
	assert.Equal(t, "true", Value{Type: TypeBool, Bool: true}.String())
	assert.Equal(t, "hi", Value{Type: TypeString, Str: "hi"}.String())
}
