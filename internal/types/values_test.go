package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodeDecodeValue(t *testing.T) {
	tests := []struct {
		name  string
		tag   TypeTag
		value any
	}{
		{"boolean", TypeBoolean, true},
		{"byte", TypeByte, int8(-7)},
		{"short", TypeShort, int16(300)},
		{"int", TypeInt, int32(70000)},
		{"long beyond float precision", TypeLong, int64(1<<62 + 1)},
		{"float", TypeFloat, float32(1.5)},
		{"double", TypeDouble, 2.25},
		{"char", TypeChar, 'λ'},
		{"string", TypeString, "java.lang.Thread"},
		{"int array", TypeInt.ArrayOf(), []int32{1, 2, 3}},
		{"string array", TypeString.ArrayOf(), []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeValue(tt.tag, tt.value)
			if err != nil {
				t.Fatalf("EncodeValue() error = %v", err)
			}
			got, err := DecodeValue(tt.tag, data)
			if err != nil {
				t.Fatalf("DecodeValue() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("round trip = %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestCheckValue_RejectsWrongType(t *testing.T) {
	if err := CheckValue(TypeInt, int64(1)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("CheckValue(int, int64) error = %v, want ErrInvalidValue", err)
	}
	if err := CheckValue(TypeString.ArrayOf(), "x"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("CheckValue(string[], string) error = %v, want ErrInvalidValue", err)
	}
}

func TestInferTag(t *testing.T) {
	tests := []struct {
		in   any
		want TypeTag
		ok   bool
	}{
		{true, TypeBoolean, true},
		{"x", TypeString, true},
		{float64(3), TypeLong, true},
		{3.5, TypeDouble, true},
		{[]any{float64(1), 2.5}, TypeDouble.ArrayOf(), true},
		{[]any{"a", true}, TypeUnspecified, false},
		{map[string]any{}, TypeUnspecified, false},
	}

	for _, tt := range tests {
		got, ok := InferTag(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("InferTag(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		tag     TypeTag
		in      any
		want    any
		wantErr bool
	}{
		{"int from json number", TypeInt, float64(42), int32(42), false},
		{"byte overflow", TypeByte, float64(300), nil, true},
		{"char from string", TypeChar, "x", 'x', false},
		{"char from long string", TypeChar, "xy", nil, true},
		{"long array", TypeLong.ArrayOf(), []any{float64(1), float64(2)}, []int64{1, 2}, false},
		{"fractional int", TypeInt, 1.5, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(tt.tag, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ConvertValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ConvertValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
