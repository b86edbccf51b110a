package types

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

/*
 * Property value representation.
 *
 * Each TypeTag maps to exactly one Go representation:
 *
 *   boolean -> bool      byte  -> int8     short  -> int16
 *   int     -> int32     long  -> int64    float  -> float32
 *   double  -> float64   char  -> rune     string -> string
 *
 * and the array tag of each maps to the corresponding slice. char and int
 * share a Go type (rune is int32); the tag disambiguates them.
 *
 * Persistent and remote backends store values as JSON text next to the
 * key's type tag. DecodeValue uses the tag to pick the target type, so a
 * round trip returns the same Go type that was stored.
 */

// CheckValue reports whether v has the Go representation of tag.
func CheckValue(tag TypeTag, v any) error {
	ok := false
	switch tag {
	case TypeBoolean:
		_, ok = v.(bool)
	case TypeByte:
		_, ok = v.(int8)
	case TypeShort:
		_, ok = v.(int16)
	case TypeInt, TypeChar:
		_, ok = v.(int32)
	case TypeLong:
		_, ok = v.(int64)
	case TypeFloat:
		_, ok = v.(float32)
	case TypeDouble:
		_, ok = v.(float64)
	case TypeString:
		_, ok = v.(string)
	case TypeBoolean.ArrayOf():
		_, ok = v.([]bool)
	case TypeByte.ArrayOf():
		_, ok = v.([]int8)
	case TypeShort.ArrayOf():
		_, ok = v.([]int16)
	case TypeInt.ArrayOf(), TypeChar.ArrayOf():
		_, ok = v.([]int32)
	case TypeLong.ArrayOf():
		_, ok = v.([]int64)
	case TypeFloat.ArrayOf():
		_, ok = v.([]float32)
	case TypeDouble.ArrayOf():
		_, ok = v.([]float64)
	case TypeString.ArrayOf():
		_, ok = v.([]string)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not %s", ErrInvalidValue, v, tag)
	}
	return nil
}

// EncodeValue serializes a checked value as JSON text.
func EncodeValue(tag TypeTag, v any) ([]byte, error) {
	if err := CheckValue(tag, v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// DecodeValue parses JSON text produced by EncodeValue back into tag's Go type.
func DecodeValue(tag TypeTag, data []byte) (any, error) {
	var err error
	var v any
	switch tag {
	case TypeBoolean:
		var x bool
		err = json.Unmarshal(data, &x)
		v = x
	case TypeByte:
		var x int8
		err = json.Unmarshal(data, &x)
		v = x
	case TypeShort:
		var x int16
		err = json.Unmarshal(data, &x)
		v = x
	case TypeInt, TypeChar:
		var x int32
		err = json.Unmarshal(data, &x)
		v = x
	case TypeLong:
		var x int64
		err = json.Unmarshal(data, &x)
		v = x
	case TypeFloat:
		var x float32
		err = json.Unmarshal(data, &x)
		v = x
	case TypeDouble:
		var x float64
		err = json.Unmarshal(data, &x)
		v = x
	case TypeString:
		var x string
		err = json.Unmarshal(data, &x)
		v = x
	case TypeBoolean.ArrayOf():
		var x []bool
		err = json.Unmarshal(data, &x)
		v = x
	case TypeByte.ArrayOf():
		var x []int8
		err = json.Unmarshal(data, &x)
		v = x
	case TypeShort.ArrayOf():
		var x []int16
		err = json.Unmarshal(data, &x)
		v = x
	case TypeInt.ArrayOf(), TypeChar.ArrayOf():
		var x []int32
		err = json.Unmarshal(data, &x)
		v = x
	case TypeLong.ArrayOf():
		var x []int64
		err = json.Unmarshal(data, &x)
		v = x
	case TypeFloat.ArrayOf():
		var x []float32
		err = json.Unmarshal(data, &x)
		v = x
	case TypeDouble.ArrayOf():
		var x []float64
		err = json.Unmarshal(data, &x)
		v = x
	case TypeString.ArrayOf():
		var x []string
		err = json.Unmarshal(data, &x)
		v = x
	default:
		return nil, fmt.Errorf("%w: cannot decode %s", ErrInvalidValue, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrInvalidValue, tag, err)
	}
	return v, nil
}

// InferTag picks a type tag for a loosely typed value decoded from JSON.
// Integral numbers become long, other numbers double; homogeneous arrays
// take the array form of their element tag. Empty arrays are string arrays.
func InferTag(v any) (TypeTag, bool) {
	switch x := v.(type) {
	case bool:
		return TypeBoolean, true
	case string:
		return TypeString, true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return TypeLong, true
		}
		return TypeDouble, true
	case []any:
		if len(x) == 0 {
			return TypeString.ArrayOf(), true
		}
		elem, ok := InferTag(x[0])
		if !ok || elem.IsArray() {
			return TypeUnspecified, false
		}
		for _, item := range x[1:] {
			t, ok := InferTag(item)
			if !ok {
				return TypeUnspecified, false
			}
			if t != elem {
				if (t == TypeDouble && elem == TypeLong) || (t == TypeLong && elem == TypeDouble) {
					elem = TypeDouble
					continue
				}
				return TypeUnspecified, false
			}
		}
		return elem.ArrayOf(), true
	}
	return TypeUnspecified, false
}

// ConvertValue converts a loosely typed JSON value into tag's Go type.
// Numbers must fit the target range; chars come from one-rune strings or code points.
func ConvertValue(tag TypeTag, v any) (any, error) {
	if tag.IsArray() {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an array", ErrInvalidValue, v)
		}
		return convertArray(tag.Elem(), items)
	}
	switch tag {
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeChar:
		switch x := v.(type) {
		case string:
			if utf8.RuneCountInString(x) == 1 {
				r, _ := utf8.DecodeRuneInString(x)
				return r, nil
			}
		case float64:
			if x == math.Trunc(x) && x >= 0 && x <= utf8.MaxRune {
				return rune(x), nil
			}
		}
	case TypeFloat:
		if f, ok := v.(float64); ok {
			return float32(f), nil
		}
	case TypeDouble:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case TypeByte, TypeShort, TypeInt, TypeLong:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			break
		}
		lo, hi := intRange(tag)
		if f < lo || f > hi {
			return nil, fmt.Errorf("%w: %v overflows %s", ErrInvalidValue, f, tag)
		}
		switch tag {
		case TypeByte:
			return int8(f), nil
		case TypeShort:
			return int16(f), nil
		case TypeInt:
			return int32(f), nil
		default:
			return int64(f), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot convert %T to %s", ErrInvalidValue, v, tag)
}

func intRange(tag TypeTag) (float64, float64) {
	switch tag {
	case TypeByte:
		return math.MinInt8, math.MaxInt8
	case TypeShort:
		return math.MinInt16, math.MaxInt16
	case TypeInt:
		return math.MinInt32, math.MaxInt32
	default:
		return -(1 << 53), 1 << 53
	}
}

func convertArray(elem TypeTag, items []any) (any, error) {
	conv := make([]any, len(items))
	for i, item := range items {
		c, err := ConvertValue(elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		conv[i] = c
	}
	switch elem {
	case TypeBoolean:
		return collect[bool](conv), nil
	case TypeByte:
		return collect[int8](conv), nil
	case TypeShort:
		return collect[int16](conv), nil
	case TypeInt, TypeChar:
		return collect[int32](conv), nil
	case TypeLong:
		return collect[int64](conv), nil
	case TypeFloat:
		return collect[float32](conv), nil
	case TypeDouble:
		return collect[float64](conv), nil
	case TypeString:
		return collect[string](conv), nil
	}
	return nil, fmt.Errorf("%w: no array form for %s", ErrInvalidValue, elem)
}

func collect[T any](items []any) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.(T)
	}
	return out
}
