package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Type coercion for filter evaluation.
 *
 * Implements the 5-type system (NUMERIC, TEXT, BOOLEAN, ANY, UNSPECIFIED)
 * with strict and lenient modes.
 *
 * Key distinction: missing values and coercion failures trigger different
 * policies. A nil value defers to on_missing_field. A coercion failure
 * (e.g. "abc" to numeric) triggers on_coercion_fail.
 *
 * Type modes:
 *   - NUMERIC: Strict - all integer and float widths plus numeric strings
 *     become float64; booleans are rejected
 *   - TEXT: Lenient - every scalar becomes its string form
 *   - BOOLEAN: Strict - boolean only, reject strings/numbers
 *   - ANY: Lenient - preserve original type, cross-type comparison allowed
 *
 * Whitespace-only strings are not valid numbers.
 */

// FieldType enumerates declared condition field types.
type FieldType int

const (
	FieldTypeUnspecified FieldType = iota
	FieldTypeNumeric
	FieldTypeText
	FieldTypeBoolean
	FieldTypeAny
)

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil
}

// Coerce attempts to convert value to the expected field type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, fieldType FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch fieldType {
	case FieldTypeNumeric:
		return coerceNumeric(value)
	case FieldTypeText:
		return coerceText(value)
	case FieldTypeBoolean:
		return coerceBoolean(value)
	case FieldTypeAny, FieldTypeUnspecified:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceNumeric converts value to float64 for numeric comparison.
func coerceNumeric(value any) (CoercionResult, error) {
	if f, ok := toFloat64(value); ok {
		return CoercionResult{Value: f}, nil
	}
	s, ok := value.(string)
	if !ok {
		// Strict mode: booleans and arrays are not numbers
		return CoercionResult{}, types.ErrCoercionFailed
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	return CoercionResult{Value: f}, nil
}

// coerceText converts every scalar to its string representation.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case float32:
		return CoercionResult{Value: strconv.FormatFloat(float64(v), 'f', -1, 32)}, nil
	case float64:
		return CoercionResult{Value: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	case []any:
		return CoercionResult{}, types.ErrCoercionFailed
	}
	if n, ok := toInt64(value); ok {
		return CoercionResult{Value: strconv.FormatInt(n, 10)}, nil
	}
	return CoercionResult{Value: fmt.Sprintf("%v", value)}, nil
}

// coerceBoolean validates value is boolean type for boolean comparison.
// Strict mode: rejects strings and numbers to avoid "true" vs 1 ambiguity.
func coerceBoolean(value any) (CoercionResult, error) {
	if v, ok := value.(bool); ok {
		return CoercionResult{Value: v}, nil
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

// toInt64 widens the integral property representations.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
