package rules

import "github.com/solatis/searchtrace/internal/types"

/*
 * Cost model for condition evaluation.
 *
 * Cost formula: lookup_cost + (operator_cost * type_multiplier * 8^wildcards)
 *
 * Evaluating cheaper conditions first lets an AND group short-circuit on
 * the common non-matching event before reaching string or any-typed
 * comparisons. Pseudo-fields read the event type directly and carry no
 * lookup cost.
 */

const (
	// Operator base costs
	CostExists = 1
	CostIsNull = 1
	CostEq     = 5
	CostNeq    = 5
	CostLt     = 7
	CostLte    = 7
	CostGt     = 7
	CostGte    = 7
	CostIn     = 8
	CostPrefix = 10
	CostSuffix = 10

	// Property lookup cost per named segment
	CostLookupPerSegment = 128

	// Field type multipliers
	MultiplierInt    = 1
	MultiplierBool   = 1
	MultiplierFloat  = 4
	MultiplierString = 48
	MultiplierAny    = 128
)

// CalculateConditionCost computes cost for a single condition.
func CalculateConditionCost(path []types.PathSegment, op Operator, fieldType FieldType) int {
	lookupCost := 0
	wildcardCount := 0
	for _, seg := range path {
		if seg.Key != "" && !isPseudoField(seg.Key) {
			lookupCost += CostLookupPerSegment
		}
		if seg.Wildcard {
			wildcardCount++
		}
	}

	execMult := 1
	for i := 0; i < wildcardCount; i++ {
		execMult *= 8
	}

	return lookupCost + (operatorCost(op) * typeMultiplier(fieldType) * execMult)
}

func operatorCost(op Operator) int {
	switch op {
	case OpExists, OpIsNull:
		return CostExists
	case OpEq, OpNeq:
		return CostEq
	case OpLt, OpLte, OpGt, OpGte:
		return CostLt
	case OpIn:
		return CostIn
	case OpPrefix, OpSuffix:
		return CostPrefix
	default:
		return CostEq
	}
}

// typeMultiplier returns cost multiplier based on field type complexity.
func typeMultiplier(ft FieldType) int {
	switch ft {
	case FieldTypeNumeric:
		return MultiplierFloat // conservative: assume float
	case FieldTypeBoolean:
		return MultiplierBool
	case FieldTypeText:
		return MultiplierString
	default:
		return MultiplierAny
	}
}
