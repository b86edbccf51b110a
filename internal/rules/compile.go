// Package rules compiles and evaluates DNF filters over trace events.
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Filter compilation and validation.
 *
 * Compiles types.Filter to CompiledFilter with pre-ordered conditions and
 * validated resource limits.
 *
 * Compilation workflow:
 *   1. Validate limits (path depth, wildcards, IN values, operator range)
 *   2. Calculate condition costs using the cost model
 *   3. Order conditions by ascending cost (stable sort for determinism)
 *   4. Sum the total cost across groups
 *
 * Validation happens here rather than per event so a bad --where filter
 * fails before any traversal starts.
 *
 * Stable sort: conditions with equal cost keep their written order, so the
 * reported matched field is the same across identical inputs.
 *
 * Field_ref constraint: a cross-field comparison path cannot contain a
 * wildcard; it must name exactly one value.
 */

// Operator enumerates condition operators.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpPrefix
	OpSuffix
	OpIn
	OpExists
	OpIsNull
)

var operatorNames = map[Operator]string{
	OpEq:     "eq",
	OpNeq:    "neq",
	OpLt:     "lt",
	OpLte:    "lte",
	OpGt:     "gt",
	OpGte:    "gte",
	OpPrefix: "prefix",
	OpSuffix: "suffix",
	OpIn:     "in",
	OpExists: "exists",
	OpIsNull: "is_null",
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unspecified"
}

// OnMissingField policy for missing field handling.
type OnMissingField int

const (
	OnMissingSkip OnMissingField = iota
	OnMissingMatch
	OnMissingFail
)

// OnCoercionPolicy specifies behavior when type coercion fails.
type OnCoercionPolicy int

const (
	OnCoercionSkip OnCoercionPolicy = iota
	OnCoercionMatch
	OnCoercionError
)

// CompiledCondition is a pre-processed condition ready for evaluation.
type CompiledCondition struct {
	Path       []types.PathSegment
	Operator   Operator
	FieldType  FieldType
	Value      any                 // comparison value (nil for exists/is_null)
	Values     []any               // for IN operator
	FieldRef   []types.PathSegment // cross-field comparison (mutually exclusive with Value)
	OnMissing  OnMissingField
	OnCoercion OnCoercionPolicy
	Cost       int
}

// CompiledOrGroup is a pre-processed AND group.
type CompiledOrGroup struct {
	Conditions []CompiledCondition // ordered by ascending cost
}

// CompiledFilter is fully pre-processed and ready for evaluation.
type CompiledFilter struct {
	Name     string
	OrGroups []CompiledOrGroup
	Cost     int // sum of condition costs
}

// MatchesAll reports whether the filter has no groups and so matches every event.
func (f *CompiledFilter) MatchesAll() bool {
	return len(f.OrGroups) == 0
}

// Compile validates and pre-processes a filter for efficient evaluation.
func Compile(filter *types.Filter) (*CompiledFilter, error) {
	compiled := &CompiledFilter{
		Name:     filter.Name,
		OrGroups: make([]CompiledOrGroup, 0, len(filter.OrGroups)),
	}

	for gi, group := range filter.OrGroups {
		if len(group.Conditions) == 0 {
			return nil, fmt.Errorf("group %d: %w", gi, types.ErrEmptyExpression)
		}
		compiledGroup := CompiledOrGroup{
			Conditions: make([]CompiledCondition, 0, len(group.Conditions)),
		}

		for ci, cond := range group.Conditions {
			cc, err := compileCondition(cond)
			if err != nil {
				return nil, fmt.Errorf("group %d condition %d: %w", gi, ci, err)
			}
			compiledGroup.Conditions = append(compiledGroup.Conditions, cc)
			compiled.Cost += cc.Cost
		}

		sort.SliceStable(compiledGroup.Conditions, func(i, j int) bool {
			return compiledGroup.Conditions[i].Cost < compiledGroup.Conditions[j].Cost
		})

		compiled.OrGroups = append(compiled.OrGroups, compiledGroup)
	}

	return compiled, nil
}

// compileCondition validates and pre-processes a single condition.
func compileCondition(cond types.Condition) (CompiledCondition, error) {
	path := cond.FieldPath
	if err := validatePath(path); err != nil {
		return CompiledCondition{}, err
	}

	fieldRef := cond.FieldRef
	if len(fieldRef) > 0 {
		if err := validatePath(fieldRef); err != nil {
			return CompiledCondition{}, err
		}
		for _, seg := range fieldRef {
			if seg.Wildcard {
				return CompiledCondition{}, types.ErrWildcardInFieldRef
			}
		}
	}

	op := Operator(cond.Operator)
	if _, ok := operatorNames[op]; !ok {
		return CompiledCondition{}, fmt.Errorf("%w: %d", types.ErrInvalidOperator, cond.Operator)
	}
	ft := FieldType(cond.FieldType)
	if ft < FieldTypeUnspecified || ft > FieldTypeAny {
		return CompiledCondition{}, fmt.Errorf("%w: unknown field type %d", types.ErrCoercionFailed, cond.FieldType)
	}

	if op == OpIn && len(cond.Values) > types.MaxInOperatorValues {
		return CompiledCondition{}, types.ErrTooManyInValues
	}

	value, err := coerceLiteral(cond.Value, ft)
	if err != nil {
		return CompiledCondition{}, fmt.Errorf("value: %w", err)
	}
	var values []any
	if len(cond.Values) > 0 {
		values = make([]any, len(cond.Values))
		for i, v := range cond.Values {
			if values[i], err = coerceLiteral(v, ft); err != nil {
				return CompiledCondition{}, fmt.Errorf("values[%d]: %w", i, err)
			}
		}
	}

	return CompiledCondition{
		Path:       path,
		Operator:   op,
		FieldType:  ft,
		Value:      value,
		Values:     values,
		FieldRef:   fieldRef,
		OnMissing:  OnMissingField(cond.OnMissingField),
		OnCoercion: OnCoercionPolicy(cond.OnCoercionFail),
		Cost:       CalculateConditionCost(path, op, ft),
	}, nil
}

// validatePath checks depth and wildcard limits. The first segment must be
// a property or pseudo-field name; a pseudo-field takes no further segments.
func validatePath(path []types.PathSegment) error {
	if len(path) == 0 || path[0].Key == "" {
		return fmt.Errorf("%w: path must start with a property name", types.ErrFieldNotFound)
	}
	if len(path) > types.MaxPathDepth {
		return types.ErrPathTooDeep
	}
	if isPseudoField(path[0].Key) && len(path) > 1 {
		return types.ErrPathTooDeep
	}

	wildcardCount := 0
	for _, seg := range path[1:] {
		if seg.Key != "" {
			return fmt.Errorf("%w: property values have no named members", types.ErrPathTooDeep)
		}
		if seg.Wildcard {
			wildcardCount++
		}
	}
	if wildcardCount > types.MaxNestedWildcards {
		return types.ErrTooManyWildcards
	}
	return nil
}

// coerceLiteral brings a comparison literal to the condition's field type,
// so "5" and 5 mean the same thing under numeric.
func coerceLiteral(v any, ft FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}
	res, err := Coerce(v, ft)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}
