package rules

import (
	"errors"
	"fmt"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Filter evaluation orchestration.
 *
 * Evaluates a CompiledFilter against one event with DNF semantics (OR of
 * AND groups).
 *
 * Evaluation flow:
 *   1. OR groups evaluation (short-circuit on first match)
 *   2. AND conditions evaluation (short-circuit on first non-match, cost-ordered)
 *   3. Per-condition: resolve path -> coerce type -> compare operator
 *   4. Apply on_missing_field and on_coercion_fail policies
 *   5. Record matched field, value and group for diagnostics
 *
 * Policy handling:
 *   - Missing field: defers to on_missing_field (skip/match/fail)
 *   - Coercion failure: defers to on_coercion_fail (skip/match/error);
 *     error aborts evaluation with ErrCoercionFailed
 *
 * Wildcard paths resolve to several candidates; the condition matches when
 * any candidate matches, and the first matching candidate is reported.
 */

// MatchResult contains the outcome of filter evaluation.
type MatchResult struct {
	Matched      bool
	MatchedField []types.PathSegment
	MatchedValue any
	MatchedGroup int // index of the matching OR group, -1 if none
}

// Evaluate checks if the filter matches the given event.
// A filter without groups matches every event.
func Evaluate(filter *CompiledFilter, evt *types.Event) (MatchResult, error) {
	result := MatchResult{MatchedGroup: -1}

	if filter.MatchesAll() {
		result.Matched = true
		return result, nil
	}

	for groupIdx, group := range filter.OrGroups {
		matched, field, value, err := evaluateGroup(group, evt)
		if err != nil {
			return result, err
		}
		if matched {
			result.Matched = true
			result.MatchedField = field
			result.MatchedValue = value
			result.MatchedGroup = groupIdx
			return result, nil
		}
	}

	return result, nil
}

// evaluateGroup evaluates AND group (all conditions must match).
// Short-circuits on first non-match. Returns matched field/value from first condition.
func evaluateGroup(group CompiledOrGroup, evt *types.Event) (bool, []types.PathSegment, any, error) {
	var firstField []types.PathSegment
	var firstValue any

	for i, cond := range group.Conditions {
		matched, field, value, err := evaluateCondition(cond, evt)
		if err != nil {
			return false, nil, nil, err
		}
		if !matched {
			return false, nil, nil, nil
		}
		if i == 0 {
			firstField = field
			firstValue = value
		}
	}

	return true, firstField, firstValue, nil
}

// evaluateCondition evaluates a single condition against an event.
func evaluateCondition(cond CompiledCondition, evt *types.Event) (bool, []types.PathSegment, any, error) {
	candidates, err := Resolve(cond.Path, evt)
	if err != nil {
		if errors.Is(err, types.ErrFieldNotFound) {
			return applyMissingPolicy(cond.OnMissing), nil, nil, nil
		}
		return false, nil, nil, err
	}

	target, ok, err := conditionTarget(cond, evt)
	if err != nil {
		return false, nil, nil, err
	}
	if !ok {
		return applyMissingPolicy(cond.OnMissing), nil, nil, nil
	}

	// Last coercion failure, reported when no candidate matched.
	var failedPath []types.PathSegment
	var failedValue any
	coercionFailed := false

	for _, c := range candidates {
		coerced, err := Coerce(c.Value, cond.FieldType)
		if err != nil {
			if !errors.Is(err, types.ErrCoercionFailed) {
				return false, nil, nil, err
			}
			if cond.OnCoercion == OnCoercionError {
				return false, nil, nil, fmt.Errorf("%w: %s value %v is not %s",
					types.ErrCoercionFailed, FormatPath(c.ResolvedPath), c.Value, fieldTypeName(cond.FieldType))
			}
			failedPath, failedValue, coercionFailed = c.ResolvedPath, c.Value, true
			continue
		}
		if Compare(cond.Operator, coerced.Value, target) {
			return true, c.ResolvedPath, coerced.Value, nil
		}
	}

	if coercionFailed && applyCoercionPolicy(cond.OnCoercion) {
		return true, failedPath, failedValue, nil
	}
	return false, nil, nil, nil
}

// conditionTarget returns the value the resolved field is compared against.
// ok is false when a field reference cannot be resolved.
func conditionTarget(cond CompiledCondition, evt *types.Event) (any, bool, error) {
	switch {
	case len(cond.FieldRef) > 0:
		refs, err := Resolve(cond.FieldRef, evt)
		if err != nil {
			if errors.Is(err, types.ErrFieldNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		coerced, err := Coerce(refs[0].Value, cond.FieldType)
		if err != nil || coerced.IsNull {
			return nil, false, nil
		}
		return coerced.Value, true, nil
	case cond.Operator == OpIn:
		return cond.Values, true, nil
	default:
		return cond.Value, true, nil
	}
}

// applyMissingPolicy converts OnMissingField policy to boolean match result.
// SKIP/FAIL -> false, MATCH -> true.
func applyMissingPolicy(policy OnMissingField) bool {
	return policy == OnMissingMatch
}

// applyCoercionPolicy converts OnCoercionPolicy policy to boolean match result.
// MATCH -> true, SKIP -> false.
func applyCoercionPolicy(policy OnCoercionPolicy) bool {
	return policy == OnCoercionMatch
}
