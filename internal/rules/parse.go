package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * JSON filter syntax used by `searchtrace query --where`.
 *
 *   {"name": "worker threads",
 *    "any": [
 *      {"all": [
 *        {"field": "THREAD_ID", "op": "gte", "type": "numeric", "value": 2},
 *        {"field": "$group", "op": "eq", "value": "thread"}
 *      ]}
 *    ]}
 *
 * A document with a top-level "all" instead of "any" is a single AND group.
 * Field paths are NAME, NAME[n] or NAME[*]. Omitted type means any; omitted
 * policies mean skip. "field_ref" replaces "value" for cross-field
 * comparison; "values" holds the IN list.
 */

type filterDoc struct {
	Name string         `json:"name"`
	Any  []groupDoc     `json:"any"`
	All  []conditionDoc `json:"all"`
}

type groupDoc struct {
	All []conditionDoc `json:"all"`
}

type conditionDoc struct {
	Field      string `json:"field"`
	Op         string `json:"op"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
	Values     []any  `json:"values"`
	FieldRef   string `json:"field_ref"`
	OnMissing  string `json:"on_missing"`
	OnCoercion string `json:"on_coercion"`
}

var fieldTypeNames = map[string]FieldType{
	"":        FieldTypeAny,
	"any":     FieldTypeAny,
	"numeric": FieldTypeNumeric,
	"text":    FieldTypeText,
	"boolean": FieldTypeBoolean,
}

var missingPolicies = map[string]OnMissingField{
	"":      OnMissingSkip,
	"skip":  OnMissingSkip,
	"match": OnMissingMatch,
	"fail":  OnMissingFail,
}

var coercionPolicies = map[string]OnCoercionPolicy{
	"":      OnCoercionSkip,
	"skip":  OnCoercionSkip,
	"match": OnCoercionMatch,
	"error": OnCoercionError,
}

func fieldTypeName(ft FieldType) string {
	for name, t := range fieldTypeNames {
		if t == ft && name != "" {
			return name
		}
	}
	return "any"
}

// ParseFilter decodes the JSON filter syntax into a types.Filter.
// Unknown keys are rejected so a typo does not silently widen a query.
func ParseFilter(data []byte) (*types.Filter, error) {
	var doc filterDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse filter: %w", err)
	}
	if len(doc.Any) > 0 && len(doc.All) > 0 {
		return nil, fmt.Errorf("failed to parse filter: use either \"any\" or \"all\" at the top level")
	}

	groups := doc.Any
	if len(doc.All) > 0 {
		groups = []groupDoc{{All: doc.All}}
	}

	filter := &types.Filter{Name: doc.Name}
	for gi, g := range groups {
		if len(g.All) == 0 {
			return nil, fmt.Errorf("group %d: %w", gi, types.ErrEmptyExpression)
		}
		group := types.OrGroup{}
		for ci, c := range g.All {
			cond, err := parseCondition(c)
			if err != nil {
				return nil, fmt.Errorf("group %d condition %d: %w", gi, ci, err)
			}
			group.Conditions = append(group.Conditions, cond)
		}
		filter.OrGroups = append(filter.OrGroups, group)
	}
	return filter, nil
}

func parseCondition(c conditionDoc) (types.Condition, error) {
	path, err := ParsePath(c.Field)
	if err != nil {
		return types.Condition{}, err
	}

	op := OpUnspecified
	for o, name := range operatorNames {
		if name == c.Op {
			op = o
		}
	}
	if op == OpUnspecified {
		return types.Condition{}, fmt.Errorf("%w: %q", types.ErrInvalidOperator, c.Op)
	}

	ft, ok := fieldTypeNames[c.Type]
	if !ok {
		return types.Condition{}, fmt.Errorf("unknown field type %q", c.Type)
	}
	missing, ok := missingPolicies[c.OnMissing]
	if !ok {
		return types.Condition{}, fmt.Errorf("unknown on_missing policy %q", c.OnMissing)
	}
	coercion, ok := coercionPolicies[c.OnCoercion]
	if !ok {
		return types.Condition{}, fmt.Errorf("unknown on_coercion policy %q", c.OnCoercion)
	}

	cond := types.Condition{
		FieldPath:      path,
		Operator:       int(op),
		FieldType:      int(ft),
		Value:          c.Value,
		Values:         c.Values,
		OnMissingField: int(missing),
		OnCoercionFail: int(coercion),
	}
	if c.FieldRef != "" {
		if c.Value != nil {
			return types.Condition{}, fmt.Errorf("field_ref and value are mutually exclusive")
		}
		if cond.FieldRef, err = ParsePath(c.FieldRef); err != nil {
			return types.Condition{}, fmt.Errorf("field_ref: %w", err)
		}
	}
	return cond, nil
}

// ParsePath parses NAME, NAME[n] or NAME[*] into path segments.
func ParsePath(s string) ([]types.PathSegment, error) {
	s = strings.TrimSpace(s)
	name, rest, hasIndex := strings.Cut(s, "[")
	if name == "" {
		return nil, fmt.Errorf("%w: empty field name in %q", types.ErrFieldNotFound, s)
	}
	path := []types.PathSegment{{Key: name}}
	if !hasIndex {
		return path, nil
	}

	inner, ok := strings.CutSuffix(rest, "]")
	if !ok || strings.ContainsAny(inner, "[]") {
		return nil, fmt.Errorf("malformed field path %q", s)
	}
	if inner == "*" {
		return append(path, types.PathSegment{Wildcard: true}), nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("malformed index in field path %q", s)
	}
	return append(path, types.PathSegment{Index: idx, IsIndex: true}), nil
}

// FormatPath renders path segments in the ParsePath syntax.
func FormatPath(path []types.PathSegment) string {
	var b strings.Builder
	for _, seg := range path {
		switch {
		case seg.Wildcard:
			b.WriteString("[*]")
		case seg.IsIndex:
			fmt.Fprintf(&b, "[%d]", seg.Index)
		default:
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}
