package rules

import (
	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Field path resolution for trace events.
 *
 * A path names one property of an event and optionally one array element:
 *
 *   THREAD_ID        scalar property
 *   ARGS[2]          element 2 of an array property
 *   ARGS[*]          every element of an array property (ANY semantics)
 *   $type, $group    the event's type or group name
 *
 * Resolve returns every candidate value the path denotes; a condition
 * matches when any candidate matches. Candidates keep array order so the
 * reported match is deterministic.
 *
 * char properties are stored as runes; they resolve to one-rune strings so
 * text comparisons see the character rather than its code point.
 */

// ResolveResult contains one resolved value and the concrete path taken.
type ResolveResult struct {
	Value        any                 // resolved value
	ResolvedPath []types.PathSegment // path with wildcards replaced by actual indices
}

func isPseudoField(name string) bool {
	return name == types.FieldEventType || name == types.FieldEventGroup
}

// Resolve looks path up on evt.
// Returns ErrPathTooDeep or ErrTooManyWildcards for paths beyond the limits.
// Returns ErrFieldNotFound if the event does not carry the path.
func Resolve(path []types.PathSegment, evt *types.Event) ([]ResolveResult, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	head := path[0]
	var value any
	switch head.Key {
	case types.FieldEventType:
		value = string(evt.Type)
	case types.FieldEventGroup:
		value = evt.Group().String()
	default:
		key, v, ok := evt.Lookup(head.Key)
		if !ok {
			return nil, types.ErrFieldNotFound
		}
		value = normalize(key.Type, v)
	}

	resolved := []types.PathSegment{head}
	if len(path) == 1 {
		return []ResolveResult{{Value: value, ResolvedPath: resolved}}, nil
	}

	elems, ok := value.([]any)
	if !ok {
		// Scalar value but path continues
		return nil, types.ErrFieldNotFound
	}

	seg := path[1]
	if seg.Wildcard {
		if len(elems) == 0 {
			// Empty array: all elements missing, defer to on_missing_field
			return nil, types.ErrFieldNotFound
		}
		results := make([]ResolveResult, len(elems))
		for i, elem := range elems {
			results[i] = ResolveResult{
				Value:        elem,
				ResolvedPath: []types.PathSegment{head, {Index: i, IsIndex: true}},
			}
		}
		return results, nil
	}

	if seg.Index < 0 || seg.Index >= len(elems) {
		return nil, types.ErrFieldNotFound
	}
	return []ResolveResult{{Value: elems[seg.Index], ResolvedPath: append(resolved, seg)}}, nil
}

// normalize converts a stored property value into the loose form the
// comparison operators work on: arrays become []any, chars become strings.
func normalize(tag types.TypeTag, v any) any {
	if tag.Elem() == types.TypeChar {
		switch x := v.(type) {
		case rune:
			return string(x)
		case []rune:
			out := make([]any, len(x))
			for i, r := range x {
				out[i] = string(r)
			}
			return out
		}
	}

	switch x := v.(type) {
	case []bool:
		return toAny(x)
	case []int8:
		return toAny(x)
	case []int16:
		return toAny(x)
	case []int32:
		return toAny(x)
	case []int64:
		return toAny(x)
	case []float32:
		return toAny(x)
	case []float64:
		return toAny(x)
	case []string:
		return toAny(x)
	}
	return v
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
