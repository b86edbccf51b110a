// internal/types/filters.go
package types

/*
 * Filter definitions for trace predicates.
 *
 * Provides Filter, OrGroup, Condition, and PathSegment structures used by
 * internal/rules for compilation and evaluation. These types carry no
 * evaluation logic; the CLI parses its --where JSON into them and the
 * query layer wraps the compiled form as a predicate.
 *
 * Key types:
 *   - Filter: complete filter definition with DNF structure
 *   - OrGroup: AND group (all conditions must match)
 *   - Condition: single comparison with field path and operator
 *   - PathSegment: property name, array index, or array wildcard
 *
 * Pseudo-fields: the first segment may be "$type" or "$group" to compare
 * against the event's type or group name instead of a stored property.
 */

// Pseudo-field names resolvable in a filter field path.
const (
	FieldEventType  = "$type"
	FieldEventGroup = "$group"
)

// PathSegment represents one component of a field path.
// Key for property names, Index for array positions, Wildcard for any element.
type PathSegment struct {
	Key      string // property name (mutually exclusive with Index/Wildcard)
	Index    int    // array index (mutually exclusive with Key/Wildcard)
	IsIndex  bool   // disambiguates Index=0 from unset
	Wildcard bool   // true = wildcard segment
}

// Condition represents a single condition in a filter expression.
type Condition struct {
	FieldPath      []PathSegment // path to the property
	Operator       int           // operator enum value
	FieldType      int           // field type enum value
	Value          any           // comparison value (nil for exists/is_null)
	Values         []any         // for IN operator
	FieldRef       []PathSegment // compare against another property instead of Value
	OnMissingField int           // policy enum value
	OnCoercionFail int           // policy enum value
}

// OrGroup represents an AND group in DNF (all conditions must match).
type OrGroup struct {
	Conditions []Condition
}

// Filter represents a complete predicate definition for compilation.
// An empty OrGroups list matches every event.
type Filter struct {
	Name     string    // human-readable name, used in error messages
	OrGroups []OrGroup // DNF: OR of AND groups
}
