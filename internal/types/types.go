// Package types provides the domain model shared across searchtrace components.
//
// Property keys: a key is the (name, id, type) triple. Ids are minted by a
// Registry and never reassigned, so a key can be rebuilt on the far side of a
// wire from the triple alone.
//
// Events: an Event is a property bag with a fine-grained EventType and the
// coarse Group derived from it. State nodes are materialized as events of
// type EventState so that query results can interleave them with ordinary
// events.
//
// Separation from storage: nothing here knows about graph nodes or edges.
// Event.ID is an opaque handle assigned by whichever backend produced it.
package types

import "strings"

// TypeTag declares the scalar or string type of a property value.
// The array form of a scalar sets the ArrayFlag bit.
type TypeTag uint8

const (
	TypeUnspecified TypeTag = iota
	TypeBoolean
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeChar
	TypeString
)

// ArrayFlag marks the array form of a scalar TypeTag.
const ArrayFlag TypeTag = 0x80

var typeTagNames = map[TypeTag]string{
	TypeBoolean: "boolean",
	TypeByte:    "byte",
	TypeShort:   "short",
	TypeInt:     "int",
	TypeLong:    "long",
	TypeFloat:   "float",
	TypeDouble:  "double",
	TypeChar:    "char",
	TypeString:  "string",
}

// IsArray reports whether the tag denotes an array type.
func (t TypeTag) IsArray() bool { return t&ArrayFlag != 0 }

// Elem returns the scalar tag of an array tag (identity for scalars).
func (t TypeTag) Elem() TypeTag { return t &^ ArrayFlag }

// ArrayOf returns the array form of a scalar tag.
func (t TypeTag) ArrayOf() TypeTag { return t | ArrayFlag }

// Valid reports whether the tag names a known scalar or array type.
func (t TypeTag) Valid() bool {
	_, ok := typeTagNames[t.Elem()]
	return ok
}

func (t TypeTag) String() string {
	name, ok := typeTagNames[t.Elem()]
	if !ok {
		return "unspecified"
	}
	if t.IsArray() {
		return name + "[]"
	}
	return name
}

// ParseTypeTag converts a tag name ("int", "string[]") back to a TypeTag.
func ParseTypeTag(s string) (TypeTag, bool) {
	s = strings.TrimSpace(s)
	array := strings.HasSuffix(s, "[]")
	s = strings.TrimSuffix(s, "[]")
	for tag, name := range typeTagNames {
		if name == s {
			if array {
				return tag.ArrayOf(), true
			}
			return tag, true
		}
	}
	return TypeUnspecified, false
}

// PropertyKey identifies a property. Comparable, so it can key maps.
type PropertyKey struct {
	Name string
	ID   int
	Type TypeTag
}

// Limits enforced on user-provided filters and property bags.
const (
	// MaxPropertyNameLength bounds interned names; longer names are rejected.
	MaxPropertyNameLength = 128

	// MaxPathDepth limits a filter field path: a property name plus one index.
	MaxPathDepth = 2

	// MaxNestedWildcards limits array wildcards in a filter field path.
	MaxNestedWildcards = 1

	// MaxInOperatorValues limits IN operator list size.
	MaxInOperatorValues = 64
)
