package types

import (
	"fmt"
	"sort"
)

// Well-known property names. Interned by NewRegistry in this order, so
// their ids are identical in every registry instance.
const (
	PropEventType      = "EVENT_TYPE"
	PropPriority       = "PRIORITY"
	PropStateID        = "STATE_ID"
	PropIsNew          = "IS_NEW"
	PropIsEnd          = "IS_END"
	PropThreadID       = "THREAD_ID"
	PropThreadName     = "THREAD_NAME"
	PropClassName      = "CLASS_NAME"
	PropMethodName     = "METHOD_NAME"
	PropInstruction    = "INSTRUCTION"
	PropSourceLocation = "SOURCE_LOCATION"
	PropObjectRef      = "OBJECT_REF"
	PropChoiceID       = "CHOICE_ID"
	PropChoiceCount    = "CHOICE_COUNT"
	PropException      = "EXCEPTION"
	PropMessage        = "MESSAGE"
	PropSearchDepth    = "SEARCH_DEPTH"
	PropTimestamp      = "TIMESTAMP"
	PropRunID          = "RUN_ID"
)

var wellKnown = []struct {
	name string
	tag  TypeTag
}{
	{PropEventType, TypeString},
	{PropPriority, TypeInt},
	{PropStateID, TypeInt},
	{PropIsNew, TypeBoolean},
	{PropIsEnd, TypeBoolean},
	{PropThreadID, TypeInt},
	{PropThreadName, TypeString},
	{PropClassName, TypeString},
	{PropMethodName, TypeString},
	{PropInstruction, TypeString},
	{PropSourceLocation, TypeString},
	{PropObjectRef, TypeInt},
	{PropChoiceID, TypeString},
	{PropChoiceCount, TypeInt},
	{PropException, TypeString},
	{PropMessage, TypeString},
	{PropSearchDepth, TypeInt},
	{PropTimestamp, TypeLong},
	{PropRunID, TypeString},
}

// Registry is the bijection between property names and ids.
// Not safe for concurrent use: the trace has a single writer.
type Registry struct {
	byName map[string]PropertyKey
	byID   map[int]PropertyKey
	nextID int
}

// NewRegistry creates a registry with the well-known keys pre-interned.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]PropertyKey),
		byID:   make(map[int]PropertyKey),
		nextID: 1,
	}
	for _, wk := range wellKnown {
		if _, err := r.Intern(wk.name, wk.tag); err != nil {
			panic(fmt.Sprintf("interning well-known property %s: %v", wk.name, err))
		}
	}
	return r
}

// Intern returns the key registered under name, minting a new id on first use.
// Re-interning with a different type fails with ErrPropertyTypeMismatch.
func (r *Registry) Intern(name string, tag TypeTag) (PropertyKey, error) {
	if name == "" || len(name) > MaxPropertyNameLength {
		return PropertyKey{}, fmt.Errorf("%w: %q", ErrInvalidPropertyName, name)
	}
	if !tag.Valid() {
		return PropertyKey{}, fmt.Errorf("%w: %s has no valid type", ErrInvalidValue, name)
	}
	if key, ok := r.byName[name]; ok {
		if key.Type != tag {
			return PropertyKey{}, fmt.Errorf("%w: %s is %s, not %s", ErrPropertyTypeMismatch, name, key.Type, tag)
		}
		return key, nil
	}
	key := PropertyKey{Name: name, ID: r.nextID, Type: tag}
	r.nextID++
	r.byName[name] = key
	r.byID[key.ID] = key
	return key, nil
}

// MustIntern is Intern for names known at compile time.
func (r *Registry) MustIntern(name string, tag TypeTag) PropertyKey {
	key, err := r.Intern(name, tag)
	if err != nil {
		panic(err)
	}
	return key
}

// Adopt registers a key reconstructed from a (name, id, type) triple.
// Succeeds when the key is new or already registered identically.
func (r *Registry) Adopt(key PropertyKey) error {
	if existing, ok := r.byName[key.Name]; ok {
		if existing != key {
			if existing.Type != key.Type {
				return fmt.Errorf("%w: %s", ErrPropertyTypeMismatch, key.Name)
			}
			return fmt.Errorf("%w: %s has id %d, not %d", ErrPropertyIDConflict, key.Name, existing.ID, key.ID)
		}
		return nil
	}
	if other, ok := r.byID[key.ID]; ok {
		return fmt.Errorf("%w: %d belongs to %s", ErrPropertyIDConflict, key.ID, other.Name)
	}
	if key.Name == "" || !key.Type.Valid() || key.ID <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidPropertyName, key)
	}
	r.byName[key.Name] = key
	r.byID[key.ID] = key
	if key.ID >= r.nextID {
		r.nextID = key.ID + 1
	}
	return nil
}

// ByID looks a key up by id.
func (r *Registry) ByID(id int) (PropertyKey, bool) {
	key, ok := r.byID[id]
	return key, ok
}

// ByName looks a key up by name.
func (r *Registry) ByName(name string) (PropertyKey, bool) {
	key, ok := r.byName[name]
	return key, ok
}

// Keys returns every registered key ordered by id.
func (r *Registry) Keys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(r.byID))
	for _, k := range r.byID {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

// Len returns the number of registered keys.
func (r *Registry) Len() int { return len(r.byID) }

// KeyFromTriple rebuilds a key received over the wire without consulting a registry.
func KeyFromTriple(name string, id int, tag string) (PropertyKey, error) {
	t, ok := ParseTypeTag(tag)
	if !ok {
		return PropertyKey{}, fmt.Errorf("%w: unknown type tag %q for %s", ErrInvalidValue, tag, name)
	}
	if name == "" || id <= 0 {
		return PropertyKey{}, fmt.Errorf("%w: (%q, %d)", ErrInvalidPropertyName, name, id)
	}
	return PropertyKey{Name: name, ID: id, Type: t}, nil
}
