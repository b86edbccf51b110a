package types

import (
	"fmt"
	"sort"
)

// Group is the coarse category a fine-grained EventType maps to.
type Group int

const (
	GroupUnknown Group = iota
	GroupInstruction
	GroupThread
	GroupClassInfo
	GroupMethod
	GroupObject
	GroupGC
	GroupException
	GroupChoiceGenerator
	GroupSearch
	GroupState
	GroupViolation
)

var groupNames = [...]string{
	GroupUnknown:         "unknown",
	GroupInstruction:     "instruction",
	GroupThread:          "thread",
	GroupClassInfo:       "classInfo",
	GroupMethod:          "method",
	GroupObject:          "object",
	GroupGC:              "gc",
	GroupException:       "exception",
	GroupChoiceGenerator: "choiceGenerator",
	GroupSearch:          "search",
	GroupState:           "state",
	GroupViolation:       "violation",
}

func (g Group) String() string {
	if g < 0 || int(g) >= len(groupNames) {
		return groupNames[GroupUnknown]
	}
	return groupNames[g]
}

// ParseGroup converts a group name back to a Group.
func ParseGroup(s string) (Group, bool) {
	for g, name := range groupNames {
		if name == s && Group(g) != GroupUnknown {
			return Group(g), true
		}
	}
	return GroupUnknown, false
}

// EventType is the fine-grained notification kind. The string value is what
// gets stored under EVENT_TYPE.
type EventType string

const (
	EventExecuteInstruction  EventType = "executeInstruction"
	EventInstructionExecuted EventType = "instructionExecuted"

	EventThreadStarted     EventType = "threadStarted"
	EventThreadBlocked     EventType = "threadBlocked"
	EventThreadWaiting     EventType = "threadWaiting"
	EventThreadNotified    EventType = "threadNotified"
	EventThreadInterrupted EventType = "threadInterrupted"
	EventThreadTerminated  EventType = "threadTerminated"
	EventThreadScheduled   EventType = "threadScheduled"

	EventClassLoaded EventType = "classLoaded"

	EventMethodEntered EventType = "methodEntered"
	EventMethodExited  EventType = "methodExited"

	EventObjectCreated   EventType = "objectCreated"
	EventObjectReleased  EventType = "objectReleased"
	EventObjectLocked    EventType = "objectLocked"
	EventObjectUnlocked  EventType = "objectUnlocked"
	EventObjectWait      EventType = "objectWait"
	EventObjectNotify    EventType = "objectNotify"
	EventObjectNotifyAll EventType = "objectNotifyAll"

	EventGCBegin EventType = "gcBegin"
	EventGCEnd   EventType = "gcEnd"

	EventExceptionThrown  EventType = "exceptionThrown"
	EventExceptionBailout EventType = "exceptionBailout"
	EventExceptionHandled EventType = "exceptionHandled"

	EventChoiceGeneratorRegistered EventType = "choiceGeneratorRegistered"
	EventChoiceGeneratorSet        EventType = "choiceGeneratorSet"
	EventChoiceGeneratorAdvanced   EventType = "choiceGeneratorAdvanced"
	EventChoiceGeneratorProcessed  EventType = "choiceGeneratorProcessed"

	EventSearchStarted       EventType = "searchStarted"
	EventSearchFinished      EventType = "searchFinished"
	EventSearchConstraintHit EventType = "searchConstraintHit"

	EventStateAdvanced    EventType = "stateAdvanced"
	EventStateProcessed   EventType = "stateProcessed"
	EventStateBacktracked EventType = "stateBacktracked"
	EventStateRestored    EventType = "stateRestored"
	EventStateStored      EventType = "stateStored"
	EventStatePurged      EventType = "statePurged"

	EventPropertyViolated EventType = "propertyViolated"

	// EventState tags materialized state nodes; it is never notified.
	EventState EventType = "state"
)

var eventGroups = map[EventType]Group{
	EventExecuteInstruction:  GroupInstruction,
	EventInstructionExecuted: GroupInstruction,

	EventThreadStarted:     GroupThread,
	EventThreadBlocked:     GroupThread,
	EventThreadWaiting:     GroupThread,
	EventThreadNotified:    GroupThread,
	EventThreadInterrupted: GroupThread,
	EventThreadTerminated:  GroupThread,
	EventThreadScheduled:   GroupThread,

	EventClassLoaded: GroupClassInfo,

	EventMethodEntered: GroupMethod,
	EventMethodExited:  GroupMethod,

	EventObjectCreated:   GroupObject,
	EventObjectReleased:  GroupObject,
	EventObjectLocked:    GroupObject,
	EventObjectUnlocked:  GroupObject,
	EventObjectWait:      GroupObject,
	EventObjectNotify:    GroupObject,
	EventObjectNotifyAll: GroupObject,

	EventGCBegin: GroupGC,
	EventGCEnd:   GroupGC,

	EventExceptionThrown:  GroupException,
	EventExceptionBailout: GroupException,
	EventExceptionHandled: GroupException,

	EventChoiceGeneratorRegistered: GroupChoiceGenerator,
	EventChoiceGeneratorSet:        GroupChoiceGenerator,
	EventChoiceGeneratorAdvanced:   GroupChoiceGenerator,
	EventChoiceGeneratorProcessed:  GroupChoiceGenerator,

	EventSearchStarted:       GroupSearch,
	EventSearchFinished:      GroupSearch,
	EventSearchConstraintHit: GroupSearch,

	EventStateAdvanced:    GroupState,
	EventStateProcessed:   GroupState,
	EventStateBacktracked: GroupState,
	EventStateRestored:    GroupState,
	EventStateStored:      GroupState,
	EventStatePurged:      GroupState,

	EventPropertyViolated: GroupViolation,

	EventState: GroupState,
}

// Group returns the group of the event type, GroupUnknown if unknown.
func (t EventType) Group() Group {
	return eventGroups[t]
}

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	_, ok := eventGroups[t]
	return ok
}

// NotificationTypes lists every notifiable event type in name order.
func NotificationTypes() []EventType {
	out := make([]EventType, 0, len(eventGroups)-1)
	for t := range eventGroups {
		if t != EventState {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Event is a property bag with a type tag and an optional display priority.
type Event struct {
	// ID is the backend handle of the node the event was read from; zero
	// for events that have not been stored.
	ID int64

	Type EventType

	priority    int32
	hasPriority bool
	props       map[PropertyKey]any
}

// NewEvent creates an empty event of the given type.
func NewEvent(t EventType) *Event {
	return &Event{Type: t, props: make(map[PropertyKey]any)}
}

// Group returns the group derived from the event type.
func (e *Event) Group() Group { return e.Type.Group() }

// IsState reports whether the event is a materialized state marker.
func (e *Event) IsState() bool { return e.Type == EventState }

// SetPriority sets the display priority.
func (e *Event) SetPriority(p int32) {
	e.priority = p
	e.hasPriority = true
}

// Priority returns the display priority if one was set.
func (e *Event) Priority() (int32, bool) { return e.priority, e.hasPriority }

// Set stores a property value after checking it against the key's type.
func (e *Event) Set(key PropertyKey, v any) error {
	if err := CheckValue(key.Type, v); err != nil {
		return fmt.Errorf("property %s: %w", key.Name, err)
	}
	if e.props == nil {
		e.props = make(map[PropertyKey]any)
	}
	e.props[key] = v
	return nil
}

// MustSet is Set for values whose type is known to match.
func (e *Event) MustSet(key PropertyKey, v any) *Event {
	if err := e.Set(key, v); err != nil {
		panic(err)
	}
	return e
}

// Get returns the value stored under key. A missing property is (nil, false).
func (e *Event) Get(key PropertyKey) (any, bool) {
	v, ok := e.props[key]
	return v, ok
}

// Lookup finds a property by name.
func (e *Event) Lookup(name string) (PropertyKey, any, bool) {
	for k, v := range e.props {
		if k.Name == name {
			return k, v, true
		}
	}
	return PropertyKey{}, nil, false
}

// Remove deletes a property; removing an absent property is a no-op.
func (e *Event) Remove(key PropertyKey) { delete(e.props, key) }

// Keys returns the event's keys ordered by id.
func (e *Event) Keys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(e.props))
	for k := range e.props {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	return keys
}

// Len returns the number of properties.
func (e *Event) Len() int { return len(e.props) }

// Int returns an integral property widened to int64.
func (e *Event) Int(name string) (int64, bool) {
	_, v, ok := e.Lookup(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
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

// Bool returns a boolean property.
func (e *Event) Bool(name string) (bool, bool) {
	_, v, ok := e.Lookup(name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Text returns a string property.
func (e *Event) Text(name string) (string, bool) {
	_, v, ok := e.Lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StateID returns the STATE_ID property.
func (e *Event) StateID() (int64, bool) { return e.Int(PropStateID) }

// ThreadID returns the THREAD_ID property.
func (e *Event) ThreadID() (int64, bool) { return e.Int(PropThreadID) }

// Clone returns a copy with its own property map. Slice values are shared.
func (e *Event) Clone() *Event {
	c := *e
	c.props = make(map[PropertyKey]any, len(e.props))
	for k, v := range e.props {
		c.props[k] = v
	}
	return &c
}
