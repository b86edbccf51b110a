package trace

import "github.com/solatis/searchtrace/internal/types"

// Policy selects which elements an EventIterator yields.
type Policy int

const (
	// SkipStates yields events only; state markers update the current state.
	SkipStates Policy = iota

	// IncludeAll yields state markers and events alike.
	IncludeAll
)

func (p Policy) String() string {
	if p == IncludeAll {
		return "include-all"
	}
	return "skip-states"
}

// EventIterator is a restartable cursor over a materialized sequence of
// state markers and events.
type EventIterator struct {
	elems  []*types.Event
	policy Policy

	pos     int // index of the last yielded element, -1 before the first
	current int // index of the current element, -1 if none
	marker  int // index of the most recently passed state marker, -1 if none
}

// NewIterator iterates elems in order under policy. The iterator owns elems.
func NewIterator(elems []*types.Event, policy Policy) *EventIterator {
	it := &EventIterator{elems: elems, policy: policy}
	it.Reset()
	return it
}

// NewReverseIterator moves each state marker to the front of its local run
// and iterates the result under SkipStates. A marker that already opens
// its run stays put and the run continues past it; a marker found later
// in the run is moved to where the run began and ends the run.
//
// [S0 e1 e2 S1 e3 S2] becomes [S1 S0 e1 e2 S2 e3].
func NewReverseIterator(elems []*types.Event) *EventIterator {
	reordered := make([]*types.Event, len(elems))
	copy(reordered, elems)

	runStart := 0
	for i, e := range reordered {
		if !e.IsState() || i == runStart {
			continue
		}
		copy(reordered[runStart+1:i+1], reordered[runStart:i])
		reordered[runStart] = e
		runStart = i + 1
	}
	return NewIterator(reordered, SkipStates)
}

// Policy returns the iterator's inclusion policy.
func (it *EventIterator) Policy() Policy { return it.policy }

// Len returns the number of elements, markers included.
func (it *EventIterator) Len() int { return len(it.elems) }

// Elements returns a copy of the backing sequence.
func (it *EventIterator) Elements() []*types.Event {
	out := make([]*types.Event, len(it.elems))
	copy(out, it.elems)
	return out
}

func (it *EventIterator) yields(e *types.Event) bool {
	return it.policy == IncludeAll || !e.IsState()
}

// HasNext reports whether Next would yield an element.
func (it *EventIterator) HasNext() bool {
	for i := it.pos + 1; i < len(it.elems); i++ {
		if it.yields(it.elems[i]) {
			return true
		}
	}
	return false
}

// Next advances to the next yielded element and returns it, or nil when
// the sequence is exhausted.
func (it *EventIterator) Next() *types.Event {
	if !it.HasNext() {
		return nil
	}
	for i := it.pos + 1; i < len(it.elems); i++ {
		e := it.elems[i]
		if e.IsState() {
			it.marker = i
		}
		if it.yields(e) {
			it.pos = i
			it.current = i
			return e
		}
	}
	return nil
}

// Remove deletes the current element. It reports false when there is no
// current element, before the first Next or after a previous Remove.
func (it *EventIterator) Remove() bool {
	if it.current < 0 {
		return false
	}
	idx := it.current
	it.elems = append(it.elems[:idx], it.elems[idx+1:]...)
	it.pos = idx - 1
	it.current = -1

	it.marker = -1
	for i := it.pos; i >= 0; i-- {
		if it.elems[i].IsState() {
			it.marker = i
			break
		}
	}
	return true
}

// Reset rewinds to before the first element.
func (it *EventIterator) Reset() {
	it.pos = -1
	it.current = -1
	it.marker = -1
}

// GoTo advances until target has been yielded and reports whether it was
// found. Elements match by backend id, or by identity for unstored events.
func (it *EventIterator) GoTo(target *types.Event) bool {
	for it.HasNext() {
		e := it.Next()
		if e == target || (target != nil && target.ID != 0 && e.ID == target.ID) {
			return true
		}
	}
	return false
}

// CurrentEvent returns the most recently yielded element, or nil.
func (it *EventIterator) CurrentEvent() *types.Event {
	if it.current < 0 {
		return nil
	}
	return it.elems[it.current]
}

// CurrentState returns the most recently passed state marker, or nil.
func (it *EventIterator) CurrentState() *types.Event {
	if it.marker < 0 {
		return nil
	}
	return it.elems[it.marker]
}

// CurrentEventStateID returns the STATE_ID of the most recently passed
// state marker.
func (it *EventIterator) CurrentEventStateID() (int64, bool) {
	s := it.CurrentState()
	if s == nil {
		return 0, false
	}
	return s.StateID()
}
