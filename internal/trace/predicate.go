package trace

import (
	"github.com/solatis/searchtrace/internal/rules"
	"github.com/solatis/searchtrace/internal/types"
)

// Predicate decides whether a query keeps an event. An error aborts the
// whole query.
type Predicate interface {
	Filter(evt *types.Event) (bool, error)
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(evt *types.Event) (bool, error)

// Filter calls f(evt).
func (f PredicateFunc) Filter(evt *types.Event) (bool, error) { return f(evt) }

// All keeps every event.
var All Predicate = PredicateFunc(func(*types.Event) (bool, error) { return true, nil })

// GroupIs keeps events of any of the given groups.
func GroupIs(groups ...types.Group) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		g := evt.Group()
		for _, want := range groups {
			if g == want {
				return true, nil
			}
		}
		return false, nil
	})
}

// TypeIs keeps events of any of the given types.
func TypeIs(kinds ...types.EventType) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		for _, want := range kinds {
			if evt.Type == want {
				return true, nil
			}
		}
		return false, nil
	})
}

// ThreadIs keeps events whose THREAD_ID is one of ids.
func ThreadIs(ids ...int64) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		tid, ok := evt.ThreadID()
		if !ok {
			return false, nil
		}
		for _, want := range ids {
			if tid == want {
				return true, nil
			}
		}
		return false, nil
	})
}

// And keeps events every predicate keeps. Evaluation stops at the first rejection.
func And(preds ...Predicate) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		for _, p := range preds {
			ok, err := p.Filter(evt)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Or keeps events any predicate keeps. Evaluation stops at the first match.
func Or(preds ...Predicate) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		for _, p := range preds {
			ok, err := p.Filter(evt)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return PredicateFunc(func(evt *types.Event) (bool, error) {
		ok, err := p.Filter(evt)
		return !ok && err == nil, err
	})
}

// RulePredicate keeps events matching a compiled rules filter.
type RulePredicate struct {
	filter *rules.CompiledFilter
}

// NewRulePredicate compiles filter into a predicate.
func NewRulePredicate(filter *types.Filter) (*RulePredicate, error) {
	compiled, err := rules.Compile(filter)
	if err != nil {
		return nil, err
	}
	return &RulePredicate{filter: compiled}, nil
}

// Filter evaluates the compiled filter against evt.
func (p *RulePredicate) Filter(evt *types.Event) (bool, error) {
	result, err := rules.Evaluate(p.filter, evt)
	if err != nil {
		return false, err
	}
	return result.Matched, nil
}
