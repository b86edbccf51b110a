package trace

import (
	"context"
	"fmt"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

// Query answers path and event questions about a finished trace.
// Every method reads the graph; none modifies it.
type Query struct {
	g    graph.Graph
	reg  *types.Registry
	keys wellKnownKeys
}

func newQuery(s *Session) *Query {
	return &Query{g: s.Graph, reg: s.Registry, keys: lookupKeys(s.Registry)}
}

// IsEmptyEvent reports whether evt is the sentinel returned when a scan
// finds nothing.
func IsEmptyEvent(evt *types.Event) bool {
	return evt == nil || (evt.ID == 0 && evt.Type == "")
}

func emptyEvent() *types.Event { return types.NewEvent("") }

func (q *Query) read(ctx context.Context, n graph.NodeID) (*types.Event, error) {
	return readEvent(ctx, q.g, q.reg, q.keys, n)
}

func (q *Query) rootMarker(ctx context.Context) (graph.NodeID, error) {
	return q.g.Root(ctx)
}

func (q *Query) treeRoot(ctx context.Context) (graph.NodeID, error) {
	marker, err := q.rootMarker(ctx)
	if err != nil {
		return 0, err
	}
	e, ok, err := single(ctx, q.g, marker, graph.EdgeRootState, graph.Outgoing)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, types.ErrNoTrace
	}
	return e.To, nil
}

// LastState returns the frontier of the live path.
func (q *Query) LastState(ctx context.Context) (*types.Event, error) {
	marker, err := q.rootMarker(ctx)
	if err != nil {
		return nil, err
	}
	e, ok, err := single(ctx, q.g, marker, graph.EdgeLastState, graph.Outgoing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrNoTrace
	}
	return q.read(ctx, e.To)
}

// GetEndStates returns every terminal state in the order they were reached.
func (q *Query) GetEndStates(ctx context.Context) ([]*types.Event, error) {
	marker, err := q.rootMarker(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := q.g.Edges(ctx, marker, graph.EdgeEndState, graph.Outgoing)
	if err != nil {
		return nil, err
	}
	states := make([]*types.Event, 0, len(edges))
	for _, e := range edges {
		s, err := q.read(ctx, e.To)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, nil
}

// GetStateByID finds the state carrying STATE_ID id.
func (q *Query) GetStateByID(ctx context.Context, id int64) (*types.Event, error) {
	root, err := q.treeRoot(ctx)
	if err != nil {
		return nil, err
	}
	n, found, err := findStateByID(ctx, q.g, q.keys, root, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %d", types.ErrNoSuchStateID, id)
	}
	return q.read(ctx, n)
}

// GetStatePathFromLastState walks transition edges from state up to the
// tree root. The result is root first, or state first when reverse is set.
func (q *Query) GetStatePathFromLastState(ctx context.Context, state *types.Event, reverse bool) ([]*types.Event, error) {
	nodes, err := q.statePath(ctx, graph.NodeID(state.ID))
	if err != nil {
		return nil, err
	}
	path := make([]*types.Event, len(nodes))
	for i, n := range nodes {
		s, err := q.read(ctx, n)
		if err != nil {
			return nil, err
		}
		if reverse {
			path[len(nodes)-1-i] = s
		} else {
			path[i] = s
		}
	}
	return path, nil
}

// statePath returns the node ids from the tree root down to state.
func (q *Query) statePath(ctx context.Context, state graph.NodeID) ([]graph.NodeID, error) {
	spec := graph.TraversalSpec{Edge: graph.EdgeTransition, Direction: graph.Incoming, Order: graph.DepthFirst}
	up, err := q.g.Traverse(ctx, state, spec, graph.IncludeAll)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(up)-1; i < j; i, j = i+1, j-1 {
		up[i], up[j] = up[j], up[i]
	}
	return up, nil
}

// GetEventsFromState returns the events of the chain anchored at state that
// pred keeps, in chain order or reversed.
func (q *Query) GetEventsFromState(ctx context.Context, pred Predicate, state *types.Event, reverse bool) ([]*types.Event, error) {
	return q.chain(ctx, pred, graph.NodeID(state.ID), reverse)
}

// chain traverses the event chain of a state. Forward starts at the state
// and follows outgoing event edges; reverse starts at the last-event target
// and follows incoming event edges until the state is reached.
func (q *Query) chain(ctx context.Context, pred Predicate, state graph.NodeID, reverse bool) ([]*types.Event, error) {
	start := state
	spec := graph.TraversalSpec{Edge: graph.EdgeEvent, Direction: graph.Outgoing, Order: graph.DepthFirst}
	if reverse {
		last, ok, err := single(ctx, q.g, state, graph.EdgeLastEvent, graph.Outgoing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		start = last.To
		spec.Direction = graph.Incoming
	}

	var kept []*types.Event
	_, err := q.g.Traverse(ctx, start, spec, func(ctx context.Context, n graph.NodeID, depth int) (graph.Evaluation, error) {
		if n == state {
			if reverse {
				return graph.ExcludeAndStop, nil
			}
			return graph.ExcludeAndContinue, nil
		}
		evt, err := q.read(ctx, n)
		if err != nil {
			return graph.ExcludeAndStop, err
		}
		ok, err := pred.Filter(evt)
		if err != nil {
			return graph.ExcludeAndStop, fmt.Errorf("%w: %w", types.ErrPredicateFailed, err)
		}
		if ok {
			kept = append(kept, evt)
			return graph.IncludeAndContinue, nil
		}
		return graph.ExcludeAndContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}

// interleave reads each state followed by its filtered chain.
func (q *Query) interleave(ctx context.Context, pred Predicate, states []graph.NodeID) ([]*types.Event, error) {
	var elems []*types.Event
	for _, n := range states {
		s, err := q.read(ctx, n)
		if err != nil {
			return nil, err
		}
		events, err := q.chain(ctx, pred, n, false)
		if err != nil {
			return nil, err
		}
		elems = append(elems, s)
		elems = append(elems, events...)
	}
	return elems, nil
}

// interleaveBackward walks states from the last one up to the first. Each
// state is followed by its chain read from the tail, so every event still
// comes after the marker of the state that owns it.
func (q *Query) interleaveBackward(ctx context.Context, pred Predicate, states []graph.NodeID) ([]*types.Event, error) {
	var elems []*types.Event
	for i := len(states) - 1; i >= 0; i-- {
		s, err := q.read(ctx, states[i])
		if err != nil {
			return nil, err
		}
		events, err := q.chain(ctx, pred, states[i], true)
		if err != nil {
			return nil, err
		}
		elems = append(elems, s)
		elems = append(elems, events...)
	}
	return elems, nil
}

func (q *Query) pathIterator(ctx context.Context, pred Predicate, state graph.NodeID, reverse bool) (*EventIterator, error) {
	states, err := q.statePath(ctx, state)
	if err != nil {
		return nil, err
	}
	if reverse {
		elems, err := q.interleaveBackward(ctx, pred, states)
		if err != nil {
			return nil, err
		}
		return NewIterator(elems, SkipStates), nil
	}
	elems, err := q.interleave(ctx, pred, states)
	if err != nil {
		return nil, err
	}
	return NewIterator(elems, SkipStates), nil
}

// GetLastPath returns the live path from the tree root to the frontier,
// each state followed by the events of its chain that pred keeps.
// With reverse the path starts at the frontier and each chain is read from
// its tail.
func (q *Query) GetLastPath(ctx context.Context, pred Predicate, reverse bool) (*EventIterator, error) {
	marker, err := q.rootMarker(ctx)
	if err != nil {
		return nil, err
	}
	last, ok, err := single(ctx, q.g, marker, graph.EdgeLastState, graph.Outgoing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrNoTrace
	}
	return q.pathIterator(ctx, pred, last.To, reverse)
}

// GetAllPaths returns one path iterator per end state.
func (q *Query) GetAllPaths(ctx context.Context, pred Predicate, reverse bool) ([]*EventIterator, error) {
	marker, err := q.rootMarker(ctx)
	if err != nil {
		return nil, err
	}
	ends, err := q.g.Edges(ctx, marker, graph.EdgeEndState, graph.Outgoing)
	if err != nil {
		return nil, err
	}
	paths := make([]*EventIterator, 0, len(ends))
	for _, e := range ends {
		it, err := q.pathIterator(ctx, pred, e.To, reverse)
		if err != nil {
			return nil, err
		}
		paths = append(paths, it)
	}
	return paths, nil
}

// GetEvents returns the whole trace: every state in tree order followed by
// the events of its chain that pred keeps.
func (q *Query) GetEvents(ctx context.Context, pred Predicate, order graph.Order) (*EventIterator, error) {
	root, err := q.treeRoot(ctx)
	if err != nil {
		return nil, err
	}
	spec := graph.TraversalSpec{Edge: graph.EdgeTransition, Direction: graph.Outgoing, Order: order}
	states, err := q.g.Traverse(ctx, root, spec, graph.IncludeAll)
	if err != nil {
		return nil, err
	}
	elems, err := q.interleave(ctx, pred, states)
	if err != nil {
		return nil, err
	}
	return NewIterator(elems, SkipStates), nil
}

// GetStates returns every state of the tree in the given order.
func (q *Query) GetStates(ctx context.Context, order graph.Order) ([]*types.Event, error) {
	root, err := q.treeRoot(ctx)
	if err != nil {
		return nil, err
	}
	spec := graph.TraversalSpec{Edge: graph.EdgeTransition, Direction: graph.Outgoing, Order: order}
	nodes, err := q.g.Traverse(ctx, root, spec, graph.IncludeAll)
	if err != nil {
		return nil, err
	}
	states := make([]*types.Event, len(nodes))
	for i, n := range nodes {
		if states[i], err = q.read(ctx, n); err != nil {
			return nil, err
		}
	}
	return states, nil
}

// GetSuccessorEventOfGroupType scans forward along the chain from from and
// returns the first event of group. It returns the empty event when the
// chain ends first.
func (q *Query) GetSuccessorEventOfGroupType(ctx context.Context, from *types.Event, group types.Group) (*types.Event, error) {
	cur := graph.NodeID(from.ID)
	for {
		next, ok, err := single(ctx, q.g, cur, graph.EdgeEvent, graph.Outgoing)
		if err != nil {
			return nil, err
		}
		if !ok {
			return emptyEvent(), nil
		}
		if next.Tag == int(group) {
			return q.read(ctx, next.To)
		}
		cur = next.To
	}
}

// GetPredecessorEventOfGroupType scans backward along the chain from from
// and returns the nearest earlier event of group. It returns the empty
// event when the chain's state is reached first.
func (q *Query) GetPredecessorEventOfGroupType(ctx context.Context, from *types.Event, group types.Group) (*types.Event, error) {
	cur := graph.NodeID(from.ID)
	for {
		in, ok, err := single(ctx, q.g, cur, graph.EdgeEvent, graph.Incoming)
		if err != nil {
			return nil, err
		}
		if !ok {
			return emptyEvent(), nil
		}
		prev := in.From
		// The edge into prev records prev's group; the state anchoring
		// the chain has none.
		into, ok, err := single(ctx, q.g, prev, graph.EdgeEvent, graph.Incoming)
		if err != nil {
			return nil, err
		}
		if !ok {
			return emptyEvent(), nil
		}
		if into.Tag == int(group) {
			return q.read(ctx, prev)
		}
		cur = prev
	}
}

// GetThreadIdList returns the distinct THREAD_ID values yielded by it in
// first-occurrence order. The iterator is rewound before and after the scan.
func GetThreadIdList(it *EventIterator) []int64 {
	it.Reset()
	defer it.Reset()

	seen := make(map[int64]bool)
	var ids []int64
	for it.HasNext() {
		tid, ok := it.Next().ThreadID()
		if !ok || seen[tid] {
			continue
		}
		seen[tid] = true
		ids = append(ids, tid)
	}
	return ids
}
