package trace

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/rules"
	"github.com/solatis/searchtrace/internal/types"
)

// recordBranches records a tree with two end states:
//
//	S-1 -> S1 -> S2 (end)
//	S-1 -> S3 (end)
func recordBranches(h *harness) {
	h.notify(
		started(),
		thread(1), advanced(1, true, false),
		thread(2), advanced(2, true, true),
		backtracked(), backtracked(),
		thread(3), advanced(3, true, true),
		finished(),
	)
}

func stateIDs(t *testing.T, states []*types.Event) []int64 {
	t.Helper()
	ids := make([]int64, len(states))
	for i, s := range states {
		id, ok := s.StateID()
		require.True(t, ok)
		ids[i] = id
	}
	return ids
}

func TestQuery_EmptyGraph(t *testing.T) {
	h := newHarness(t)

	_, err := h.query.LastState(h.ctx)
	assert.ErrorIs(t, err, types.ErrNoTrace)
	_, err = h.query.GetLastPath(h.ctx, All, false)
	assert.ErrorIs(t, err, types.ErrNoTrace)
	_, err = h.query.GetStates(h.ctx, graph.DepthFirst)
	assert.ErrorIs(t, err, types.ErrNoTrace)
}

func TestQuery_EndStatesAndPaths(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	ends, err := h.query.GetEndStates(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, stateIDs(t, ends))

	paths, err := h.query.GetAllPaths(h.ctx, All, false)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S1", "e1", "stateBacktracked", "S2", "e2", "stateBacktracked"},
		labels(paths[0].Elements()))
	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S3", "e3", "searchFinished"},
		labels(paths[1].Elements()))

	assert.Equal(t, int64(3), h.lastStateID())
	assert.Equal(t, []string{"S-1", "searchStarted", "S3", "e3", "searchFinished"}, h.lastPath())
}

func TestQuery_StatePath(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)
	s2 := h.state(2)

	path, err := h.query.GetStatePathFromLastState(h.ctx, s2, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1, 1, 2}, stateIDs(t, path))

	path, err = h.query.GetStatePathFromLastState(h.ctx, s2, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, -1}, stateIDs(t, path))

	_, err = h.query.GetStateByID(h.ctx, 42)
	assert.ErrorIs(t, err, types.ErrNoSuchStateID)
}

func TestQuery_TraversalOrders(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	dfsStates, err := h.query.GetStates(h.ctx, graph.DepthFirst)
	require.NoError(t, err)
	bfsStates, err := h.query.GetStates(h.ctx, graph.BreadthFirst)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1, 1, 2, 3}, stateIDs(t, dfsStates))
	assert.Equal(t, []int64{-1, 1, 3, 2}, stateIDs(t, bfsStates))

	dfs, err := h.query.GetEvents(h.ctx, All, graph.DepthFirst)
	require.NoError(t, err)
	bfs, err := h.query.GetEvents(h.ctx, All, graph.BreadthFirst)
	require.NoError(t, err)

	dfsLabels, bfsLabels := drain(dfs), drain(bfs)
	assert.ElementsMatch(t, dfsLabels, bfsLabels)
	assert.NotEqual(t, dfsLabels, bfsLabels)
	assert.Equal(t,
		[]string{"searchStarted", "e1", "stateBacktracked", "e2", "stateBacktracked", "e3", "searchFinished"},
		dfsLabels)
}

type owned struct {
	event string
	state int64
}

// drainOwned drains it and pairs every event with the state it belongs to.
func drainOwned(t *testing.T, it *EventIterator) []owned {
	t.Helper()
	var out []owned
	for it.HasNext() {
		e := it.Next()
		sid, ok := it.CurrentEventStateID()
		require.True(t, ok, "event %s has no state", label(e))
		out = append(out, owned{label(e), sid})
	}
	return out
}

func TestQuery_ReverseLastPath(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	it, err := h.query.GetLastPath(h.ctx, All, true)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"S3", "searchFinished", "e3", "S-1", "searchStarted"},
		labels(it.Elements()))
	assert.Equal(t,
		[]owned{{"searchFinished", 3}, {"e3", 3}, {"searchStarted", -1}},
		drainOwned(t, it))
}

func TestQuery_ReversePathKeepsStateOwnership(t *testing.T) {
	tests := []struct {
		name    string
		events  []*types.Event
		forward []owned
		reverse []owned
	}{
		{
			name:    "one event per state",
			events:  []*types.Event{started(), thread(1), advanced(1, true, false), thread(2), advanced(2, true, true), finished()},
			forward: []owned{{"searchStarted", -1}, {"e1", 1}, {"e2", 2}, {"searchFinished", 2}},
			reverse: []owned{{"searchFinished", 2}, {"e2", 2}, {"e1", 1}, {"searchStarted", -1}},
		},
		{
			name:    "empty chain in the middle",
			events:  []*types.Event{started(), advanced(1, true, false), thread(2), advanced(2, true, true), finished()},
			forward: []owned{{"searchStarted", -1}, {"e2", 2}, {"searchFinished", 2}},
			reverse: []owned{{"searchFinished", 2}, {"e2", 2}, {"searchStarted", -1}},
		},
		{
			name:    "empty frontier chain",
			events:  []*types.Event{started(), thread(1), advanced(1, true, false), advanced(2, true, true)},
			forward: []owned{{"searchStarted", -1}, {"e1", 1}},
			reverse: []owned{{"e1", 1}, {"searchStarted", -1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.notify(tt.events...)

			fwd, err := h.query.GetLastPath(h.ctx, All, false)
			require.NoError(t, err)
			assert.Equal(t, tt.forward, drainOwned(t, fwd))

			rev, err := h.query.GetLastPath(h.ctx, All, true)
			require.NoError(t, err)
			assert.Equal(t, tt.reverse, drainOwned(t, rev))
		})
	}
}

func TestQuery_ReverseAllPaths(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	paths, err := h.query.GetAllPaths(h.ctx, ThreadIs(1, 2, 3), true)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	got := [][]owned{drainOwned(t, paths[0]), drainOwned(t, paths[1])}
	assert.ElementsMatch(t, [][]owned{
		{{"e2", 2}, {"e1", 1}},
		{{"e3", 3}},
	}, got)
}

func TestQuery_PredicateFiltersChains(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	it, err := h.query.GetEvents(h.ctx, ThreadIs(2, 3), graph.DepthFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, drain(it))

	it, err = h.query.GetEvents(h.ctx, And(GroupIs(types.GroupState), Not(TypeIs(types.EventSearchFinished))), graph.DepthFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"stateBacktracked", "stateBacktracked"}, drain(it))

	it, err = h.query.GetEvents(h.ctx, Or(TypeIs(types.EventSearchStarted), ThreadIs(1)), graph.BreadthFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"searchStarted", "e1"}, drain(it))
}

func TestQuery_PredicateErrorAbortsQuery(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	errBoom := errors.New("boom")
	failing := PredicateFunc(func(*types.Event) (bool, error) { return false, errBoom })

	_, err := h.query.GetLastPath(h.ctx, failing, false)
	require.ErrorIs(t, err, types.ErrPredicateFailed)
	require.ErrorIs(t, err, errBoom)

	_, err = h.query.GetEventsFromState(h.ctx, failing, h.state(1), true)
	require.ErrorIs(t, err, types.ErrPredicateFailed)
}

func TestQuery_RulePredicate(t *testing.T) {
	h := newHarness(t)
	recordBranches(h)

	filter, err := rules.ParseFilter([]byte(`{"any": [
		{"all": [{"field": "$group", "op": "eq", "value": "thread"},
		         {"field": "THREAD_ID", "op": "gte", "type": "numeric", "value": 2}]},
		{"all": [{"field": "$type", "op": "eq", "value": "searchFinished"}]}
	]}`))
	require.NoError(t, err)
	pred, err := NewRulePredicate(filter)
	require.NoError(t, err)

	it, err := h.query.GetEvents(h.ctx, pred, graph.DepthFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3", "searchFinished"}, drain(it))
}

func TestQuery_GroupScans(t *testing.T) {
	h := newHarness(t)
	h.notify(
		started(),
		threadEvent(types.EventThreadStarted, 1),
		threadEvent(types.EventMethodEntered, 2),
		types.NewEvent(types.EventGCBegin),
		threadEvent(types.EventThreadScheduled, 3),
		advanced(1, true, true),
		finished(),
	)

	chain, err := h.query.GetEventsFromState(h.ctx, All, h.state(1), false)
	require.NoError(t, err)
	require.Equal(t, []string{"e1", "e2", "gcBegin", "e3", "searchFinished"}, labels(chain))
	e1, e2, e3 := chain[0], chain[1], chain[3]

	tests := []struct {
		name  string
		scan  func() (*types.Event, error)
		want  string
		empty bool
	}{
		{"successor gc", func() (*types.Event, error) { return h.query.GetSuccessorEventOfGroupType(h.ctx, e1, types.GroupGC) }, "gcBegin", false},
		{"successor method", func() (*types.Event, error) { return h.query.GetSuccessorEventOfGroupType(h.ctx, e1, types.GroupMethod) }, "e2", false},
		{"successor skips from", func() (*types.Event, error) { return h.query.GetSuccessorEventOfGroupType(h.ctx, e2, types.GroupMethod) }, "", true},
		{"successor search", func() (*types.Event, error) { return h.query.GetSuccessorEventOfGroupType(h.ctx, e3, types.GroupSearch) }, "searchFinished", false},
		{"successor past chain end", func() (*types.Event, error) { return h.query.GetSuccessorEventOfGroupType(h.ctx, e3, types.GroupThread) }, "", true},
		{"predecessor thread", func() (*types.Event, error) { return h.query.GetPredecessorEventOfGroupType(h.ctx, e3, types.GroupThread) }, "e1", false},
		{"predecessor method", func() (*types.Event, error) { return h.query.GetPredecessorEventOfGroupType(h.ctx, e3, types.GroupMethod) }, "e2", false},
		{"predecessor stops at state", func() (*types.Event, error) { return h.query.GetPredecessorEventOfGroupType(h.ctx, e2, types.GroupGC) }, "", true},
		{"predecessor of first", func() (*types.Event, error) { return h.query.GetPredecessorEventOfGroupType(h.ctx, e1, types.GroupThread) }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scan()
			require.NoError(t, err)
			if tt.empty {
				assert.True(t, IsEmptyEvent(got))
				return
			}
			require.False(t, IsEmptyEvent(got))
			assert.Equal(t, tt.want, label(got))
		})
	}
}

func TestQuery_BackendsAgree(t *testing.T) {
	want := func() []string {
		h := newHarness(t)
		recordBranches(h)
		it, err := h.query.GetEvents(h.ctx, All, graph.BreadthFirst)
		require.NoError(t, err)
		return labels(it.Elements())
	}()

	for _, backend := range []string{graph.BackendPersistent, graph.BackendKV} {
		t.Run(backend, func(t *testing.T) {
			g, err := graph.Open(t.Context(), backend, graph.Options{Location: t.TempDir(), Logger: zap.NewNop()})
			require.NoError(t, err)
			h := newHarnessOn(t, g)
			t.Cleanup(func() { _ = h.session.Close() })

			recordBranches(h)
			it, err := h.query.GetEvents(h.ctx, All, graph.BreadthFirst)
			require.NoError(t, err)
			assert.Equal(t, want, labels(it.Elements()))
			assert.Equal(t, int64(3), h.lastStateID())
		})
	}
}

// traceModel mirrors the storer with plain slices: each state owns a chain
// of labels, revisits drop the pending chain and post-advance events land
// ahead of it in the frontier's chain.
type traceModel struct {
	chains   map[int32][]int32
	parent   map[int32]int32
	frontier int32
	pending  []int32
	visited  bool
}

func newTraceModel() *traceModel {
	return &traceModel{chains: map[int32][]int32{-1: nil}, parent: map[int32]int32{}, frontier: -1}
}

func (m *traceModel) splice(seq int32) {
	m.chains[m.frontier] = append(append(m.chains[m.frontier], seq), m.pending...)
	m.pending = nil
}

func (m *traceModel) lastPath() []int32 {
	var states []int32
	for s := m.frontier; ; {
		states = append([]int32{s}, states...)
		p, ok := m.parent[s]
		if !ok {
			break
		}
		s = p
	}
	var out []int32
	for _, s := range states {
		out = append(out, m.chains[s]...)
	}
	return out
}

const (
	opEvent = iota
	opAdvanceNew
	opAdvanceEnd
	opRevisit
	opProcessed
	opBacktrack
	opCount
)

func TestStorer_PropertySpliceOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("the last path lists chains in splice order", prop.ForAll(
		func(ops []int) bool {
			h := newHarnessOn(t, graph.NewMemory())
			h.session.Logger = zap.NewNop()
			h.storer = h.session.NewStorer()
			seqKey := h.session.Registry.MustIntern("SEQ", types.TypeInt)

			m := newTraceModel()
			nextSeq, nextState := int32(1), int32(1)
			tagged := func(kind types.EventType) (*types.Event, int32) {
				seq := nextSeq
				nextSeq++
				return types.NewEvent(kind).MustSet(seqKey, seq), seq
			}

			if err := h.storer.Notify(h.ctx, types.NewEvent(types.EventSearchStarted).MustSet(seqKey, int32(0))); err != nil {
				return false
			}
			m.chains[-1] = []int32{0}

			for _, op := range ops {
				var evt *types.Event
				switch op {
				case opEvent:
					var seq int32
					evt, seq = tagged(types.EventThreadScheduled)
					m.pending = append(m.pending, seq)
				case opAdvanceNew, opAdvanceEnd:
					id := nextState
					nextState++
					evt = advanced(id, op == opAdvanceNew, op == opAdvanceEnd)
					m.parent[id] = m.frontier
					m.chains[id] = m.pending
					m.pending = nil
					m.frontier = id
				case opRevisit:
					evt = advanced(nextState-1, false, false)
					m.visited = true
					m.pending = nil
				case opProcessed:
					var seq int32
					evt, seq = tagged(types.EventStateProcessed)
					m.splice(seq)
				case opBacktrack:
					var seq int32
					evt, seq = tagged(types.EventStateBacktracked)
					m.splice(seq)
					if m.visited {
						m.visited = false
					} else if p, ok := m.parent[m.frontier]; ok {
						m.frontier = p
					}
				}
				if err := h.storer.Notify(h.ctx, evt); err != nil {
					return false
				}
			}

			it, err := h.query.GetLastPath(h.ctx, All, false)
			if err != nil {
				return false
			}
			var got []int32
			for it.HasNext() {
				v, ok := it.Next().Get(seqKey)
				if !ok {
					return false
				}
				got = append(got, v.(int32))
			}
			want := m.lastPath()
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, opCount-1)),
	))

	properties.TestingRun(t)
}
