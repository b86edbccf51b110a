package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

type harness struct {
	t       *testing.T
	ctx     context.Context
	session *Session
	storer  *Storer
	query   *Query
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, graph.NewMemory())
}

func newHarnessOn(t *testing.T, g graph.Graph) *harness {
	t.Helper()
	s := NewSession(g, zaptest.NewLogger(t))
	return &harness{
		t:       t,
		ctx:     context.Background(),
		session: s,
		storer:  s.NewStorer(),
		query:   s.NewQuery(),
	}
}

func (h *harness) notify(events ...*types.Event) {
	h.t.Helper()
	for _, evt := range events {
		require.NoError(h.t, h.storer.Notify(h.ctx, evt), "notify %s", evt.Type)
	}
}

func (h *harness) lastPath() []string {
	h.t.Helper()
	it, err := h.query.GetLastPath(h.ctx, All, false)
	require.NoError(h.t, err)
	return labels(it.Elements())
}

func (h *harness) lastStateID() int64 {
	h.t.Helper()
	s, err := h.query.LastState(h.ctx)
	require.NoError(h.t, err)
	id, ok := s.StateID()
	require.True(h.t, ok)
	return id
}

func (h *harness) state(id int64) *types.Event {
	h.t.Helper()
	s, err := h.query.GetStateByID(h.ctx, id)
	require.NoError(h.t, err)
	return s
}

func started() *types.Event     { return types.NewEvent(types.EventSearchStarted) }
func finished() *types.Event    { return types.NewEvent(types.EventSearchFinished) }
func backtracked() *types.Event { return types.NewEvent(types.EventStateBacktracked) }
func processed() *types.Event   { return types.NewEvent(types.EventStateProcessed) }

func advanced(id int32, isNew, isEnd bool) *types.Event {
	return types.NewEvent(types.EventStateAdvanced).
		MustSet(wellKnown(types.PropStateID), id).
		MustSet(wellKnown(types.PropIsNew), isNew).
		MustSet(wellKnown(types.PropIsEnd), isEnd)
}

func restored(id int32) *types.Event {
	return types.NewEvent(types.EventStateRestored).MustSet(wellKnown(types.PropStateID), id)
}

func thread(tid int32) *types.Event { return threadEvent(types.EventThreadScheduled, tid) }

func TestStorer_LinearRun(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), thread(1), advanced(1, true, false), thread(2), advanced(2, true, true), finished())

	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S1", "e1", "S2", "e2", "searchFinished"},
		h.lastPath())

	stats := h.storer.Stats()
	assert.Equal(t, 4, stats.Events)
	assert.Equal(t, 3, stats.States)
	assert.Equal(t, 0, stats.DiscardedChains)
	assert.Equal(t, 1, stats.Commits)
	assert.False(t, h.storer.Recording())
	assert.NotEmpty(t, h.storer.RunID())

	root := h.state(-1)
	runID, ok := root.Text(types.PropRunID)
	require.True(t, ok)
	assert.Equal(t, string(h.storer.RunID()), runID)
}

func TestStorer_StateCarriesAdvanceProperties(t *testing.T) {
	h := newHarness(t)
	adv := advanced(1, true, true).MustSet(wellKnown(types.PropSearchDepth), int32(4))
	adv.SetPriority(7)
	h.notify(started(), adv, finished())

	s := h.state(1)
	assert.True(t, s.IsState())
	depth, ok := s.Int(types.PropSearchDepth)
	require.True(t, ok)
	assert.Equal(t, int64(4), depth)
	isEnd, _ := s.Bool(types.PropIsEnd)
	assert.True(t, isEnd)
	p, ok := s.Priority()
	require.True(t, ok)
	assert.Equal(t, int32(7), p)
}

func TestStorer_RevisitDiscardsChain(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), thread(1), advanced(1, true, false), thread(9), advanced(1, false, false), backtracked())

	// The backtrack leaves the revisit, so the frontier stays put.
	assert.Equal(t, int64(1), h.lastStateID())

	h.notify(thread(3), advanced(2, true, true), finished())
	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S1", "e1", "stateBacktracked", "S2", "e3", "searchFinished"},
		h.lastPath())

	it, err := h.query.GetEvents(h.ctx, All, graph.DepthFirst)
	require.NoError(t, err)
	assert.NotContains(t, drain(it), "e9")
	assert.Equal(t, 1, h.storer.Stats().DiscardedChains)
}

func TestStorer_BacktrackMovesToParent(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), advanced(1, true, false), advanced(2, true, false), backtracked())
	assert.Equal(t, int64(1), h.lastStateID())

	events, err := h.query.GetEventsFromState(h.ctx, All, h.state(2), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"stateBacktracked"}, labels(events))

	h.notify(backtracked())
	assert.Equal(t, int64(-1), h.lastStateID())
}

func TestStorer_BacktrackPastRootIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), backtracked(), backtracked())
	assert.Equal(t, int64(-1), h.lastStateID())
	assert.True(t, h.storer.Recording())
}

func TestStorer_PostAdvanceSplice(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), advanced(1, true, false), thread(1), processed(), advanced(2, true, true), finished())

	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S1", "stateProcessed", "e1", "S2", "searchFinished"},
		h.lastPath())

	reversed, err := h.query.GetEventsFromState(h.ctx, All, h.state(1), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "stateProcessed"}, labels(reversed))
}

func TestStorer_SpliceAfterExistingChain(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), thread(1), advanced(1, true, false), thread(2), thread(3), processed(), thread(4), advanced(2, true, true), finished())

	assert.Equal(t,
		[]string{"S-1", "searchStarted", "S1", "e1", "stateProcessed", "e2", "e3", "S2", "e4", "searchFinished"},
		h.lastPath())
}

func TestStorer_Restore(t *testing.T) {
	h := newHarness(t)
	h.notify(started(), advanced(1, true, false), advanced(2, true, true), restored(1))
	assert.Equal(t, int64(1), h.lastStateID())

	err := h.storer.Notify(h.ctx, restored(99))
	require.ErrorIs(t, err, types.ErrNoSuchStateID)
	assert.True(t, h.storer.Recording(), "an unknown state id does not abort the run")
	assert.Equal(t, int64(1), h.lastStateID())

	err = h.storer.Notify(h.ctx, types.NewEvent(types.EventStateRestored))
	require.ErrorIs(t, err, types.ErrNoSuchStateID)

	h.notify(thread(5), finished())
}

func TestStorer_CommitInterval(t *testing.T) {
	h := newHarness(t)
	h.session.EventsPerCommit = 2
	h.notify(started(), thread(1), thread(2), thread(3), finished())
	assert.Equal(t, 3, h.storer.Stats().Commits)
}

func TestStorer_NotRecording(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.storer.Notify(h.ctx, thread(1)), types.ErrNotRecording)

	h.notify(started(), finished())
	require.ErrorIs(t, h.storer.Notify(h.ctx, thread(1)), types.ErrNotRecording)

	// A new run starts over. searchFinished is spliced ahead of the
	// pending chain.
	h.notify(started(), thread(7), finished())
	assert.Equal(t, []string{"S-1", "searchStarted", "searchFinished", "e7"}, h.lastPath())
}

func TestStorer_RejectsUnknownTypes(t *testing.T) {
	h := newHarness(t)
	h.notify(started())

	assert.ErrorIs(t, h.storer.Notify(h.ctx, nil), types.ErrUnknownEventType)
	assert.ErrorIs(t, h.storer.Notify(h.ctx, types.NewEvent(types.EventState)), types.ErrUnknownEventType)
	assert.ErrorIs(t, h.storer.Notify(h.ctx, types.NewEvent("bogus")), types.ErrUnknownEventType)
	assert.True(t, h.storer.Recording())
}

var errDiskFull = errors.New("disk full")

type failingCommit struct {
	graph.Graph
}

func (failingCommit) Commit(context.Context) error { return errDiskFull }

func TestStorer_CommitFailureAbortsRun(t *testing.T) {
	h := newHarnessOn(t, failingCommit{Graph: graph.NewMemory()})
	h.session.EventsPerCommit = 3
	h.notify(started(), thread(1))

	err := h.storer.Notify(h.ctx, thread(2))
	require.ErrorIs(t, err, types.ErrCommitFailed)
	require.ErrorIs(t, err, errDiskFull)
	assert.False(t, h.storer.Recording())

	err = h.storer.Notify(h.ctx, thread(3))
	require.ErrorIs(t, err, types.ErrRunAborted)
	require.ErrorIs(t, err, types.ErrCommitFailed)

	// searchStarted clears the failure.
	h.session.EventsPerCommit = 0
	h.notify(started(), thread(4))
	assert.True(t, h.storer.Recording())
}

func TestStorer_ListenerMethodsSetKind(t *testing.T) {
	h := newHarness(t)
	var l Listener = h.storer

	require.NoError(t, l.SearchStarted(h.ctx, nil))
	require.NoError(t, l.GCBegin(h.ctx, nil))
	require.NoError(t, l.MethodEntered(h.ctx, threadEvent(types.EventGCEnd, 4)))
	require.NoError(t, l.StateAdvanced(h.ctx, advanced(1, true, true)))
	require.NoError(t, l.SearchFinished(h.ctx, nil))

	rootChain, err := h.query.GetEventsFromState(h.ctx, All, h.state(-1), false)
	require.NoError(t, err)
	require.Len(t, rootChain, 1)
	assert.Equal(t, types.EventSearchStarted, rootChain[0].Type)

	events, err := h.query.GetEventsFromState(h.ctx, All, h.state(1), false)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventGCBegin, events[0].Type)
	assert.Equal(t, types.EventMethodEntered, events[1].Type)
	assert.Equal(t, types.GroupMethod, events[1].Group())
	assert.Equal(t, types.EventSearchFinished, events[2].Type)
}
