package trace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Trace storer: the write path.
 *
 * Events accumulate in a chain hanging off a provisional state node
 * (pendingState). When the search confirms the next state as new or end,
 * the provisional node receives the state's properties and is linked under
 * the frontier; a revisit leaves it and its chain unlinked, so no query
 * ever reaches them.
 *
 * Post-advance splicing: some notifications describe the state that was
 * just finalized but arrive after the next chain has started. The event is
 * appended to the frontier's chain. If the pending chain already holds
 * events, its first event is unlinked from pendingState and re-linked after
 * the spliced event, so the frontier's chain becomes
 *
 *   ... old tail -> post-advance event -> pending e1 -> ... -> pending tail
 *
 * and the frontier's last-event moves to the old pending tail. The pending
 * chain is empty afterwards.
 *
 * Failure model: any backend error aborts the run. Every later call fails
 * with ErrRunAborted until the next searchStarted wipes the graph.
 */

// Stats counts what a Storer wrote during the current run.
type Stats struct {
	Events          int // event nodes created, including discarded ones
	States          int // states promoted into the tree
	DiscardedChains int // provisional states dropped on revisit
	Commits         int
}

// Storer builds the trace graph from the notification stream.
// Not safe for concurrent use.
type Storer struct {
	session *Session
	g       graph.Graph
	keys    wellKnownKeys
	logger  *zap.Logger

	recording bool
	failure   error
	runID     types.RunID

	rootMarker   graph.NodeID
	treeRoot     graph.NodeID
	frontier     graph.NodeID
	pendingState graph.NodeID
	pendingTail  graph.NodeID
	tailGroup    types.Group
	visited      bool

	sinceCommit int
	stats       Stats
}

func newStorer(s *Session) *Storer {
	return &Storer{
		session: s,
		g:       s.Graph,
		keys:    lookupKeys(s.Registry),
		logger:  s.Logger,
	}
}

// Stats returns counters for the current run.
func (s *Storer) Stats() Stats { return s.stats }

// RunID returns the id assigned by the last searchStarted.
func (s *Storer) RunID() types.RunID { return s.runID }

// Recording reports whether a run is in progress.
func (s *Storer) Recording() bool { return s.recording }

// postAdvance lists the kinds spliced into the frontier's chain.
var postAdvance = map[types.EventType]bool{
	types.EventStateBacktracked:    true,
	types.EventStateRestored:       true,
	types.EventStateProcessed:      true,
	types.EventStateStored:         true,
	types.EventStatePurged:         true,
	types.EventPropertyViolated:    true,
	types.EventSearchConstraintHit: true,
	types.EventSearchFinished:      true,
}

// Notify records one notification, dispatching on its type.
func (s *Storer) Notify(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", types.ErrUnknownEventType)
	}
	if !evt.Type.Known() || evt.Type == types.EventState {
		return fmt.Errorf("%w: %q", types.ErrUnknownEventType, evt.Type)
	}

	if evt.Type == types.EventSearchStarted {
		return s.start(ctx, evt)
	}
	if s.failure != nil {
		return fmt.Errorf("%w: %w", types.ErrRunAborted, s.failure)
	}
	if !s.recording {
		return fmt.Errorf("%w: %s", types.ErrNotRecording, evt.Type)
	}

	var err error
	switch {
	case evt.Type == types.EventStateAdvanced:
		err = s.advance(ctx, evt)
	case evt.Type == types.EventStateBacktracked:
		err = s.backtrack(ctx, evt)
	case evt.Type == types.EventStateRestored:
		err = s.restore(ctx, evt)
	case evt.Type == types.EventSearchFinished:
		err = s.finish(ctx, evt)
	case postAdvance[evt.Type]:
		err = s.splice(ctx, evt)
	default:
		err = s.append(ctx, evt)
	}
	if err != nil && !errors.Is(err, types.ErrNoSuchStateID) {
		s.abort(err)
	}
	return err
}

func (s *Storer) abort(err error) {
	if s.failure != nil {
		return
	}
	s.failure = err
	s.recording = false
	s.logger.Error("trace run aborted", zap.String("run_id", string(s.runID)), zap.Error(err))
}

// start wipes the graph and creates the tree root, whose chain holds the
// searchStarted event itself.
func (s *Storer) start(ctx context.Context, evt *types.Event) error {
	s.failure = nil
	s.recording = false
	s.stats = Stats{}
	s.sinceCommit = 0
	s.visited = false
	s.runID = types.NewRunID()

	err := s.initialize(ctx, evt)
	if err != nil {
		s.abort(err)
		return err
	}
	s.recording = true
	s.logger.Info("trace run started", zap.String("run_id", string(s.runID)))
	return nil
}

func (s *Storer) initialize(ctx context.Context, evt *types.Event) error {
	if err := s.g.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear trace graph: %w", err)
	}
	root, err := s.g.Root(ctx)
	if err != nil {
		return err
	}
	s.rootMarker = root

	treeRoot, err := s.g.CreateNode(ctx)
	if err != nil {
		return err
	}
	rootState := types.NewEvent(types.EventState).
		MustSet(s.keys.stateID, int32(-1)).
		MustSet(s.keys.runID, string(s.runID))
	if err := writeEvent(ctx, s.g, s.keys, treeRoot, rootState); err != nil {
		return err
	}
	if err := s.g.CreateEdge(ctx, root, treeRoot, graph.EdgeRootState, int(types.GroupState)); err != nil {
		return err
	}
	s.treeRoot = treeRoot
	s.frontier = treeRoot
	if err := s.moveLastState(ctx); err != nil {
		return err
	}
	s.stats.States++

	// The root's chain is complete before the first transition.
	s.pendingState = treeRoot
	s.pendingTail = treeRoot
	if err := s.append(ctx, evt); err != nil {
		return err
	}
	if err := s.g.CreateEdge(ctx, treeRoot, s.pendingTail, graph.EdgeLastEvent, int(s.tailGroup)); err != nil {
		return err
	}
	return s.resetPending(ctx)
}

// append links evt after the pending chain tail.
func (s *Storer) append(ctx context.Context, evt *types.Event) error {
	n, err := s.createEvent(ctx, evt)
	if err != nil {
		return err
	}
	if err := s.g.CreateEdge(ctx, s.pendingTail, n, graph.EdgeEvent, int(evt.Group())); err != nil {
		return err
	}
	s.pendingTail = n
	s.tailGroup = evt.Group()
	return nil
}

// createEvent stores evt on a new node and commits every EventsPerCommit events.
func (s *Storer) createEvent(ctx context.Context, evt *types.Event) (graph.NodeID, error) {
	n, err := s.g.CreateNode(ctx)
	if err != nil {
		return 0, err
	}
	if err := writeEvent(ctx, s.g, s.keys, n, evt); err != nil {
		return 0, err
	}
	s.stats.Events++
	s.sinceCommit++
	if s.session.EventsPerCommit > 0 && s.sinceCommit >= s.session.EventsPerCommit {
		if err := s.commit(ctx); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *Storer) commit(ctx context.Context) error {
	if err := s.g.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrCommitFailed, err)
	}
	s.stats.Commits++
	s.logger.Debug("trace committed",
		zap.Int("events", s.sinceCommit),
		zap.Int("total_events", s.stats.Events))
	s.sinceCommit = 0
	return nil
}

// resetPending allocates a fresh provisional state with an empty chain.
func (s *Storer) resetPending(ctx context.Context) error {
	n, err := s.g.CreateNode(ctx)
	if err != nil {
		return err
	}
	s.pendingState = n
	s.pendingTail = n
	return nil
}

// moveLastState points the root marker's last-state edge at the frontier.
func (s *Storer) moveLastState(ctx context.Context) error {
	edges, err := s.g.Edges(ctx, s.rootMarker, graph.EdgeLastState, graph.Outgoing)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := s.g.DeleteEdge(ctx, e.From, e.To, e.Type); err != nil {
			return err
		}
	}
	return s.g.CreateEdge(ctx, s.rootMarker, s.frontier, graph.EdgeLastState, int(types.GroupState))
}

// advance promotes the provisional state for a new or end state and drops
// it for a revisit.
func (s *Storer) advance(ctx context.Context, evt *types.Event) error {
	isNew, _ := evt.Bool(types.PropIsNew)
	isEnd, _ := evt.Bool(types.PropIsEnd)

	if !isNew && !isEnd {
		s.visited = true
		s.stats.DiscardedChains++
		return s.resetPending(ctx)
	}

	state := evt.Clone()
	state.Type = types.EventState
	if err := writeEvent(ctx, s.g, s.keys, s.pendingState, state); err != nil {
		return err
	}
	if err := s.g.CreateEdge(ctx, s.frontier, s.pendingState, graph.EdgeTransition, int(types.GroupState)); err != nil {
		return err
	}
	if s.pendingTail != s.pendingState {
		if err := s.g.CreateEdge(ctx, s.pendingState, s.pendingTail, graph.EdgeLastEvent, int(s.tailGroup)); err != nil {
			return err
		}
	}
	if isEnd {
		if err := s.g.CreateEdge(ctx, s.rootMarker, s.pendingState, graph.EdgeEndState, int(types.GroupState)); err != nil {
			return err
		}
	}

	s.frontier = s.pendingState
	if err := s.moveLastState(ctx); err != nil {
		return err
	}
	s.stats.States++
	return s.resetPending(ctx)
}

// splice appends a post-advance event to the frontier's chain and moves any
// pending events after it.
func (s *Storer) splice(ctx context.Context, evt *types.Event) error {
	n, err := s.createEvent(ctx, evt)
	if err != nil {
		return err
	}

	last, hasLast, err := single(ctx, s.g, s.frontier, graph.EdgeLastEvent, graph.Outgoing)
	if err != nil {
		return err
	}
	tail := s.frontier
	if hasLast {
		tail = last.To
		if err := s.g.DeleteEdge(ctx, last.From, last.To, last.Type); err != nil {
			return err
		}
	}
	if err := s.g.CreateEdge(ctx, tail, n, graph.EdgeEvent, int(evt.Group())); err != nil {
		return err
	}

	newTail, newTailGroup := n, evt.Group()
	if s.pendingTail != s.pendingState {
		first, ok, err := single(ctx, s.g, s.pendingState, graph.EdgeEvent, graph.Outgoing)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("pending state %d has a tail but no chain", s.pendingState)
		}
		if err := s.g.DeleteEdge(ctx, first.From, first.To, first.Type); err != nil {
			return err
		}
		if err := s.g.CreateEdge(ctx, n, first.To, graph.EdgeEvent, first.Tag); err != nil {
			return err
		}
		newTail, newTailGroup = s.pendingTail, s.tailGroup
		s.pendingTail = s.pendingState
	}

	return s.g.CreateEdge(ctx, s.frontier, newTail, graph.EdgeLastEvent, int(newTailGroup))
}

// backtrack moves the frontier one transition toward the root, unless the
// state being left was a revisit that never entered the tree.
func (s *Storer) backtrack(ctx context.Context, evt *types.Event) error {
	if err := s.splice(ctx, evt); err != nil {
		return err
	}

	if s.visited {
		s.visited = false
		return nil
	}

	parent, ok, err := single(ctx, s.g, s.frontier, graph.EdgeTransition, graph.Incoming)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("backtrack past the tree root ignored", zap.String("run_id", string(s.runID)))
		return nil
	}
	s.frontier = parent.From
	return s.moveLastState(ctx)
}

// restore moves the frontier to the state carrying the event's STATE_ID.
func (s *Storer) restore(ctx context.Context, evt *types.Event) error {
	if err := s.splice(ctx, evt); err != nil {
		return err
	}
	s.visited = false

	id, ok := evt.StateID()
	if !ok {
		return fmt.Errorf("%w: %s carries no %s", types.ErrNoSuchStateID, evt.Type, types.PropStateID)
	}
	n, found, err := findStateByID(ctx, s.g, s.keys, s.treeRoot, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", types.ErrNoSuchStateID, id)
	}
	s.frontier = n
	return s.moveLastState(ctx)
}

// finish splices the searchFinished event and commits the run.
func (s *Storer) finish(ctx context.Context, evt *types.Event) error {
	if err := s.splice(ctx, evt); err != nil {
		return err
	}
	if err := s.commit(ctx); err != nil {
		return err
	}
	s.recording = false
	s.logger.Info("trace run finished",
		zap.String("run_id", string(s.runID)),
		zap.Int("events", s.stats.Events),
		zap.Int("states", s.stats.States),
		zap.Int("discarded_chains", s.stats.DiscardedChains),
		zap.Int("commits", s.stats.Commits))
	return nil
}
