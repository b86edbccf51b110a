package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

// wellKnownKeys caches the registry keys the storer and query address directly.
type wellKnownKeys struct {
	eventType types.PropertyKey
	priority  types.PropertyKey
	stateID   types.PropertyKey
	isNew     types.PropertyKey
	isEnd     types.PropertyKey
	runID     types.PropertyKey
}

func lookupKeys(reg *types.Registry) wellKnownKeys {
	get := func(name string) types.PropertyKey {
		key, ok := reg.ByName(name)
		if !ok {
			panic("registry is missing well-known property " + name)
		}
		return key
	}
	return wellKnownKeys{
		eventType: get(types.PropEventType),
		priority:  get(types.PropPriority),
		stateID:   get(types.PropStateID),
		isNew:     get(types.PropIsNew),
		isEnd:     get(types.PropIsEnd),
		runID:     get(types.PropRunID),
	}
}

// writeEvent stores evt's properties on n. The event type and priority are
// stored under EVENT_TYPE and PRIORITY.
func writeEvent(ctx context.Context, g graph.Graph, keys wellKnownKeys, n graph.NodeID, evt *types.Event) error {
	for _, key := range evt.Keys() {
		if key == keys.eventType || key == keys.priority {
			continue
		}
		v, _ := evt.Get(key)
		if err := g.SetProperty(ctx, n, key, v); err != nil {
			return fmt.Errorf("failed to store %s: %w", key.Name, err)
		}
	}
	if err := g.SetProperty(ctx, n, keys.eventType, string(evt.Type)); err != nil {
		return fmt.Errorf("failed to store event type: %w", err)
	}
	if p, ok := evt.Priority(); ok {
		if err := g.SetProperty(ctx, n, keys.priority, p); err != nil {
			return fmt.Errorf("failed to store priority: %w", err)
		}
	}
	return nil
}

// readEvent rebuilds the event stored on n. Keys read back from the backend
// are adopted into reg so remote and persisted traces resolve by name. A key
// that clashes with one reg already holds is kept on the event as stored.
func readEvent(ctx context.Context, g graph.Graph, reg *types.Registry, keys wellKnownKeys, n graph.NodeID) (*types.Event, error) {
	props, err := g.Properties(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read node %d: %w", n, err)
	}

	evt := types.NewEvent("")
	evt.ID = int64(n)
	for key, v := range props {
		switch key {
		case keys.eventType:
			s, _ := v.(string)
			evt.Type = types.EventType(s)
			continue
		case keys.priority:
			if p, ok := v.(int32); ok {
				evt.SetPriority(p)
			}
			continue
		}
		if err := reg.Adopt(key); err != nil && !errors.Is(err, types.ErrPropertyIDConflict) && !errors.Is(err, types.ErrPropertyTypeMismatch) {
			return nil, fmt.Errorf("node %d: %w", n, err)
		}
		if err := evt.Set(key, v); err != nil {
			return nil, fmt.Errorf("node %d: %w", n, err)
		}
	}
	return evt, nil
}

// stateIDOf reads the STATE_ID of a state node. Integral values of any
// width are accepted.
func stateIDOf(ctx context.Context, g graph.Graph, keys wellKnownKeys, n graph.NodeID) (int64, bool, error) {
	v, ok, err := g.Property(ctx, n, keys.stateID)
	if err != nil || !ok {
		return 0, false, err
	}
	switch id := v.(type) {
	case int8:
		return int64(id), true, nil
	case int16:
		return int64(id), true, nil
	case int32:
		return int64(id), true, nil
	case int64:
		return id, true, nil
	}
	return 0, false, nil
}

// findStateByID searches the transition tree below start depth-first and
// stops at the first state carrying id.
func findStateByID(ctx context.Context, g graph.Graph, keys wellKnownKeys, start graph.NodeID, id int64) (graph.NodeID, bool, error) {
	spec := graph.TraversalSpec{Edge: graph.EdgeTransition, Direction: graph.Outgoing, Order: graph.DepthFirst}
	found, err := g.Traverse(ctx, start, spec, func(ctx context.Context, n graph.NodeID, depth int) (graph.Evaluation, error) {
		sid, ok, err := stateIDOf(ctx, g, keys, n)
		if err != nil {
			return graph.ExcludeAndStop, err
		}
		if ok && sid == id {
			return graph.IncludeAndStop, nil
		}
		return graph.ExcludeAndContinue, nil
	})
	if err != nil {
		return 0, false, err
	}
	if len(found) == 0 {
		return 0, false, nil
	}
	return found[0], true, nil
}

// single returns the one edge of typ on the given side of n, if any.
func single(ctx context.Context, g graph.Graph, n graph.NodeID, typ graph.EdgeType, dir graph.Direction) (graph.Edge, bool, error) {
	edges, err := g.Edges(ctx, n, typ, dir)
	if err != nil {
		return graph.Edge{}, false, err
	}
	if len(edges) == 0 {
		return graph.Edge{}, false, nil
	}
	return edges[0], true, nil
}
