package graph

import (
	"context"
	"fmt"

	"github.com/solatis/searchtrace/internal/types"
)

// BackendMemory is the registry name of the in-memory backend.
const BackendMemory = "in-memory"

type memNode struct {
	props map[types.PropertyKey]any
	out   map[EdgeType][]Edge
	in    map[EdgeType][]Edge
}

// Memory is an arena of nodes addressed by slice index with per-type edge
// lists on both endpoints. Commit only counts transactions.
// Not safe for concurrent use.
type Memory struct {
	nodes   []*memNode // index 0 unused, handles start at 1
	root    NodeID
	commits int
}

// NewMemory creates an empty in-memory graph holding only the root marker.
func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.nodes = []*memNode{nil}
	m.root = m.alloc()
}

func (m *Memory) alloc() NodeID {
	m.nodes = append(m.nodes, &memNode{
		props: make(map[types.PropertyKey]any),
		out:   make(map[EdgeType][]Edge),
		in:    make(map[EdgeType][]Edge),
	})
	return NodeID(len(m.nodes) - 1)
}

func (m *Memory) node(n NodeID) (*memNode, error) {
	if n <= 0 || int(n) >= len(m.nodes) {
		return nil, fmt.Errorf("%w: %d", types.ErrNodeNotFound, n)
	}
	return m.nodes[n], nil
}

func (m *Memory) Root(ctx context.Context) (NodeID, error) {
	return m.root, nil
}

func (m *Memory) CreateNode(ctx context.Context) (NodeID, error) {
	return m.alloc(), nil
}

func (m *Memory) CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType, tag int) error {
	src, err := m.node(from)
	if err != nil {
		return err
	}
	dst, err := m.node(to)
	if err != nil {
		return err
	}
	e := Edge{From: from, To: to, Type: typ, Tag: tag}
	src.out[typ] = append(src.out[typ], e)
	dst.in[typ] = append(dst.in[typ], e)
	return nil
}

func (m *Memory) DeleteEdge(ctx context.Context, from, to NodeID, typ EdgeType) error {
	src, err := m.node(from)
	if err != nil {
		return err
	}
	dst, err := m.node(to)
	if err != nil {
		return err
	}
	var ok bool
	if src.out[typ], ok = removeEdge(src.out[typ], from, to); !ok {
		return fmt.Errorf("%w: %d -%s-> %d", types.ErrEdgeNotFound, from, typ, to)
	}
	dst.in[typ], _ = removeEdge(dst.in[typ], from, to)
	return nil
}

func removeEdge(edges []Edge, from, to NodeID) ([]Edge, bool) {
	for i, e := range edges {
		if e.From == from && e.To == to {
			return append(edges[:i:i], edges[i+1:]...), true
		}
	}
	return edges, false
}

func (m *Memory) SetProperty(ctx context.Context, n NodeID, key types.PropertyKey, value any) error {
	nd, err := m.node(n)
	if err != nil {
		return err
	}
	if err := types.CheckValue(key.Type, value); err != nil {
		return fmt.Errorf("property %s: %w", key.Name, err)
	}
	nd.props[key] = value
	return nil
}

func (m *Memory) Property(ctx context.Context, n NodeID, key types.PropertyKey) (any, bool, error) {
	nd, err := m.node(n)
	if err != nil {
		return nil, false, err
	}
	v, ok := nd.props[key]
	return v, ok, nil
}

func (m *Memory) RemoveProperty(ctx context.Context, n NodeID, key types.PropertyKey) error {
	nd, err := m.node(n)
	if err != nil {
		return err
	}
	delete(nd.props, key)
	return nil
}

func (m *Memory) Properties(ctx context.Context, n NodeID) (map[types.PropertyKey]any, error) {
	nd, err := m.node(n)
	if err != nil {
		return nil, err
	}
	out := make(map[types.PropertyKey]any, len(nd.props))
	for k, v := range nd.props {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error) {
	nd, err := m.node(n)
	if err != nil {
		return nil, err
	}
	src := nd.out[typ]
	if dir == Incoming {
		src = nd.in[typ]
	}
	return append([]Edge(nil), src...), nil
}

func (m *Memory) Traverse(ctx context.Context, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error) {
	if _, err := m.node(start); err != nil {
		return nil, err
	}
	return Walk(ctx, m, start, spec, eval)
}

func (m *Memory) Commit(ctx context.Context) error {
	m.commits++
	return nil
}

// Commits returns how many times Commit was called.
func (m *Memory) Commits() int { return m.commits }

// NodeCount returns the number of allocated nodes including the root marker.
func (m *Memory) NodeCount() int { return len(m.nodes) - 1 }

func (m *Memory) Clear(ctx context.Context) error {
	m.reset()
	return nil
}

func (m *Memory) Close() error { return nil }
