// Package graph defines the minimal graph primitive the trace is stored in
// and provides its backends.
//
// A Graph holds nodes addressed by NodeID handles, typed directed edges
// carrying an integer tag, and typed properties on nodes. Every graph has a
// root marker node that exists from construction and survives Clear.
//
// Backends: in-memory (memory.go), persistent-graph over SQL (sqlgraph.go),
// kv over badger (kvgraph.go) and remote over gRPC (remote.go). Open
// resolves a backend name to its constructor (factory.go).
//
// Writes accumulate in a backend transaction until Commit. Reads observe
// uncommitted writes of the same Graph value.
package graph

import (
	"context"

	"github.com/solatis/searchtrace/internal/types"
)

// NodeID is a backend handle. Valid handles are positive.
type NodeID int64

// EdgeType names a relationship between nodes.
type EdgeType string

const (
	// EdgeRootState links the root marker to the tree root state.
	EdgeRootState EdgeType = "root-state"

	// EdgeLastState links the root marker to the frontier of the live path.
	EdgeLastState EdgeType = "last-state"

	// EdgeEndState links the root marker to each terminal state.
	EdgeEndState EdgeType = "end-state"

	// EdgeTransition links a parent state to a child state.
	EdgeTransition EdgeType = "transition"

	// EdgeEvent links a state or event to the next event of its chain.
	EdgeEvent EdgeType = "event"

	// EdgeLastEvent links a state to the final event of its chain.
	EdgeLastEvent EdgeType = "last-event"
)

// EdgeTypes lists every edge type.
var EdgeTypes = []EdgeType{EdgeRootState, EdgeLastState, EdgeEndState, EdgeTransition, EdgeEvent, EdgeLastEvent}

// Direction selects which side of a node an edge is followed from.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// Order selects traversal order.
type Order int

const (
	DepthFirst Order = iota
	BreadthFirst
)

func (o Order) String() string {
	if o == BreadthFirst {
		return "breadth-first"
	}
	return "depth-first"
}

// Edge is a typed directed edge. Tag is caller-defined; the trace stores
// the group of the event an event edge leads to.
type Edge struct {
	From NodeID
	To   NodeID
	Type EdgeType
	Tag  int
}

// Other returns the endpoint of e opposite to n.
func (e Edge) Other(n NodeID) NodeID {
	if e.From == n {
		return e.To
	}
	return e.From
}

// Evaluation is an Evaluator's verdict on a visited node.
type Evaluation int

const (
	IncludeAndContinue Evaluation = iota
	ExcludeAndContinue
	IncludeAndPrune
	ExcludeAndPrune
	IncludeAndStop
	ExcludeAndStop
)

// Includes reports whether the visited node belongs in the result.
func (e Evaluation) Includes() bool {
	return e == IncludeAndContinue || e == IncludeAndPrune || e == IncludeAndStop
}

// Prunes reports whether the visited node's neighbours are skipped.
func (e Evaluation) Prunes() bool {
	return e == IncludeAndPrune || e == ExcludeAndPrune
}

// Stops reports whether the traversal ends after this node.
func (e Evaluation) Stops() bool {
	return e == IncludeAndStop || e == ExcludeAndStop
}

// Evaluator decides inclusion and continuation for each visited node.
// depth is the number of edges from the start node. An error aborts the
// traversal and is returned unchanged.
type Evaluator func(ctx context.Context, n NodeID, depth int) (Evaluation, error)

// TraversalSpec fixes the edge type, direction and order of a traversal.
type TraversalSpec struct {
	Edge      EdgeType
	Direction Direction
	Order     Order
}

// Graph is the storage primitive the trace storer writes and the query reads.
type Graph interface {
	// Root returns the root marker node.
	Root(ctx context.Context) (NodeID, error)

	// CreateNode allocates a node with no properties or edges.
	CreateNode(ctx context.Context) (NodeID, error)

	// CreateEdge adds a typed edge. Both endpoints must exist.
	CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType, tag int) error

	// DeleteEdge removes one edge matching (from, to, typ).
	DeleteEdge(ctx context.Context, from, to NodeID, typ EdgeType) error

	// SetProperty stores a value checked against the key's type tag.
	SetProperty(ctx context.Context, n NodeID, key types.PropertyKey, value any) error

	// Property returns a stored value; a missing property is (nil, false, nil).
	Property(ctx context.Context, n NodeID, key types.PropertyKey) (any, bool, error)

	// RemoveProperty deletes a property; absent properties are ignored.
	RemoveProperty(ctx context.Context, n NodeID, key types.PropertyKey) error

	// Properties returns every property on a node.
	Properties(ctx context.Context, n NodeID) (map[types.PropertyKey]any, error)

	// Edges lists edges of typ on the given side of n in insertion order.
	Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error)

	// Traverse visits nodes reachable from start and returns included nodes
	// in visit order.
	Traverse(ctx context.Context, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error)

	// Commit makes pending writes durable. The next write opens a new transaction.
	Commit(ctx context.Context) error

	// Clear removes every node except a fresh root marker.
	Clear(ctx context.Context) error

	// Close releases the backend. Pending writes are committed first.
	Close() error
}
