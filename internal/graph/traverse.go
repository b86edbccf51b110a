package graph

import "context"

// EdgeLister is the part of Graph a traversal needs.
type EdgeLister interface {
	Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error)
}

type frame struct {
	node  NodeID
	depth int
}

// Walk is the ordered traversal shared by every backend.
//
// Depth-first visits in pre-order with neighbours in edge insertion order;
// breadth-first visits level by level. Each node is visited at most once,
// so a traversal terminates on any finite graph. The start node is visited
// at depth 0 and subject to eval like any other node.
func Walk(ctx context.Context, g EdgeLister, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error) {
	var included []NodeID
	visited := map[NodeID]bool{start: true}
	pending := []frame{{node: start}}

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var cur frame
		if spec.Order == BreadthFirst {
			cur, pending = pending[0], pending[1:]
		} else {
			cur, pending = pending[len(pending)-1], pending[:len(pending)-1]
		}

		verdict, err := eval(ctx, cur.node, cur.depth)
		if err != nil {
			return nil, err
		}
		if verdict.Includes() {
			included = append(included, cur.node)
		}
		if verdict.Stops() {
			break
		}
		if verdict.Prunes() {
			continue
		}

		edges, err := g.Edges(ctx, cur.node, spec.Edge, spec.Direction)
		if err != nil {
			return nil, err
		}
		next := make([]frame, 0, len(edges))
		for _, e := range edges {
			n := e.Other(cur.node)
			if visited[n] {
				continue
			}
			visited[n] = true
			next = append(next, frame{node: n, depth: cur.depth + 1})
		}
		if spec.Order == BreadthFirst {
			pending = append(pending, next...)
		} else {
			// Stack: push in reverse so the first edge is visited first.
			for i := len(next) - 1; i >= 0; i-- {
				pending = append(pending, next[i])
			}
		}
	}

	return included, nil
}

// IncludeAll is an Evaluator that includes every node and never stops.
func IncludeAll(context.Context, NodeID, int) (Evaluation, error) {
	return IncludeAndContinue, nil
}
