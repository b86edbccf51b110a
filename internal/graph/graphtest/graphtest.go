// Package graphtest provides a conformance suite for graph backends.
package graphtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

// Run exercises the graph.Graph contract against a backend. open must
// return a fresh, empty graph for every call.
func Run(t *testing.T, open func(t *testing.T) graph.Graph) {
	reg := types.NewRegistry()
	stateID, _ := reg.ByName(types.PropStateID)
	thread, _ := reg.ByName(types.PropThreadName)
	arr := reg.MustIntern("LOCALS", types.TypeLong.ArrayOf())
	ch := reg.MustIntern("SYMBOL", types.TypeChar)

	t.Run("root exists", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		root, err := g.Root(ctx)
		require.NoError(t, err)
		assert.Greater(t, int64(root), int64(0))

		n, err := g.CreateNode(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, root, n)
	})

	t.Run("properties", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		n, err := g.CreateNode(ctx)
		require.NoError(t, err)

		_, ok, err := g.Property(ctx, n, stateID)
		require.NoError(t, err)
		assert.False(t, ok, "missing property reports absent, not error")

		require.NoError(t, g.SetProperty(ctx, n, stateID, int32(7)))
		require.NoError(t, g.SetProperty(ctx, n, thread, "main"))
		require.NoError(t, g.SetProperty(ctx, n, arr, []int64{1, 1<<40 + 3}))
		require.NoError(t, g.SetProperty(ctx, n, ch, 'λ'))

		v, ok, err := g.Property(ctx, n, stateID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int32(7), v)

		v, ok, err = g.Property(ctx, n, arr)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []int64{1, 1<<40 + 3}, v)

		require.NoError(t, g.SetProperty(ctx, n, stateID, int32(8)))
		props, err := g.Properties(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, map[types.PropertyKey]any{
			stateID: int32(8),
			thread:  "main",
			arr:     []int64{1, 1<<40 + 3},
			ch:      'λ',
		}, props)

		require.NoError(t, g.RemoveProperty(ctx, n, thread))
		require.NoError(t, g.RemoveProperty(ctx, n, thread), "removing an absent property is a no-op")
		_, ok, err = g.Property(ctx, n, thread)
		require.NoError(t, err)
		assert.False(t, ok)

		err = g.SetProperty(ctx, n, stateID, "seven")
		assert.ErrorIs(t, err, types.ErrInvalidValue)
	})

	t.Run("edges keep insertion order", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		a, _ := g.CreateNode(ctx)
		b, _ := g.CreateNode(ctx)
		c, _ := g.CreateNode(ctx)
		d, _ := g.CreateNode(ctx)

		require.NoError(t, g.CreateEdge(ctx, a, c, graph.EdgeTransition, 0))
		require.NoError(t, g.CreateEdge(ctx, a, b, graph.EdgeTransition, 0))
		require.NoError(t, g.CreateEdge(ctx, a, d, graph.EdgeEvent, int(types.GroupThread)))

		out, err := g.Edges(ctx, a, graph.EdgeTransition, graph.Outgoing)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, c, out[0].To)
		assert.Equal(t, b, out[1].To)

		ev, err := g.Edges(ctx, a, graph.EdgeEvent, graph.Outgoing)
		require.NoError(t, err)
		require.Len(t, ev, 1)
		assert.Equal(t, int(types.GroupThread), ev[0].Tag)

		in, err := g.Edges(ctx, d, graph.EdgeEvent, graph.Incoming)
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, graph.Edge{From: a, To: d, Type: graph.EdgeEvent, Tag: int(types.GroupThread)}, in[0])

		require.NoError(t, g.DeleteEdge(ctx, a, c, graph.EdgeTransition))
		out, err = g.Edges(ctx, a, graph.EdgeTransition, graph.Outgoing)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, b, out[0].To)

		in, err = g.Edges(ctx, c, graph.EdgeTransition, graph.Incoming)
		require.NoError(t, err)
		assert.Empty(t, in)

		err = g.DeleteEdge(ctx, a, c, graph.EdgeTransition)
		assert.ErrorIs(t, err, types.ErrEdgeNotFound)

		err = g.CreateEdge(ctx, a, graph.NodeID(1<<40), graph.EdgeEvent, 0)
		assert.ErrorIs(t, err, types.ErrNodeNotFound)
	})

	t.Run("traverse orders", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		//       r
		//      / \
		//     a   b
		//    / \
		//   c   d
		r, _ := g.CreateNode(ctx)
		a, _ := g.CreateNode(ctx)
		b, _ := g.CreateNode(ctx)
		c, _ := g.CreateNode(ctx)
		d, _ := g.CreateNode(ctx)
		for _, e := range [][2]graph.NodeID{{r, a}, {r, b}, {a, c}, {a, d}} {
			require.NoError(t, g.CreateEdge(ctx, e[0], e[1], graph.EdgeTransition, 0))
		}

		dfs, err := g.Traverse(ctx, r, graph.TraversalSpec{Edge: graph.EdgeTransition}, graph.IncludeAll)
		require.NoError(t, err)
		assert.Equal(t, []graph.NodeID{r, a, c, d, b}, dfs)

		bfs, err := g.Traverse(ctx, r, graph.TraversalSpec{Edge: graph.EdgeTransition, Order: graph.BreadthFirst}, graph.IncludeAll)
		require.NoError(t, err)
		assert.Equal(t, []graph.NodeID{r, a, b, c, d}, bfs)

		up, err := g.Traverse(ctx, d, graph.TraversalSpec{Edge: graph.EdgeTransition, Direction: graph.Incoming}, graph.IncludeAll)
		require.NoError(t, err)
		assert.Equal(t, []graph.NodeID{d, a, r}, up)

		stopAt := func(target graph.NodeID) graph.Evaluator {
			return func(ctx context.Context, n graph.NodeID, depth int) (graph.Evaluation, error) {
				if n == target {
					return graph.IncludeAndStop, nil
				}
				return graph.ExcludeAndContinue, nil
			}
		}
		found, err := g.Traverse(ctx, r, graph.TraversalSpec{Edge: graph.EdgeTransition}, stopAt(d))
		require.NoError(t, err)
		assert.Equal(t, []graph.NodeID{d}, found)

		pruneA := func(ctx context.Context, n graph.NodeID, depth int) (graph.Evaluation, error) {
			if n == a {
				return graph.IncludeAndPrune, nil
			}
			return graph.IncludeAndContinue, nil
		}
		pruned, err := g.Traverse(ctx, r, graph.TraversalSpec{Edge: graph.EdgeTransition}, pruneA)
		require.NoError(t, err)
		assert.Equal(t, []graph.NodeID{r, a, b}, pruned)
	})

	t.Run("commit and read back", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		n, _ := g.CreateNode(ctx)
		require.NoError(t, g.SetProperty(ctx, n, stateID, int32(1)))
		require.NoError(t, g.Commit(ctx))
		require.NoError(t, g.Commit(ctx), "commit with nothing pending")

		m, err := g.CreateNode(ctx)
		require.NoError(t, err)
		require.NoError(t, g.CreateEdge(ctx, n, m, graph.EdgeEvent, 0))
		require.NoError(t, g.Commit(ctx))

		v, ok, err := g.Property(ctx, n, stateID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int32(1), v)
		out, err := g.Edges(ctx, n, graph.EdgeEvent, graph.Outgoing)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("clear recreates root", func(t *testing.T) {
		g := open(t)
		defer g.Close()
		ctx := context.Background()

		root, _ := g.Root(ctx)
		n, _ := g.CreateNode(ctx)
		require.NoError(t, g.CreateEdge(ctx, root, n, graph.EdgeRootState, 0))
		require.NoError(t, g.Clear(ctx))

		newRoot, err := g.Root(ctx)
		require.NoError(t, err)
		out, err := g.Edges(ctx, newRoot, graph.EdgeRootState, graph.Outgoing)
		require.NoError(t, err)
		assert.Empty(t, out)
	})
}
