package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/value"
)

func TestAddNodeDuplicateFails(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode("a1", "A", nil)
	require.NoError(t, err)

	_, err = g.AddNode("a1", "A", nil)
	require.Error(t, err)
	assert.True(t, lpgerr.Is(err, lpgerr.DuplicateNode))
}

func TestAddEdgeMissingNodeFails(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode("a1", "A", nil)
	require.NoError(t, err)

	_, err = g.AddEdge("a1", "ghost", "HAS", nil)
	require.Error(t, err)
	assert.True(t, lpgerr.Is(err, lpgerr.MissingNode))
}

// TestNodesByLabelOrder covers spec S1: insertion order is preserved per
// label, and each label's index holds only its own nodes.
func TestNodesByLabelOrder(t *testing.T) {
	g := graph.New()
	ids := []string{"a1", "a2", "a3"}
	for _, id := range ids {
		_, err := g.AddNode(id, "A", nil)
		require.NoError(t, err)
	}
	_, err := g.AddNode("b1", "B", nil)
	require.NoError(t, err)

	assert.Equal(t, ids, g.NodesByLabel("A"))
	assert.Equal(t, []string{"b1"}, g.NodesByLabel("B"))
	assert.Empty(t, g.NodesByLabel("C"))
}

// TestLabelIndexConsistency covers I2: the label secondary index reflects
// exactly the nodes carrying that label, each exactly once (P2).
func TestLabelIndexConsistency(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode("a1", "A", nil)
	require.NoError(t, err)

	ids := g.NodesByLabel("A")
	require.Len(t, ids, 1)
	assert.Equal(t, "a1", ids[0])
}

func TestSetPropertyPreservesInsertionOrder(t *testing.T) {
	g := graph.New()
	_, err := g.AddNode("a1", "A", nil)
	require.NoError(t, err)

	require.NoError(t, g.SetProperty("a1", "z", value.OfInt(1)))
	require.NoError(t, g.SetProperty("a1", "a", value.OfInt(2)))
	require.NoError(t, g.SetProperty("a1", "z", value.OfInt(3))) // overwrite keeps position

	n, err := g.GetNode("a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, n.Props.Keys())
	assert.Equal(t, int64(3), mustInt(t, n.Props.Get("z")))
}

func TestSetPropertyMissingNode(t *testing.T) {
	g := graph.New()
	err := g.SetProperty("ghost", "x", value.OfInt(1))
	require.Error(t, err)
	assert.True(t, lpgerr.Is(err, lpgerr.MissingNode))
}

// TestMultiEdgeCoexistence covers Q4: two edges with identical endpoints,
// label, and properties remain distinct and individually addressable.
func TestMultiEdgeCoexistence(t *testing.T) {
	g := graph.New()
	_, _ = g.AddNode("a", "A", nil)
	_, _ = g.AddNode("b", "B", nil)

	k1, err := g.AddEdge("a", "b", "LINK", nil)
	require.NoError(t, err)
	k2, err := g.AddEdge("a", "b", "LINK", nil)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Len(t, g.OutEdges("a"), 2)
	assert.Len(t, g.Successors("a"), 2)
}

func TestSuccessorsPredecessorsOrder(t *testing.T) {
	g := graph.New()
	_, _ = g.AddNode("a", "A", nil)
	_, _ = g.AddNode("b1", "B", nil)
	_, _ = g.AddNode("b2", "B", nil)

	_, err := g.AddEdge("a", "b2", "HAS", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("a", "b1", "HAS", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b2", "b1"}, g.Successors("a"))
	assert.Equal(t, []string{"a"}, g.Predecessors("b2"))
}

func TestStats(t *testing.T) {
	g := graph.New()
	_, _ = g.AddNode("a1", "A", nil)
	_, _ = g.AddNode("a2", "A", nil)
	_, _ = g.AddNode("b1", "B", nil)
	_, err := g.AddEdge("a1", "b1", "HAS", nil)
	require.NoError(t, err)

	s := g.Stats()
	assert.Equal(t, 3, s.TotalNodes)
	assert.Equal(t, 1, s.TotalEdges)
	assert.Equal(t, 2, s.NodesByLabel["A"])
	assert.Equal(t, 1, s.NodesByLabel["B"])
	assert.Equal(t, 1, s.EdgesByLabel["HAS"])
}

func mustInt(t *testing.T, v value.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	require.True(t, ok)
	return i
}
