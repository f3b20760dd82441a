package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

func makeNode(t *testing.T, label string) *entities.Node {
	t.Helper()

	lbl, err := valueobjects.NewLabel(label)
	require.NoError(t, err)
	node, err := entities.NewNode(valueobjects.NodeTypeJournalist, lbl, entities.NodeAttributes{})
	require.NoError(t, err)
	return node
}

func makeEdge(t *testing.T, source, target *entities.Node, attrs entities.EdgeAttributes) *entities.Edge {
	t.Helper()

	edge, err := entities.NewEdge(source.ID(), target.ID(), valueobjects.EdgeTypeRelatedTo, attrs)
	require.NoError(t, err)
	return edge
}

func weight(w float64) *float64 { return &w }

func TestBuildGraphSkipsInactiveAndOrphanedRecords(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")
	gone := makeNode(t, "gone")
	gone.Deactivate()

	outside := makeNode(t, "outside")

	live := makeEdge(t, a, b, entities.EdgeAttributes{})
	deadEdge := makeEdge(t, a, b, entities.EdgeAttributes{})
	deadEdge.Deactivate()
	orphan := makeEdge(t, a, outside, entities.EdgeAttributes{})

	g := BuildGraph(
		[]*entities.Node{a, b, gone, nil},
		[]*entities.Edge{live, deadEdge, orphan, nil},
	)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.True(t, g.HasNode(a.ID()))
	assert.False(t, g.HasNode(gone.ID()))

	_, ok := g.Edge(live.ID())
	assert.True(t, ok)
	_, ok = g.Edge(orphan.ID())
	assert.False(t, ok)

	require.NoError(t, g.Validate())
}

func TestAddEdgeRejectsUnknownEndpoints(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")

	g := NewGraph()
	require.NoError(t, g.AddNode(a))

	err := g.AddEdge(makeEdge(t, a, b, entities.EdgeAttributes{}))
	assert.Error(t, err)

	require.NoError(t, g.AddNode(b))
	require.NoError(t, g.AddEdge(makeEdge(t, a, b, entities.EdgeAttributes{})))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestNeighborsHonorsDirection(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")
	c := makeNode(t, "c")

	// a -> b directed, a <-> c bidirectional
	g := BuildGraph(
		[]*entities.Node{a, b, c},
		[]*entities.Edge{
			makeEdge(t, a, b, entities.EdgeAttributes{}),
			makeEdge(t, a, c, entities.EdgeAttributes{IsBidirectional: true}),
		},
	)

	outgoing := g.Neighbors(a.ID(), valueobjects.DirectionOutgoing, nil)
	assert.Len(t, outgoing, 2)

	// b only sees a when following incoming edges
	assert.Len(t, g.Neighbors(b.ID(), valueobjects.DirectionOutgoing, nil), 0)
	incoming := g.Neighbors(b.ID(), valueobjects.DirectionIncoming, nil)
	require.Len(t, incoming, 1)
	assert.Equal(t, a.ID(), incoming[0].Node.ID())

	// the bidirectional edge is traversable from c regardless of direction
	assert.Len(t, g.Neighbors(c.ID(), valueobjects.DirectionOutgoing, nil), 1)
	assert.Len(t, g.Neighbors(c.ID(), valueobjects.DirectionIncoming, nil), 1)
}

func TestNeighborsFiltersByEdgeType(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")

	lbl, err := valueobjects.NewLabel("piece")
	require.NoError(t, err)
	piece, err := entities.NewNode(valueobjects.NodeTypeContentPiece, lbl, entities.NodeAttributes{})
	require.NoError(t, err)

	related := makeEdge(t, a, b, entities.EdgeAttributes{})
	authored, err := entities.NewEdge(piece.ID(), a.ID(), valueobjects.EdgeTypeAuthoredBy, entities.EdgeAttributes{})
	require.NoError(t, err)

	g := BuildGraph([]*entities.Node{a, b, piece}, []*entities.Edge{related, authored})

	all := g.Neighbors(a.ID(), valueobjects.DirectionBoth, nil)
	assert.Len(t, all, 2)

	filtered := g.Neighbors(a.ID(), valueobjects.DirectionBoth, []valueobjects.EdgeType{valueobjects.EdgeTypeAuthoredBy})
	require.Len(t, filtered, 1)
	assert.Equal(t, piece.ID(), filtered[0].Node.ID())
	assert.Equal(t, valueobjects.EdgeTypeAuthoredBy, filtered[0].Edge.Type())
}

func TestWeightedDegree(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")
	c := makeNode(t, "c")

	g := BuildGraph(
		[]*entities.Node{a, b, c},
		[]*entities.Edge{
			makeEdge(t, a, b, entities.EdgeAttributes{Weight: weight(2.5)}),
			makeEdge(t, c, a, entities.EdgeAttributes{Weight: weight(1.5)}),
		},
	)

	// weight sums ignore direction
	assert.InDelta(t, 4.0, g.WeightedDegree(a.ID()), 1e-9)
	assert.InDelta(t, 2.5, g.WeightedDegree(b.ID()), 1e-9)
	assert.InDelta(t, 4.0, g.MaxWeightedDegree(), 1e-9)

	assert.Equal(t, 2, g.Degree(a.ID(), valueobjects.DirectionBoth))
	assert.Equal(t, 1, g.Degree(a.ID(), valueobjects.DirectionOutgoing))
	assert.Equal(t, 1, g.Degree(a.ID(), valueobjects.DirectionIncoming))
}

func TestConnectedComponentsAreDeterministic(t *testing.T) {
	a := makeNode(t, "a")
	b := makeNode(t, "b")
	c := makeNode(t, "c")
	lone := makeNode(t, "lone")

	g := BuildGraph(
		[]*entities.Node{a, b, c, lone},
		[]*entities.Edge{
			makeEdge(t, a, b, entities.EdgeAttributes{}),
			makeEdge(t, b, c, entities.EdgeAttributes{}),
		},
	)

	components := g.ConnectedComponents()
	require.Len(t, components, 2)

	var sizes []int
	for _, component := range components {
		sizes = append(sizes, len(component))
		for i := 1; i < len(component); i++ {
			assert.Less(t, component[i-1].String(), component[i].String())
		}
	}
	assert.ElementsMatch(t, []int{3, 1}, sizes)

	// repeated runs yield identical partitions
	assert.Equal(t, components, g.ConnectedComponents())
}
