package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

func newTraversalService(f *graphFixture) *TraversalService {
	return NewTraversalService(f.nodes, f.edges, config.DefaultDomainConfig(), zap.NewNop())
}

func TestTraverseChainBoundedByDepth(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	c := f.addNode(t, valueobjects.NodeTypeTopic, "c")
	d := f.addNode(t, valueobjects.NodeTypeTopic, "d")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})
	f.connect(t, b, c, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})
	f.connect(t, c, d, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	result, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionBoth,
		MaxDepth:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalNodesVisited)
	assert.Equal(t, 2, result.Depth)

	visited := make(map[string]bool)
	for _, node := range result.VisitedNodes {
		visited[node.ID().String()] = true
	}
	assert.True(t, visited[a.ID().String()])
	assert.True(t, visited[b.ID().String()])
	assert.True(t, visited[c.ID().String()])
	assert.False(t, visited[d.ID().String()])

	// Paths are index-aligned with VisitedNodes and walk back to the start.
	require.Len(t, result.Paths, 3)
	assert.Equal(t, []string{a.ID().String()}, result.Paths[0].NodeIDs)
	assert.Empty(t, result.Paths[0].EdgeIDs)
	for i, path := range result.Paths {
		assert.Equal(t, result.VisitedNodes[i].ID().String(), path.NodeIDs[len(path.NodeIDs)-1])
		assert.Equal(t, a.ID().String(), path.NodeIDs[0])
		assert.Equal(t, len(path.NodeIDs)-1, len(path.EdgeIDs))
		assert.Equal(t, len(path.EdgeIDs), path.Depth)
	}
}

func TestTraverseZeroDepthVisitsOnlyStart(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	result, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionBoth,
		MaxDepth:    0,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalNodesVisited)
	assert.Equal(t, 0, result.Depth)
}

func TestTraverseHonorsDirection(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	c := f.addNode(t, valueobjects.NodeTypeTopic, "c")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})
	f.connect(t, c, a, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	svc := newTraversalService(f)

	outgoing, err := svc.Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionOutgoing,
		MaxDepth:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 2, outgoing.TotalNodesVisited)
	assert.Equal(t, b.ID().String(), outgoing.VisitedNodes[1].ID().String())

	incoming, err := svc.Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionIncoming,
		MaxDepth:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 2, incoming.TotalNodesVisited)
	assert.Equal(t, c.ID().String(), incoming.VisitedNodes[1].ID().String())
}

func TestTraverseBidirectionalEdgeIgnoresDirection(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, b, a, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{IsBidirectional: true})

	result, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionOutgoing,
		MaxDepth:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalNodesVisited)
}

func TestTraverseFiltersTypesAndInactive(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	journalist := f.addNode(t, valueobjects.NodeTypeJournalist, "reporter")
	dormant := f.addNode(t, valueobjects.NodeTypeTopic, "dormant")
	f.connect(t, a, journalist, valueobjects.EdgeTypeMentions, entities.EdgeAttributes{})
	f.connect(t, a, dormant, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	dormant.Deactivate()
	require.NoError(t, f.nodes.Update(context.Background(), dormant))

	result, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionBoth,
		MaxDepth:    2,
		NodeTypes:   []valueobjects.NodeType{valueobjects.NodeTypeTopic, valueobjects.NodeTypeJournalist},
	})
	require.NoError(t, err)

	require.Equal(t, 2, result.TotalNodesVisited)
	assert.Equal(t, journalist.ID().String(), result.VisitedNodes[1].ID().String())

	// Edge type filter keeps only the mentions hop.
	filtered, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionBoth,
		MaxDepth:    1,
		EdgeTypes:   []valueobjects.EdgeType{valueobjects.EdgeTypeMentions},
	})
	require.NoError(t, err)
	require.Equal(t, 2, filtered.TotalNodesVisited)
	assert.Equal(t, journalist.ID().String(), filtered.VisitedNodes[1].ID().String())
}

func TestTraverseStopsAtLimit(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	for i := 0; i < 5; i++ {
		n := f.addNode(t, valueobjects.NodeTypeTopic, "fanout")
		f.connect(t, a, n, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})
	}

	result, err := newTraversalService(f).Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		Direction:   valueobjects.DirectionBoth,
		MaxDepth:    3,
		Limit:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalNodesVisited)
}

func TestTraverseRejectsBadInput(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	svc := newTraversalService(f)

	_, err := svc.Traverse(context.Background(), TraversalRequest{StartNodeID: "nope"})
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)

	_, err = svc.Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		MaxDepth:    -1,
	})
	require.Error(t, err)

	// An inactive start node reads as not found.
	a.Deactivate()
	require.NoError(t, f.nodes.Update(context.Background(), a))
	_, err = svc.Traverse(context.Background(), TraversalRequest{
		StartNodeID: a.ID().String(),
		MaxDepth:    1,
	})
	require.Error(t, err)
}
