package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

func newPathFinder(f *graphFixture, reasoning ports.ReasoningProvider) *PathFinderService {
	return NewPathFinderService(
		NewGraphLoader(f.nodes, f.edges),
		f.nodes,
		reasoning,
		config.DefaultDomainConfig(),
		zap.NewNop(),
	)
}

func weightPtr(w float64) *float64 { return &w }

func TestFindPathPrefersLowerTotalWeight(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	c := f.addNode(t, valueobjects.NodeTypeTopic, "c")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{Weight: weightPtr(1)})
	f.connect(t, b, c, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{Weight: weightPtr(1)})
	direct := f.connect(t, a, c, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{Weight: weightPtr(3)})

	path, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   c.ID().String(),
	})
	require.NoError(t, err)
	require.NotNil(t, path)

	assert.Equal(t, 2, path.Length())
	assert.InDelta(t, 2.0, path.TotalWeight, 1e-9)
	require.Len(t, path.Nodes, 3)
	assert.Equal(t, a.ID().String(), path.Nodes[0].ID().String())
	assert.Equal(t, b.ID().String(), path.Nodes[1].ID().String())
	assert.Equal(t, c.ID().String(), path.Nodes[2].ID().String())

	// A hop bound of one forces the heavier direct edge.
	bounded, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   c.ID().String(),
		MaxDepth:    1,
	})
	require.NoError(t, err)
	require.NotNil(t, bounded)
	assert.Equal(t, 1, bounded.Length())
	assert.Equal(t, direct.ID().String(), bounded.Edges[0].ID().String())
	assert.InDelta(t, 3.0, bounded.TotalWeight, 1e-9)
}

func TestFindPathSameStartAndEnd(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")

	path, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   a.ID().String(),
	})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 0, path.Length())
	require.Len(t, path.Nodes, 1)
}

func TestFindPathNoRoute(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")

	path, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	})
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestFindPathRespectsDirection(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, b, a, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	path, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
		Direction:   valueobjects.DirectionOutgoing,
	})
	require.NoError(t, err)
	assert.Nil(t, path)

	path, err = newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
		Direction:   valueobjects.DirectionIncoming,
	})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, 1, path.Length())
}

func TestFindPathMissingEndpoint(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")

	_, err := newPathFinder(f, nil).FindPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   valueobjects.NewNodeID().String(),
	})
	require.Error(t, err)
}

func TestExplainPathNarrates(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	reasoning := &fakeReasoning{
		available: true,
		explanation: &ports.PathExplanation{
			Explanation: "a relates to b",
			Reasoning:   []string{"single hop"},
			Confidence:  0.8,
		},
	}

	explained, err := newPathFinder(f, reasoning).ExplainPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	}, true)
	require.NoError(t, err)

	require.NotNil(t, explained.Path)
	assert.False(t, explained.Degraded)
	assert.Equal(t, "a relates to b", explained.Explanation)
	assert.Equal(t, []string{"single hop"}, explained.Reasoning)
	require.NotNil(t, explained.Confidence)
	assert.InDelta(t, 0.8, *explained.Confidence, 1e-9)
	assert.Equal(t, 1, reasoning.calls)
}

func TestExplainPathDegradesWithoutProvider(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	explained, err := newPathFinder(f, nil).ExplainPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	}, true)
	require.NoError(t, err)
	require.NotNil(t, explained.Path)
	assert.True(t, explained.Degraded)
	assert.Empty(t, explained.Explanation)
}

func TestExplainPathDegradesOnProviderFailure(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	reasoning := &fakeReasoning{available: true, err: errors.New("model overloaded")}

	explained, err := newPathFinder(f, reasoning).ExplainPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	}, true)
	require.NoError(t, err)
	require.NotNil(t, explained.Path)
	assert.True(t, explained.Degraded)

	// An unavailable provider is never called.
	reasoning = &fakeReasoning{available: false}
	explained, err = newPathFinder(f, reasoning).ExplainPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	}, true)
	require.NoError(t, err)
	assert.True(t, explained.Degraded)
	assert.Equal(t, 0, reasoning.calls)
}

func TestExplainPathWithoutReasoningFlag(t *testing.T) {
	f := newGraphFixture()
	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	reasoning := &fakeReasoning{available: true}
	explained, err := newPathFinder(f, reasoning).ExplainPath(context.Background(), PathRequest{
		StartNodeID: a.ID().String(),
		EndNodeID:   b.ID().String(),
	}, false)
	require.NoError(t, err)
	require.NotNil(t, explained.Path)
	assert.False(t, explained.Degraded)
	assert.Equal(t, 0, reasoning.calls)
}
