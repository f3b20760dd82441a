package entities

import (
	"testing"

	"atlas-graph/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEdge(t *testing.T) (*Edge, valueobjects.NodeID, valueobjects.NodeID) {
	t.Helper()
	source := valueobjects.NewNodeID()
	target := valueobjects.NewNodeID()
	edge, err := NewEdge(source, target, valueobjects.EdgeTypeRelatedTo, EdgeAttributes{})
	require.NoError(t, err)
	return edge, source, target
}

func TestNewEdge_Defaults(t *testing.T) {
	edge, source, target := newTestEdge(t)

	assert.False(t, edge.ID().IsZero())
	assert.True(t, edge.IsActive())
	assert.Equal(t, 1, edge.Version())
	assert.InDelta(t, 1.0, edge.Weight().Value(), 1e-9)
	assert.True(t, edge.Touches(source))
	assert.True(t, edge.Touches(target))
	assert.True(t, edge.OtherEnd(source).Equals(target))
}

func TestNewEdge_RejectsSelfLoop(t *testing.T) {
	id := valueobjects.NewNodeID()
	_, err := NewEdge(id, id, valueobjects.EdgeTypeRelatedTo, EdgeAttributes{})
	require.Error(t, err)
}

func TestNewEdge_RejectsNonPositiveWeight(t *testing.T) {
	source := valueobjects.NewNodeID()
	target := valueobjects.NewNodeID()

	_, err := NewEdge(source, target, valueobjects.EdgeTypeTriggers, EdgeAttributes{
		Weight: floatPtr(0),
	})
	require.Error(t, err)

	_, err = NewEdge(source, target, valueobjects.EdgeTypeTriggers, EdgeAttributes{
		Weight: floatPtr(-1),
	})
	require.Error(t, err)
}

func TestEdgeUpdate_BumpsVersionOnlyOnChange(t *testing.T) {
	edge, _, _ := newTestEdge(t)
	require.Equal(t, 1, edge.Version())

	require.NoError(t, edge.Update(EdgeUpdate{Weight: floatPtr(2.5)}))
	assert.Equal(t, 2, edge.Version())
	assert.InDelta(t, 2.5, edge.Weight().Value(), 1e-9)

	require.NoError(t, edge.Update(EdgeUpdate{Weight: floatPtr(2.5)}))
	assert.Equal(t, 2, edge.Version())
}

func TestEdgeRedirectEndpoint(t *testing.T) {
	edge, source, target := newTestEdge(t)
	survivor := valueobjects.NewNodeID()

	require.NoError(t, edge.RedirectEndpoint(source, survivor))
	assert.True(t, edge.SourceID().Equals(survivor))
	assert.True(t, edge.TargetID().Equals(target))

	// Redirecting an endpoint the edge no longer touches fails.
	err := edge.RedirectEndpoint(source, valueobjects.NewNodeID())
	require.Error(t, err)
}

func TestEdgeDuplicateKey(t *testing.T) {
	source := valueobjects.NewNodeID()
	target := valueobjects.NewNodeID()

	a, err := NewEdge(source, target, valueobjects.EdgeTypeMentions, EdgeAttributes{})
	require.NoError(t, err)
	b, err := NewEdge(source, target, valueobjects.EdgeTypeMentions, EdgeAttributes{})
	require.NoError(t, err)
	c, err := NewEdge(source, target, valueobjects.EdgeTypeRelatedTo, EdgeAttributes{})
	require.NoError(t, err)

	assert.Equal(t, a.DuplicateKey(), b.DuplicateKey())
	assert.NotEqual(t, a.DuplicateKey(), c.DuplicateKey())
}

func TestEdgeDeactivateIdempotent(t *testing.T) {
	edge, _, _ := newTestEdge(t)

	assert.True(t, edge.Deactivate())
	assert.False(t, edge.Deactivate())
	assert.False(t, edge.IsActive())

	assert.True(t, edge.Reactivate())
	assert.True(t, edge.IsActive())
}
