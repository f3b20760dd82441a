package snapshots

import (
	"testing"

	"atlas-graph/domain/core/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifferCompare(t *testing.T) {
	differ := NewDiffer()

	baseNodes := []entities.CapturedNode{
		{ID: "n1", Label: "elections", Tags: []string{"politics"}},
		{ID: "n2", Label: "removed soon"},
	}
	baseEdges := []entities.CapturedEdge{
		{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2", Weight: 1},
	}

	currentNodes := []entities.CapturedNode{
		{ID: "n1", Label: "elections 2026", Tags: []string{"politics"}},
		{ID: "n3", Label: "brand new"},
	}
	currentEdges := []entities.CapturedEdge{
		{ID: "e2", SourceNodeID: "n1", TargetNodeID: "n3", Weight: 2},
	}

	diff := differ.Compare(baseNodes, baseEdges, currentNodes, currentEdges)
	require.NotNil(t, diff)

	assert.Equal(t, []string{"n3"}, diff.AddedNodes)
	assert.Equal(t, []string{"n2"}, diff.RemovedNodes)
	assert.Equal(t, []string{"e2"}, diff.AddedEdges)
	assert.Equal(t, []string{"e1"}, diff.RemovedEdges)

	require.Len(t, diff.ModifiedNodes, 1)
	assert.Equal(t, "n1", diff.ModifiedNodes[0].NodeID)
	require.Len(t, diff.ModifiedNodes[0].Fields, 1)
	assert.Equal(t, "label", diff.ModifiedNodes[0].Fields[0].Field)
	assert.Equal(t, "elections", diff.ModifiedNodes[0].Fields[0].Before)
	assert.Equal(t, "elections 2026", diff.ModifiedNodes[0].Fields[0].After)
}

func TestDifferIgnoresBookkeepingFields(t *testing.T) {
	differ := NewDiffer()

	base := []entities.CapturedNode{{ID: "n1", Label: "stable", Version: 1}}
	current := []entities.CapturedNode{{ID: "n1", Label: "stable", Version: 7}}

	diff := differ.Compare(base, nil, current, nil)
	assert.True(t, diff.IsEmpty())
}

func TestDifferChecksumDeterministic(t *testing.T) {
	nodes := []entities.CapturedNode{{ID: "n1", Label: "a"}, {ID: "n2", Label: "b"}}
	edges := []entities.CapturedEdge{{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2"}}

	first, err := Checksum(nodes, edges)
	require.NoError(t, err)
	second, err := Checksum(nodes, edges)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	changed, err := Checksum(nodes[:1], edges)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
