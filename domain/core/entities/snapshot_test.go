package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_Validation(t *testing.T) {
	_, err := NewSnapshot("", "", SnapshotFull, false)
	require.Error(t, err)

	_, err = NewSnapshot("nightly", "", SnapshotType("bogus"), false)
	require.Error(t, err)

	snapshot, err := NewSnapshot("nightly", "scheduled capture", SnapshotFull, true)
	require.NoError(t, err)
	assert.Equal(t, SnapshotPending, snapshot.Status())
	assert.True(t, snapshot.ComputeDiff())
	assert.Nil(t, snapshot.CompletedAt())
}

func TestSnapshotLifecycle(t *testing.T) {
	snapshot, err := NewSnapshot("capture", "", SnapshotFull, false)
	require.NoError(t, err)

	// Completing before computing is a conflict.
	require.Error(t, snapshot.Complete(nil, nil, nil, "sum"))

	require.NoError(t, snapshot.StartComputing())
	assert.Equal(t, SnapshotComputing, snapshot.Status())

	// A second capture of the same snapshot cannot start.
	require.Error(t, snapshot.StartComputing())

	nodes := []CapturedNode{{ID: "n1", NodeType: "topic", Label: "elections"}}
	require.NoError(t, snapshot.Complete(nodes, nil, nil, "sum"))
	assert.Equal(t, SnapshotComplete, snapshot.Status())
	assert.Equal(t, 1, snapshot.NodeCount())
	assert.NotNil(t, snapshot.CompletedAt())
	assert.True(t, snapshot.Status().IsTerminal())
}

func TestSnapshotFailure(t *testing.T) {
	snapshot, err := NewSnapshot("capture", "", SnapshotIncremental, false)
	require.NoError(t, err)

	require.NoError(t, snapshot.StartComputing())
	require.NoError(t, snapshot.Fail("store unavailable"))

	assert.Equal(t, SnapshotFailed, snapshot.Status())
	assert.Equal(t, "store unavailable", snapshot.ErrorMessage())
	assert.True(t, snapshot.Status().IsTerminal())
}

func TestSnapshotResetForRegeneration(t *testing.T) {
	snapshot, err := NewSnapshot("capture", "", SnapshotFull, false)
	require.NoError(t, err)

	// Pending snapshots cannot be regenerated.
	require.Error(t, snapshot.ResetForRegeneration())

	require.NoError(t, snapshot.StartComputing())
	require.NoError(t, snapshot.Fail("transient"))

	require.NoError(t, snapshot.ResetForRegeneration())
	assert.Equal(t, SnapshotPending, snapshot.Status())
	assert.Empty(t, snapshot.ErrorMessage())
}

func TestSnapshotDiffIsEmpty(t *testing.T) {
	empty := &SnapshotDiff{}
	assert.True(t, empty.IsEmpty())

	withChange := &SnapshotDiff{AddedNodes: []string{"n1"}}
	assert.False(t, withChange.IsEmpty())
}
