package valueobjects

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeType(t *testing.T) {
	for _, nodeType := range AllNodeTypes() {
		parsed, err := ParseNodeType(string(nodeType))
		require.NoError(t, err)
		assert.Equal(t, nodeType, parsed)
	}

	_, err := ParseNodeType("spaceship")
	require.Error(t, err)
}

func TestParseEdgeType(t *testing.T) {
	for _, edgeType := range AllEdgeTypes() {
		parsed, err := ParseEdgeType(string(edgeType))
		require.NoError(t, err)
		assert.Equal(t, edgeType, parsed)
	}

	_, err := ParseEdgeType("teleports_to")
	require.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	for _, raw := range []string{"incoming", "outgoing", "both"} {
		_, err := ParseDirection(raw)
		require.NoError(t, err)
	}

	_, err := ParseDirection("sideways")
	require.Error(t, err)
}

func TestNodeIDRoundTrip(t *testing.T) {
	id := NewNodeID()
	assert.False(t, id.IsZero())

	parsed, err := NewNodeIDFromString(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = NewNodeIDFromString("not-a-uuid")
	require.Error(t, err)
}

func TestNodeIDJSON(t *testing.T) {
	id := NewNodeID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded NodeID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, id.Equals(decoded))
}

func TestLabelValidation(t *testing.T) {
	_, err := NewLabel("")
	require.Error(t, err)

	_, err = NewLabel("   ")
	require.Error(t, err)

	_, err = NewLabel(strings.Repeat("x", 256))
	require.Error(t, err)

	label, err := NewLabel("  Daily Chronicle  ")
	require.NoError(t, err)
	assert.Equal(t, "Daily Chronicle", label.String())
	assert.True(t, label.MatchesQuery("chronicle"))
}

func TestConfidenceBounds(t *testing.T) {
	_, err := NewConfidence(-0.01)
	require.Error(t, err)

	_, err = NewConfidence(1.01)
	require.Error(t, err)

	c, err := NewConfidence(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.Value(), 1e-9)

	assert.InDelta(t, 1.0, DefaultConfidence().Value(), 1e-9)
}

func TestWeightMustBePositive(t *testing.T) {
	_, err := NewWeight(0)
	require.Error(t, err)

	_, err = NewWeight(-2)
	require.Error(t, err)

	w, err := NewWeight(3.5)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, w.Value(), 1e-9)

	assert.InDelta(t, 1.0, DefaultWeight().Value(), 1e-9)
}
