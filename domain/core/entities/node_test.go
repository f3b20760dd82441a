package entities

import (
	"testing"

	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 {
	return &f
}

func strPtr(s string) *string {
	return &s
}

func mustLabel(t *testing.T, raw string) valueobjects.Label {
	t.Helper()
	label, err := valueobjects.NewLabel(raw)
	require.NoError(t, err)
	return label
}

func newTestNode(t *testing.T, label string) *Node {
	t.Helper()
	node, err := NewNode(valueobjects.NodeTypeTopic, mustLabel(t, label), NodeAttributes{})
	require.NoError(t, err)
	return node
}

func TestNewNode_Defaults(t *testing.T) {
	node, err := NewNode(valueobjects.NodeTypeJournalist, mustLabel(t, "Jane Reporter"), NodeAttributes{
		Description: "investigative desk",
		Tags:        []string{"politics", " politics ", "", "media"},
	})
	require.NoError(t, err)

	assert.False(t, node.ID().IsZero())
	assert.True(t, node.IsActive())
	assert.Equal(t, 1, node.Version())
	assert.InDelta(t, 1.0, node.Confidence().Value(), 1e-9)
	// Tags are trimmed and deduplicated in input order.
	assert.Equal(t, []string{"politics", "media"}, node.Tags())
}

func TestNewNode_RejectsConfidenceOutOfRange(t *testing.T) {
	_, err := NewNode(valueobjects.NodeTypeTopic, mustLabel(t, "elections"), NodeAttributes{
		Confidence: floatPtr(1.5),
	})
	require.Error(t, err)

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeValidation, appErr.Type)
}

func TestNodeUpdate_BumpsVersionOnlyOnChange(t *testing.T) {
	node := newTestNode(t, "disinformation")
	require.Equal(t, 1, node.Version())

	require.NoError(t, node.Update(NodeUpdate{Description: strPtr("coordinated inauthentic behavior")}))
	assert.Equal(t, 2, node.Version())

	// Same value again is a no-op.
	require.NoError(t, node.Update(NodeUpdate{Description: strPtr("coordinated inauthentic behavior")}))
	assert.Equal(t, 2, node.Version())
}

func TestNodeUpdate_InactiveNodeRejected(t *testing.T) {
	node := newTestNode(t, "stale topic")
	require.True(t, node.Deactivate())

	err := node.Update(NodeUpdate{Description: strPtr("should not apply")})
	require.Error(t, err)
}

func TestNodeDeactivateReactivate(t *testing.T) {
	node := newTestNode(t, "flip flop")
	version := node.Version()

	assert.True(t, node.Deactivate())
	assert.False(t, node.IsActive())
	assert.Equal(t, version+1, node.Version())

	// Double deactivation is a no-op.
	assert.False(t, node.Deactivate())
	assert.Equal(t, version+1, node.Version())

	assert.True(t, node.Reactivate())
	assert.True(t, node.IsActive())
}

func TestNodeAttachEmbedding(t *testing.T) {
	node := newTestNode(t, "embedding target")
	require.False(t, node.HasEmbedding())

	require.NoError(t, node.AttachEmbedding([]float32{0.1, 0.2, 0.3}))
	assert.True(t, node.HasEmbedding())
	assert.Len(t, node.Embedding(), 3)

	err := node.AttachEmbedding(nil)
	require.Error(t, err)
}

func TestNodeAbsorbMergeSource(t *testing.T) {
	target, err := NewNode(valueobjects.NodeTypeTopic, mustLabel(t, "election fraud"), NodeAttributes{
		Tags:       []string{"politics"},
		Properties: map[string]interface{}{"region": "EU"},
		Confidence: floatPtr(0.6),
	})
	require.NoError(t, err)

	source, err := NewNode(valueobjects.NodeTypeTopic, mustLabel(t, "voter fraud"), NodeAttributes{
		Tags:       []string{"elections"},
		Properties: map[string]interface{}{"region": "US", "language": "en"},
		Confidence: floatPtr(0.9),
	})
	require.NoError(t, err)

	require.NoError(t, target.AbsorbMergeSource(source))

	assert.ElementsMatch(t, []string{"politics", "elections"}, target.Tags())
	// Later sources win on property key conflicts.
	assert.Equal(t, "US", target.Properties()["region"])
	assert.Equal(t, "en", target.Properties()["language"])
	// Confidence takes the maximum of the two.
	assert.InDelta(t, 0.9, target.Confidence().Value(), 1e-9)
}

func TestNodeMatchesQuery(t *testing.T) {
	node, err := NewNode(valueobjects.NodeTypeMediaOutlet, mustLabel(t, "Daily Chronicle"), NodeAttributes{
		Description: "regional newspaper",
		Tags:        []string{"Exclusive", "print-media"},
	})
	require.NoError(t, err)

	assert.True(t, node.MatchesQuery("chronicle"))
	assert.True(t, node.MatchesQuery("NEWSPAPER"))
	assert.True(t, node.MatchesQuery("exclusive"))
	assert.True(t, node.MatchesQuery("PRINT"))
	assert.False(t, node.MatchesQuery("television"))
}
