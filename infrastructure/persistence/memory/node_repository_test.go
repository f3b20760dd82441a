package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

func saveNode(t *testing.T, repo *NodeRepository, label string, attrs entities.NodeAttributes) *entities.Node {
	t.Helper()

	lbl, err := valueobjects.NewLabel(label)
	require.NoError(t, err)
	node, err := entities.NewNode(valueobjects.NodeTypeContentPiece, lbl, attrs)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), node))
	node.MarkPersisted()
	return node
}

func TestListSearchMatchesLabelDescriptionAndTags(t *testing.T) {
	ctx := context.Background()
	repo := NewNodeRepository()

	tagged := saveNode(t, repo, "Quarterly report", entities.NodeAttributes{
		Tags: []string{"Exclusive"},
	})
	described := saveNode(t, repo, "Weekly digest", entities.NodeAttributes{
		Description: "exclusive preview of upcoming coverage",
	})
	saveNode(t, repo, "Morning briefing", entities.NodeAttributes{})

	nodes, total, err := repo.List(ctx, ports.NodeFilter{Search: "exclusive"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	var ids []string
	for _, node := range nodes {
		ids = append(ids, node.ID().String())
	}
	assert.ElementsMatch(t, []string{tagged.ID().String(), described.ID().String()}, ids)

	nodes, total, err = repo.List(ctx, ports.NodeFilter{Search: "quarterly"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, nodes, 1)
	assert.Equal(t, tagged.ID(), nodes[0].ID())
}
