package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-graph/application/commands"
	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/validators"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/infrastructure/persistence/memory"
)

// failingAuditRepo errors on Append so the last saga step fails and the
// completed steps have to compensate.
type failingAuditRepo struct {
	ports.AuditLogRepository
}

func (r *failingAuditRepo) Append(ctx context.Context, entry *entities.AuditEntry) error {
	return errors.New("audit store unavailable")
}

func (h *handlerHarness) mergeHandler(audit ports.AuditLogRepository) *MergeNodesHandler {
	return NewMergeNodesHandler(
		h.nodes, h.edges, audit,
		validators.NewMergeValidator(h.cfg),
		memory.NewLock(), h.eventBus, h.cfg, h.logger,
	)
}

func (h *handlerHarness) connectNodes(t *testing.T, source, target *entities.Node) *entities.Edge {
	t.Helper()

	edge, err := entities.NewEdge(source.ID(), target.ID(), valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})
	require.NoError(t, err)
	require.NoError(t, h.edges.Save(context.Background(), edge))
	return edge
}

func TestMergeIntoFirstRedirectsEdges(t *testing.T) {
	h := newHandlerHarness()
	survivor := h.createNode(t, "survivor")
	absorbed := h.createNode(t, "absorbed")
	external := h.createNode(t, "external")

	// One edge already on the survivor, one to redirect into a duplicate,
	// one collapsing to a self-loop.
	existing := h.connectNodes(t, survivor, external)
	duplicate := h.connectNodes(t, absorbed, external)
	collapsing := h.connectNodes(t, survivor, absorbed)

	handler := h.mergeHandler(h.audit)
	result, err := handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{survivor.ID().String(), absorbed.ID().String()},
		Strategy:      "merge_into_first",
		Actor:         "tester",
	})
	require.NoError(t, err)

	merged := result.(*commands.MergeResult)
	assert.Equal(t, survivor.ID().String(), merged.MergedNode.ID().String())
	assert.Equal(t, []string{absorbed.ID().String()}, merged.MergedNodeIDs)
	assert.Equal(t, 1, merged.EdgesPreserved)
	assert.Equal(t, 2, merged.EdgesRemoved)

	// The absorbed source is gone from the active graph.
	storedAbsorbed, err := h.nodes.GetByID(context.Background(), absorbed.ID())
	require.NoError(t, err)
	assert.False(t, storedAbsorbed.IsActive())

	storedExisting, err := h.edges.GetByID(context.Background(), existing.ID())
	require.NoError(t, err)
	assert.True(t, storedExisting.IsActive())

	storedDuplicate, err := h.edges.GetByID(context.Background(), duplicate.ID())
	require.NoError(t, err)
	assert.False(t, storedDuplicate.IsActive())
	assert.Equal(t, survivor.ID().String(), storedDuplicate.SourceID().String())

	storedCollapsing, err := h.edges.GetByID(context.Background(), collapsing.ID())
	require.NoError(t, err)
	assert.False(t, storedCollapsing.IsActive())
	assert.True(t, storedCollapsing.IsSelfLoop())
}

func TestMergePreserveEdgesKeepsDuplicates(t *testing.T) {
	h := newHandlerHarness()
	survivor := h.createNode(t, "survivor")
	absorbed := h.createNode(t, "absorbed")
	external := h.createNode(t, "external")

	h.connectNodes(t, survivor, external)
	duplicate := h.connectNodes(t, absorbed, external)

	handler := h.mergeHandler(h.audit)
	result, err := handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{survivor.ID().String(), absorbed.ID().String()},
		Strategy:      "merge_into_first",
		PreserveEdges: true,
		Actor:         "tester",
	})
	require.NoError(t, err)

	merged := result.(*commands.MergeResult)
	assert.Equal(t, 2, merged.EdgesPreserved)
	assert.Equal(t, 0, merged.EdgesRemoved)

	stored, err := h.edges.GetByID(context.Background(), duplicate.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
}

func TestMergeCreateNew(t *testing.T) {
	h := newHandlerHarness()
	first := h.createNode(t, "first")
	second := h.createNode(t, "second")
	external := h.createNode(t, "external")
	h.connectNodes(t, second, external)

	handler := h.mergeHandler(h.audit)
	result, err := handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{first.ID().String(), second.ID().String()},
		Strategy:      "create_new",
		NewLabel:      "combined",
		Actor:         "tester",
	})
	require.NoError(t, err)

	merged := result.(*commands.MergeResult)
	assert.Equal(t, "combined", merged.MergedNode.Label().String())
	assert.NotEqual(t, first.ID().String(), merged.MergedNode.ID().String())
	assert.ElementsMatch(t, []string{first.ID().String(), second.ID().String()}, merged.MergedNodeIDs)

	// Both sources are deactivated; the edge now hangs off the new node.
	for _, id := range []valueobjects.NodeID{first.ID(), second.ID()} {
		stored, err := h.nodes.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, stored.IsActive())
	}

	edges, err := h.edges.GetByNodeID(context.Background(), merged.MergedNode.ID())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.True(t, edges[0].IsActive())
}

func TestMergeRejectsInvalidSources(t *testing.T) {
	h := newHandlerHarness()
	only := h.createNode(t, "only")
	handler := h.mergeHandler(h.audit)

	// Unknown source.
	_, err := handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{only.ID().String(), valueobjects.NewNodeID().String()},
		Strategy:      "merge_into_first",
	})
	require.Error(t, err)

	// Inactive source.
	inactive := h.createNode(t, "inactive")
	inactive.Deactivate()
	require.NoError(t, h.nodes.Update(context.Background(), inactive))
	_, err = handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{only.ID().String(), inactive.ID().String()},
		Strategy:      "merge_into_first",
	})
	require.Error(t, err)

	// Unknown strategy.
	other := h.createNode(t, "other")
	_, err = handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{only.ID().String(), other.ID().String()},
		Strategy:      "coin_flip",
	})
	require.Error(t, err)
}

func TestMergeCompensatesOnFailure(t *testing.T) {
	h := newHandlerHarness()
	survivor := h.createNode(t, "survivor")
	absorbed := h.createNode(t, "absorbed")
	external := h.createNode(t, "external")
	redirected := h.connectNodes(t, absorbed, external)

	handler := h.mergeHandler(&failingAuditRepo{AuditLogRepository: h.audit})
	_, err := handler.Handle(context.Background(), commands.MergeNodesCommand{
		SourceNodeIDs: []string{survivor.ID().String(), absorbed.ID().String()},
		Strategy:      "merge_into_first",
		Actor:         "tester",
	})
	require.Error(t, err)

	// The failed audit append rolled back the whole merge: the absorbed
	// node is active again and the edge points at its original endpoints.
	storedAbsorbed, err := h.nodes.GetByID(context.Background(), absorbed.ID())
	require.NoError(t, err)
	assert.True(t, storedAbsorbed.IsActive())

	storedEdge, err := h.edges.GetByID(context.Background(), redirected.ID())
	require.NoError(t, err)
	assert.True(t, storedEdge.IsActive())
	assert.Equal(t, absorbed.ID().String(), storedEdge.SourceID().String())
	assert.Equal(t, external.ID().String(), storedEdge.TargetID().String())
}
