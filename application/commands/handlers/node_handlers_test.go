package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/validators"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	"atlas-graph/infrastructure/persistence/memory"
	pkgerrors "atlas-graph/pkg/errors"
)

type stubEventBus struct {
	published []events.DomainEvent
}

func (b *stubEventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.published = append(b.published, event)
	return nil
}

func (b *stubEventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.published = append(b.published, batch...)
	return nil
}

func (b *stubEventBus) Subscribe(eventType string, handler ports.EventHandler) error   { return nil }
func (b *stubEventBus) Unsubscribe(eventType string, handler ports.EventHandler) error { return nil }

type handlerHarness struct {
	nodes    *memory.NodeRepository
	edges    *memory.EdgeRepository
	audit    *memory.AuditLogRepository
	uow      *memory.UnitOfWork
	eventBus *stubEventBus
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

func newHandlerHarness() *handlerHarness {
	nodes := memory.NewNodeRepository()
	edges := memory.NewEdgeRepository()
	audit := memory.NewAuditLogRepository()
	return &handlerHarness{
		nodes:    nodes,
		edges:    edges,
		audit:    audit,
		uow:      memory.NewUnitOfWork(nodes, edges, memory.NewSnapshotRepository(), audit),
		eventBus: &stubEventBus{},
		cfg:      config.DefaultDomainConfig(),
		logger:   zap.NewNop(),
	}
}

func (h *handlerHarness) createNode(t *testing.T, label string) *entities.Node {
	t.Helper()

	handler := NewCreateNodeHandler(h.uow, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)
	result, err := handler.Handle(context.Background(), commands.CreateNodeCommand{
		NodeType: "topic",
		Label:    label,
		Actor:    "tester",
	})
	require.NoError(t, err)
	node, ok := result.(*entities.Node)
	require.True(t, ok)
	return node
}

func (h *handlerHarness) auditCount(t *testing.T) int {
	t.Helper()

	entries, _, err := h.audit.List(context.Background(), ports.AuditFilter{})
	require.NoError(t, err)
	return len(entries)
}

func TestCreateNodeHandler(t *testing.T) {
	h := newHandlerHarness()
	handler := NewCreateNodeHandler(h.uow, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)

	confidence := 0.75
	result, err := handler.Handle(context.Background(), commands.CreateNodeCommand{
		NodeType:   "journalist",
		Label:      "Jane Doe",
		Tags:       []string{"politics"},
		Confidence: &confidence,
		Actor:      "tester",
	})
	require.NoError(t, err)

	node := result.(*entities.Node)
	assert.Equal(t, valueobjects.NodeTypeJournalist, node.Type())
	assert.Equal(t, "Jane Doe", node.Label().String())
	assert.InDelta(t, 0.75, node.Confidence().Value(), 1e-9)

	stored, err := h.nodes.GetByID(context.Background(), node.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsActive())

	assert.Equal(t, 1, h.auditCount(t))
	assert.NotEmpty(t, h.eventBus.published)
}

func TestCreateNodeHandlerRejectsUnknownType(t *testing.T) {
	h := newHandlerHarness()
	handler := NewCreateNodeHandler(h.uow, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)

	_, err := handler.Handle(context.Background(), commands.CreateNodeCommand{
		NodeType: "spaceship",
		Label:    "x",
	})
	require.Error(t, err)

	// Nothing was persisted.
	assert.Equal(t, 0, h.auditCount(t))
}

func TestUpdateNodeHandler(t *testing.T) {
	h := newHandlerHarness()
	node := h.createNode(t, "original")

	handler := NewUpdateNodeHandler(h.uow, h.nodes, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)

	label := "renamed"
	result, err := handler.Handle(context.Background(), commands.UpdateNodeCommand{
		NodeID: node.ID().String(),
		Label:  &label,
		Actor:  "tester",
	})
	require.NoError(t, err)

	updated := result.(*entities.Node)
	assert.Equal(t, "renamed", updated.Label().String())
	assert.Equal(t, 2, updated.Version())
	assert.Equal(t, 2, h.auditCount(t))
}

func TestUpdateNodeHandlerNoopSkipsPersistence(t *testing.T) {
	h := newHandlerHarness()
	node := h.createNode(t, "steady")
	auditBefore := h.auditCount(t)

	handler := NewUpdateNodeHandler(h.uow, h.nodes, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)

	label := "steady"
	result, err := handler.Handle(context.Background(), commands.UpdateNodeCommand{
		NodeID: node.ID().String(),
		Label:  &label,
	})
	require.NoError(t, err)

	unchanged := result.(*entities.Node)
	assert.Equal(t, 1, unchanged.Version())
	assert.Equal(t, auditBefore, h.auditCount(t))
}

func TestUpdateNodeHandlerVersionConflict(t *testing.T) {
	h := newHandlerHarness()
	node := h.createNode(t, "contested")

	handler := NewUpdateNodeHandler(h.uow, h.nodes, validators.NewNodeValidator(h.cfg), nil, h.eventBus, h.cfg, h.logger)

	label := "changed"
	stale := 5
	_, err := handler.Handle(context.Background(), commands.UpdateNodeCommand{
		NodeID:          node.ID().String(),
		Label:           &label,
		ExpectedVersion: &stale,
	})
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeConflict, appErr.Type)
}

func TestCreateEdgeHandler(t *testing.T) {
	h := newHandlerHarness()
	source := h.createNode(t, "source")
	target := h.createNode(t, "target")

	handler := NewCreateEdgeHandler(h.uow, h.nodes, validators.NewEdgeValidator(h.cfg), h.eventBus, h.cfg, h.logger)

	result, err := handler.Handle(context.Background(), commands.CreateEdgeCommand{
		SourceNodeID: source.ID().String(),
		TargetNodeID: target.ID().String(),
		EdgeType:     "related_to",
		Actor:        "tester",
	})
	require.NoError(t, err)

	edge := result.(*entities.Edge)
	assert.Equal(t, valueobjects.EdgeTypeRelatedTo, edge.Type())
	assert.InDelta(t, 1.0, edge.Weight().Value(), 1e-9)

	stored, err := h.edges.GetByID(context.Background(), edge.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
}

func TestCreateEdgeHandlerRejectsBadEndpoints(t *testing.T) {
	h := newHandlerHarness()
	source := h.createNode(t, "source")

	handler := NewCreateEdgeHandler(h.uow, h.nodes, validators.NewEdgeValidator(h.cfg), h.eventBus, h.cfg, h.logger)

	// Missing target.
	_, err := handler.Handle(context.Background(), commands.CreateEdgeCommand{
		SourceNodeID: source.ID().String(),
		TargetNodeID: valueobjects.NewNodeID().String(),
		EdgeType:     "related_to",
	})
	require.Error(t, err)

	// Inactive target.
	target := h.createNode(t, "target")
	target.Deactivate()
	require.NoError(t, h.nodes.Update(context.Background(), target))

	_, err = handler.Handle(context.Background(), commands.CreateEdgeCommand{
		SourceNodeID: source.ID().String(),
		TargetNodeID: target.ID().String(),
		EdgeType:     "related_to",
	})
	require.Error(t, err)

	// Self-loop.
	_, err = handler.Handle(context.Background(), commands.CreateEdgeCommand{
		SourceNodeID: source.ID().String(),
		TargetNodeID: source.ID().String(),
		EdgeType:     "related_to",
	})
	require.Error(t, err)
}

type stubEmbeddingProvider struct {
	available bool
	err       error
	calls     int
}

func (p *stubEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (p *stubEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vector, err := p.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (p *stubEmbeddingProvider) IsAvailable(ctx context.Context) bool {
	return p.available
}

func TestCreateNodeHandlerAttachesEmbedding(t *testing.T) {
	h := newHandlerHarness()
	provider := &stubEmbeddingProvider{available: true}
	handler := NewCreateNodeHandler(h.uow, validators.NewNodeValidator(h.cfg), provider, h.eventBus, h.cfg, h.logger)

	result, err := handler.Handle(context.Background(), commands.CreateNodeCommand{
		NodeType: "topic",
		Label:    "vectorized",
		Actor:    "tester",
	})
	require.NoError(t, err)

	node := result.(*entities.Node)
	assert.True(t, node.HasEmbedding())
	assert.Equal(t, 1, provider.calls)

	stored, err := h.nodes.GetByID(context.Background(), node.ID())
	require.NoError(t, err)
	assert.True(t, stored.HasEmbedding())
}

func TestCreateNodeHandlerSurvivesEmbeddingFailure(t *testing.T) {
	h := newHandlerHarness()
	provider := &stubEmbeddingProvider{available: true, err: context.DeadlineExceeded}
	handler := NewCreateNodeHandler(h.uow, validators.NewNodeValidator(h.cfg), provider, h.eventBus, h.cfg, h.logger)

	result, err := handler.Handle(context.Background(), commands.CreateNodeCommand{
		NodeType: "topic",
		Label:    "no vector",
	})
	require.NoError(t, err)

	node := result.(*entities.Node)
	assert.False(t, node.HasEmbedding())
	assert.Equal(t, 1, h.auditCount(t))
}

func TestUpdateNodeHandlerRefreshesEmbedding(t *testing.T) {
	h := newHandlerHarness()
	node := h.createNode(t, "before")

	provider := &stubEmbeddingProvider{available: true}
	handler := NewUpdateNodeHandler(h.uow, h.nodes, validators.NewNodeValidator(h.cfg), provider, h.eventBus, h.cfg, h.logger)

	label := "after"
	result, err := handler.Handle(context.Background(), commands.UpdateNodeCommand{
		NodeID: node.ID().String(),
		Label:  &label,
	})
	require.NoError(t, err)

	updated := result.(*entities.Node)
	assert.True(t, updated.HasEmbedding())
	assert.Equal(t, 1, provider.calls)

	// A no-op update never touches the provider.
	_, err = handler.Handle(context.Background(), commands.UpdateNodeCommand{
		NodeID: node.ID().String(),
		Label:  &label,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}
