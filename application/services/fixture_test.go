package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	"atlas-graph/infrastructure/persistence/memory"
)

// graphFixture wires the in-memory registries behind the service ports so
// tests can build small graphs without a store.
type graphFixture struct {
	nodes *memory.NodeRepository
	edges *memory.EdgeRepository
}

func newGraphFixture() *graphFixture {
	return &graphFixture{
		nodes: memory.NewNodeRepository(),
		edges: memory.NewEdgeRepository(),
	}
}

func (f *graphFixture) addNode(t *testing.T, nodeType valueobjects.NodeType, label string) *entities.Node {
	t.Helper()

	lbl, err := valueobjects.NewLabel(label)
	require.NoError(t, err)
	node, err := entities.NewNode(nodeType, lbl, entities.NodeAttributes{})
	require.NoError(t, err)
	require.NoError(t, f.nodes.Save(context.Background(), node))
	node.MarkPersisted()
	return node
}

func (f *graphFixture) connect(t *testing.T, source, target *entities.Node, edgeType valueobjects.EdgeType, attrs entities.EdgeAttributes) *entities.Edge {
	t.Helper()

	edge, err := entities.NewEdge(source.ID(), target.ID(), edgeType, attrs)
	require.NoError(t, err)
	require.NoError(t, f.edges.Save(context.Background(), edge))
	edge.MarkPersisted()
	return edge
}

type fakeCache struct {
	entries map[string]interface{}
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]interface{})}
}

func (c *fakeCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, found := c.entries[key]
	return value, found
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func (c *fakeCache) Clear(ctx context.Context) error {
	c.entries = make(map[string]interface{})
	return nil
}

type fakeEventBus struct {
	published []events.DomainEvent
}

func (b *fakeEventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.published = append(b.published, event)
	return nil
}

func (b *fakeEventBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.published = append(b.published, batch...)
	return nil
}

func (b *fakeEventBus) Subscribe(eventType string, handler ports.EventHandler) error   { return nil }
func (b *fakeEventBus) Unsubscribe(eventType string, handler ports.EventHandler) error { return nil }

type fakeReasoning struct {
	available   bool
	err         error
	explanation *ports.PathExplanation
	calls       int
}

func (f *fakeReasoning) Explain(ctx context.Context, nodes []*entities.Node, edges []*entities.Edge) (*ports.PathExplanation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.explanation, nil
}

func (f *fakeReasoning) IsAvailable(ctx context.Context) bool {
	return f.available
}
