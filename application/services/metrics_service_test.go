package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/infrastructure/persistence/memory"
)

type metricsHarness struct {
	fixture  *graphFixture
	runs     *memory.MetricsRepository
	audit    *memory.AuditLogRepository
	eventBus *fakeEventBus
	cache    *fakeCache
	emitter  *fakeStatsEmitter
	svc      *MetricsService
}

type fakeStatsEmitter struct {
	emitted []map[string]float64
}

func (e *fakeStatsEmitter) EmitGraphStats(ctx context.Context, stats map[string]float64) {
	e.emitted = append(e.emitted, stats)
}

func newMetricsHarness() *metricsHarness {
	f := newGraphFixture()
	h := &metricsHarness{
		fixture:  f,
		runs:     memory.NewMetricsRepository(),
		audit:    memory.NewAuditLogRepository(),
		eventBus: &fakeEventBus{},
		cache:    newFakeCache(),
		emitter:  &fakeStatsEmitter{},
	}
	h.svc = NewMetricsService(
		f.nodes, f.edges, h.runs, h.audit,
		h.eventBus, h.cache, h.emitter,
		config.DefaultDomainConfig(), zap.NewNop(),
	)
	return h
}

func TestComputeScoresAndClusters(t *testing.T) {
	h := newMetricsHarness()
	f := h.fixture

	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	c := f.addNode(t, valueobjects.NodeTypeTopic, "c")
	isolated := f.addNode(t, valueobjects.NodeTypeTopic, "isolated")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{Weight: weightPtr(2)})
	f.connect(t, b, c, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{Weight: weightPtr(1)})

	run, err := h.svc.Compute(context.Background(), ComputeRequest{
		ComputeCentrality: true,
		ComputeClusters:   true,
		Actor:             "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, run.Metrics.TotalNodes)
	assert.Equal(t, 4, run.Metrics.ActiveNodes)
	assert.Equal(t, 2, run.Metrics.TotalEdges)
	assert.Equal(t, 4, run.Metrics.NodesByType["topic"])
	assert.Equal(t, 2, run.Metrics.EdgesByType["related_to"])

	assert.Equal(t, 2, run.ClustersIdentified)
	assert.Equal(t, 3, run.LargestClusterSize)
	assert.Equal(t, 4, run.NodesUpdated)
	assert.InDelta(t, 3.0, run.MaxWeightedDegree, 1e-9)
	assert.InDelta(t, 1.5, run.AverageWeightedDegree, 1e-9)

	// Scores are written back onto the nodes, normalized to the busiest.
	stored, err := f.nodes.GetByID(context.Background(), b.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.CentralityScore())
	assert.InDelta(t, 1.0, *stored.CentralityScore(), 1e-9)
	assert.NotEmpty(t, stored.ClusterID())

	storedC, err := f.nodes.GetByID(context.Background(), c.ID())
	require.NoError(t, err)
	require.NotNil(t, storedC.CentralityScore())
	assert.InDelta(t, 1.0/3.0, *storedC.CentralityScore(), 1e-9)
	assert.Equal(t, stored.ClusterID(), storedC.ClusterID())

	storedIsolated, err := f.nodes.GetByID(context.Background(), isolated.ID())
	require.NoError(t, err)
	require.NotNil(t, storedIsolated.CentralityScore())
	assert.InDelta(t, 0.0, *storedIsolated.CentralityScore(), 1e-9)
	assert.NotEqual(t, stored.ClusterID(), storedIsolated.ClusterID())

	// A run leaves an audit trail, an event and an emitted gauge set behind.
	entries, _, err := h.audit.List(context.Background(), ports.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, h.eventBus.published, 1)
	require.Len(t, h.emitter.emitted, 1)
	assert.InDelta(t, 4.0, h.emitter.emitted[0]["ActiveNodes"], 1e-9)
	assert.InDelta(t, 2.0, h.emitter.emitted[0]["ClustersIdentified"], 1e-9)
}

func TestComputeRerunOnUnchangedGraphUpdatesNothing(t *testing.T) {
	h := newMetricsHarness()
	f := h.fixture

	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	first, err := h.svc.Compute(context.Background(), ComputeRequest{
		ComputeCentrality: true,
		ComputeClusters:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, first.NodesUpdated)

	second, err := h.svc.Compute(context.Background(), ComputeRequest{
		ComputeCentrality: true,
		ComputeClusters:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, second.NodesUpdated)
}

func TestComputeSummaryOnlySkipsWriteBack(t *testing.T) {
	h := newMetricsHarness()
	f := h.fixture

	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	run, err := h.svc.Compute(context.Background(), ComputeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.NodesUpdated)
	assert.Equal(t, 0, run.ClustersIdentified)

	stored, err := f.nodes.GetByID(context.Background(), a.ID())
	require.NoError(t, err)
	assert.Nil(t, stored.CentralityScore())
}

func TestLatestFallsBackToLiveCounts(t *testing.T) {
	h := newMetricsHarness()
	f := h.fixture

	f.addNode(t, valueobjects.NodeTypeTopic, "a")
	inactive := f.addNode(t, valueobjects.NodeTypeTopic, "gone")
	inactive.Deactivate()
	require.NoError(t, f.nodes.Update(context.Background(), inactive))

	metrics, err := h.svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.TotalNodes)
	assert.Equal(t, 1, metrics.ActiveNodes)
	assert.False(t, metrics.ComputedAt.IsZero())

	// The live summary is cached for the next read.
	_, found := h.cache.Get(context.Background(), metricsCacheKey)
	assert.True(t, found)
}

func TestLatestPrefersPersistedRunAndInvalidation(t *testing.T) {
	h := newMetricsHarness()
	f := h.fixture

	f.addNode(t, valueobjects.NodeTypeTopic, "a")

	_, err := h.svc.Compute(context.Background(), ComputeRequest{})
	require.NoError(t, err)

	// Compute invalidated whatever summary was cached before.
	assert.Contains(t, h.cache.deletes, metricsCacheKey)

	metrics, err := h.svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.TotalNodes)
}
