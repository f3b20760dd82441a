package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/infrastructure/persistence/memory"
)

type snapshotHarness struct {
	fixture   *graphFixture
	snapshots *memory.SnapshotRepository
	svc       *SnapshotService
}

func newSnapshotHarness(t *testing.T, cfg *config.DomainConfig) *snapshotHarness {
	t.Helper()

	f := newGraphFixture()
	repo := memory.NewSnapshotRepository()
	svc := NewSnapshotService(
		repo, f.nodes, f.edges,
		memory.NewAuditLogRepository(), &fakeEventBus{},
		cfg, zap.NewNop(),
	)
	return &snapshotHarness{fixture: f, snapshots: repo, svc: svc}
}

// waitForTerminal polls until the capture worker moves the snapshot out of
// the pending and computing states.
func (h *snapshotHarness) waitForTerminal(t *testing.T, id valueobjects.SnapshotID) *entities.Snapshot {
	t.Helper()

	var latest *entities.Snapshot
	require.Eventually(t, func() bool {
		snapshot, err := h.snapshots.GetByID(context.Background(), id)
		if err != nil {
			return false
		}
		latest = snapshot
		status := snapshot.Status()
		return status == entities.SnapshotComplete || status == entities.SnapshotFailed
	}, 5*time.Second, 10*time.Millisecond)
	return latest
}

func TestSnapshotCaptureFullGraph(t *testing.T) {
	h := newSnapshotHarness(t, config.DefaultDomainConfig())
	f := h.fixture

	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")
	b := f.addNode(t, valueobjects.NodeTypeTopic, "b")
	f.connect(t, a, b, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	gone := f.addNode(t, valueobjects.NodeTypeTopic, "gone")
	gone.Deactivate()
	require.NoError(t, f.nodes.Update(context.Background(), gone))

	h.svc.Start()
	defer h.svc.Stop()

	created, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "baseline",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)
	require.NotEqual(t, entities.SnapshotFailed, created.Status())

	captured := h.waitForTerminal(t, created.ID())
	require.Equal(t, entities.SnapshotComplete, captured.Status())
	assert.Equal(t, 2, captured.NodeCount())
	assert.Equal(t, 1, captured.EdgeCount())
	assert.NotEmpty(t, captured.Checksum())
	assert.NotNil(t, captured.CompletedAt())
}

func TestSnapshotDiffAgainstPreviousFull(t *testing.T) {
	h := newSnapshotHarness(t, config.DefaultDomainConfig())
	f := h.fixture

	a := f.addNode(t, valueobjects.NodeTypeTopic, "a")

	h.svc.Start()
	defer h.svc.Stop()

	first, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "first",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)
	require.Equal(t, entities.SnapshotComplete, h.waitForTerminal(t, first.ID()).Status())

	// The graph grows between captures.
	added := f.addNode(t, valueobjects.NodeTypeTopic, "added")
	f.connect(t, a, added, valueobjects.EdgeTypeRelatedTo, entities.EdgeAttributes{})

	second, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "second",
		SnapshotType: entities.SnapshotFull,
		ComputeDiff:  true,
		Actor:        "tester",
	})
	require.NoError(t, err)

	captured := h.waitForTerminal(t, second.ID())
	require.Equal(t, entities.SnapshotComplete, captured.Status())

	diff := captured.Diff()
	require.NotNil(t, diff)
	assert.Equal(t, first.ID().String(), diff.BaseSnapshotID)
	assert.Equal(t, []string{added.ID().String()}, diff.AddedNodes)
	assert.Len(t, diff.AddedEdges, 1)
	assert.Empty(t, diff.RemovedNodes)
}

func TestSnapshotRegenerate(t *testing.T) {
	h := newSnapshotHarness(t, config.DefaultDomainConfig())
	f := h.fixture

	f.addNode(t, valueobjects.NodeTypeTopic, "a")

	h.svc.Start()
	defer h.svc.Stop()

	created, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "regen",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)

	captured := h.waitForTerminal(t, created.ID())
	require.Equal(t, entities.SnapshotComplete, captured.Status())
	firstCompletion := captured.CompletedAt()

	f.addNode(t, valueobjects.NodeTypeTopic, "b")

	_, err = h.svc.Regenerate(context.Background(), created.ID().String(), "tester")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snapshot, err := h.snapshots.GetByID(context.Background(), created.ID())
		if err != nil || snapshot.Status() != entities.SnapshotComplete {
			return false
		}
		return snapshot.NodeCount() == 2
	}, 5*time.Second, 10*time.Millisecond)

	recaptured, err := h.snapshots.GetByID(context.Background(), created.ID())
	require.NoError(t, err)
	assert.NotEqual(t, firstCompletion, recaptured.CompletedAt())
}

func TestSnapshotRegenerateRejectsPending(t *testing.T) {
	// No worker running, so the snapshot stays pending.
	h := newSnapshotHarness(t, config.DefaultDomainConfig())
	h.fixture.addNode(t, valueobjects.NodeTypeTopic, "a")

	created, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "stuck",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)

	_, err = h.svc.Regenerate(context.Background(), created.ID().String(), "tester")
	require.Error(t, err)

	_, err = h.svc.Regenerate(context.Background(), "not-an-id", "tester")
	require.Error(t, err)
}

// panickingNodeRepository simulates a storage layer blowing up mid-capture.
type panickingNodeRepository struct {
	*memory.NodeRepository
}

func (r *panickingNodeRepository) ListActive(ctx context.Context, limit int) ([]*entities.Node, error) {
	panic("storage exploded")
}

func TestSnapshotCapturePanicMarksFailed(t *testing.T) {
	f := newGraphFixture()
	repo := memory.NewSnapshotRepository()
	svc := NewSnapshotService(
		repo, &panickingNodeRepository{NodeRepository: f.nodes}, f.edges,
		memory.NewAuditLogRepository(), &fakeEventBus{},
		config.DefaultDomainConfig(), zap.NewNop(),
	)
	h := &snapshotHarness{fixture: f, snapshots: repo, svc: svc}

	svc.Start()
	defer svc.Stop()

	created, err := svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "doomed",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)

	captured := h.waitForTerminal(t, created.ID())
	require.Equal(t, entities.SnapshotFailed, captured.Status())
	assert.Contains(t, captured.ErrorMessage(), "panicked")
}

func TestSnapshotQueueSaturationFailsRecord(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.SnapshotQueueSize = 1

	// No worker running, so the single queue slot fills immediately.
	h := newSnapshotHarness(t, cfg)
	h.fixture.addNode(t, valueobjects.NodeTypeTopic, "a")

	_, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "first",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)

	overflow, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "overflow",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.Error(t, err)
	assert.Nil(t, overflow)
}

func TestSnapshotRequeuePending(t *testing.T) {
	h := newSnapshotHarness(t, config.DefaultDomainConfig())
	h.fixture.addNode(t, valueobjects.NodeTypeTopic, "a")

	created, err := h.svc.Create(context.Background(), CreateSnapshotRequest{
		Name:         "orphan",
		SnapshotType: entities.SnapshotFull,
		Actor:        "tester",
	})
	require.NoError(t, err)

	// A fresh service over the same store simulates a restart: the record
	// is pending but nothing sits in the new queue until requeued.
	restarted := NewSnapshotService(
		h.snapshots, h.fixture.nodes, h.fixture.edges,
		memory.NewAuditLogRepository(), &fakeEventBus{},
		config.DefaultDomainConfig(), zap.NewNop(),
	)
	require.NoError(t, restarted.RequeuePending(context.Background()))
	restarted.Start()
	defer restarted.Stop()

	captured := h.waitForTerminal(t, created.ID())
	assert.Equal(t, entities.SnapshotComplete, captured.Status())
}
