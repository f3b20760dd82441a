package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	"atlas-graph/domain/snapshots"
	pkgerrors "atlas-graph/pkg/errors"
)

// SnapshotService registers snapshots and captures them on a background
// worker. Callers get the pending record back immediately and poll its
// status; capture failures land in the snapshot itself, never in the
// originating request.
type SnapshotService struct {
	snapshotRepo ports.SnapshotRepository
	nodeRepo     ports.NodeRepository
	edgeRepo     ports.EdgeRepository
	auditRepo    ports.AuditLogRepository
	eventBus     ports.EventBus
	differ       *snapshots.Differ
	cfg          *config.DomainConfig
	logger       *zap.Logger

	queue chan valueobjects.SnapshotID

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewSnapshotService creates a snapshot service. Call Start to launch the
// capture worker and Stop to drain it on shutdown.
func NewSnapshotService(
	snapshotRepo ports.SnapshotRepository,
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	auditRepo ports.AuditLogRepository,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SnapshotService {
	return &SnapshotService{
		snapshotRepo: snapshotRepo,
		nodeRepo:     nodeRepo,
		edgeRepo:     edgeRepo,
		auditRepo:    auditRepo,
		eventBus:     eventBus,
		differ:       snapshots.NewDiffer(),
		cfg:          cfg,
		logger:       logger,
		queue:        make(chan valueobjects.SnapshotID, cfg.SnapshotQueueSize),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the capture worker. Safe to call once; captures queued
// before Start sit in the queue until the worker runs.
func (s *SnapshotService) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.worker()
	})
}

// Stop shuts the worker down after any in-flight capture finishes.
// Queued captures that never ran stay pending and are picked up by
// RequeuePending on the next start.
func (s *SnapshotService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// RequeuePending re-enqueues snapshots that were registered but never
// captured, such as after a restart with a non-empty queue.
func (s *SnapshotService) RequeuePending(ctx context.Context) error {
	status := entities.SnapshotPending
	pending, _, err := s.snapshotRepo.List(ctx, ports.SnapshotFilter{Status: &status, Limit: s.cfg.SnapshotQueueSize})
	if err != nil {
		return fmt.Errorf("failed to list pending snapshots: %w", err)
	}

	for _, snapshot := range pending {
		select {
		case s.queue <- snapshot.ID():
			s.logger.Info("Requeued pending snapshot", zap.String("snapshotId", snapshot.ID().String()))
		default:
			return nil
		}
	}

	return nil
}

// CreateSnapshotRequest registers one capture.
type CreateSnapshotRequest struct {
	Name         string
	Description  string
	SnapshotType entities.SnapshotType
	ComputeDiff  bool
	Actor        string
}

// Create registers a snapshot and queues its capture. The returned
// snapshot is pending; poll Get until it reaches a terminal status.
func (s *SnapshotService) Create(ctx context.Context, req CreateSnapshotRequest) (*entities.Snapshot, error) {
	snapshot, err := entities.NewSnapshot(req.Name, req.Description, req.SnapshotType, req.ComputeDiff)
	if err != nil {
		return nil, err
	}

	if err := s.snapshotRepo.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	snapshot.MarkPersisted()

	entry := entities.NewAuditEntry(
		events.EventSnapshotCreated,
		entities.EntityKindSnapshot,
		snapshot.ID().String(),
		req.Actor,
		nil,
		snapshotStateMap(snapshot),
	)
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append snapshot audit entry: %w", err)
	}

	if err := s.enqueue(ctx, snapshot); err != nil {
		return nil, err
	}

	s.publishSnapshotEvents(ctx, snapshot)

	s.logger.Info("Snapshot registered",
		zap.String("snapshotId", snapshot.ID().String()),
		zap.String("snapshotType", string(snapshot.Type())),
		zap.Bool("computeDiff", snapshot.ComputeDiff()),
		zap.String("actor", req.Actor),
	)

	return snapshot, nil
}

// Regenerate resets a terminal snapshot to pending and queues a fresh
// capture. A snapshot that is pending or computing is rejected so the
// same capture never runs concurrently with itself.
func (s *SnapshotService) Regenerate(ctx context.Context, snapshotID string, actor string) (*entities.Snapshot, error) {
	id, err := valueobjects.NewSnapshotIDFromString(snapshotID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid snapshot id").
			WithDetail("snapshotId", snapshotID)
	}

	snapshot, err := s.snapshotRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	before := snapshotStateMap(snapshot)
	if err := snapshot.ResetForRegeneration(); err != nil {
		return nil, err
	}
	if err := s.snapshotRepo.Update(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to reset snapshot: %w", err)
	}
	snapshot.MarkPersisted()

	entry := entities.NewAuditEntry(
		events.EventSnapshotCreated,
		entities.EntityKindSnapshot,
		snapshot.ID().String(),
		actor,
		before,
		snapshotStateMap(snapshot),
	).WithMetadata(map[string]interface{}{"regenerated": true})
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append snapshot audit entry: %w", err)
	}

	if err := s.enqueue(ctx, snapshot); err != nil {
		return nil, err
	}

	s.publishSnapshotEvents(ctx, snapshot)

	s.logger.Info("Snapshot regeneration queued",
		zap.String("snapshotId", snapshot.ID().String()),
		zap.String("actor", actor),
	)

	return snapshot, nil
}

// enqueue hands a snapshot to the worker. A saturated queue fails the
// snapshot so the record explains why no capture will arrive.
func (s *SnapshotService) enqueue(ctx context.Context, snapshot *entities.Snapshot) error {
	select {
	case s.queue <- snapshot.ID():
		return nil
	default:
	}

	if err := snapshot.StartComputing(); err == nil {
		if err := snapshot.Fail("capture queue saturated"); err == nil {
			if err := s.snapshotRepo.Update(ctx, snapshot); err != nil {
				s.logger.Error("Failed to record queue saturation",
					zap.String("snapshotId", snapshot.ID().String()),
					zap.Error(err),
				)
			} else {
				snapshot.MarkPersisted()
			}
		}
	}

	return pkgerrors.NewUnavailableError("snapshot capture queue")
}

func (s *SnapshotService) worker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case id := <-s.queue:
			s.capture(context.Background(), id)
		}
	}
}

// capture runs one background capture end to end. Errors are recorded on
// the snapshot; nothing propagates because no caller is waiting.
func (s *SnapshotService) capture(ctx context.Context, id valueobjects.SnapshotID) {
	snapshot, err := s.snapshotRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load snapshot for capture",
			zap.String("snapshotId", id.String()),
			zap.Error(err),
		)
		return
	}

	if err := snapshot.StartComputing(); err != nil {
		s.logger.Warn("Skipping capture, snapshot is not pending",
			zap.String("snapshotId", id.String()),
			zap.String("status", string(snapshot.Status())),
		)
		return
	}
	if err := s.snapshotRepo.Update(ctx, snapshot); err != nil {
		s.logger.Error("Failed to mark snapshot computing",
			zap.String("snapshotId", id.String()),
			zap.Error(err),
		)
		return
	}
	snapshot.MarkPersisted()

	if err := s.runCaptureRecovered(ctx, snapshot); err != nil {
		s.logger.Error("Snapshot capture failed",
			zap.String("snapshotId", id.String()),
			zap.Error(err),
		)
		if failErr := snapshot.Fail(err.Error()); failErr == nil {
			if updateErr := s.snapshotRepo.Update(ctx, snapshot); updateErr != nil {
				s.logger.Error("Failed to record snapshot failure",
					zap.String("snapshotId", id.String()),
					zap.Error(updateErr),
				)
			} else {
				snapshot.MarkPersisted()
			}
		}
		s.publishSnapshotEvents(ctx, snapshot)
		return
	}

	s.publishSnapshotEvents(ctx, snapshot)

	s.logger.Info("Snapshot captured",
		zap.String("snapshotId", id.String()),
		zap.Int("nodeCount", snapshot.NodeCount()),
		zap.Int("edgeCount", snapshot.EdgeCount()),
	)
}

// runCaptureRecovered converts capture panics into ordinary errors so the
// snapshot still transitions to failed instead of wedging in computing.
func (s *SnapshotService) runCaptureRecovered(ctx context.Context, snapshot *entities.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Snapshot capture panicked",
				zap.String("snapshotId", snapshot.ID().String()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("capture panicked: %v", r)
		}
	}()
	return s.runCapture(ctx, snapshot)
}

// runCapture loads the capture set, computes the optional diff, and
// completes the snapshot.
func (s *SnapshotService) runCapture(ctx context.Context, snapshot *entities.Snapshot) error {
	nodes, edges, err := s.loadCaptureSet(ctx, snapshot)
	if err != nil {
		return err
	}

	capturedNodes := make([]entities.CapturedNode, len(nodes))
	for i, node := range nodes {
		capturedNodes[i] = entities.CaptureNode(node)
	}
	capturedEdges := make([]entities.CapturedEdge, len(edges))
	for i, edge := range edges {
		capturedEdges[i] = entities.CaptureEdge(edge)
	}

	checksum, err := snapshots.Checksum(capturedNodes, capturedEdges)
	if err != nil {
		return fmt.Errorf("failed to checksum capture: %w", err)
	}

	var diff *entities.SnapshotDiff
	if snapshot.ComputeDiff() && snapshot.Type() == entities.SnapshotFull {
		base, err := s.latestCompleteFull(ctx, snapshot.ID())
		if err != nil {
			return err
		}
		if base != nil {
			diff = s.differ.Compare(base.Nodes(), base.Edges(), capturedNodes, capturedEdges)
			diff.BaseSnapshotID = base.ID().String()
		}
	}

	if err := snapshot.Complete(capturedNodes, capturedEdges, diff, checksum); err != nil {
		return err
	}
	if err := s.snapshotRepo.Update(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist captured snapshot: %w", err)
	}
	snapshot.MarkPersisted()

	return nil
}

// loadCaptureSet resolves what a capture covers. Full captures take every
// active record; incremental captures take records changed since the last
// complete snapshot, including soft-deleted ones, and fall back to a full
// capture when no baseline exists.
func (s *SnapshotService) loadCaptureSet(ctx context.Context, snapshot *entities.Snapshot) ([]*entities.Node, []*entities.Edge, error) {
	if snapshot.Type() == entities.SnapshotIncremental {
		base, err := s.snapshotRepo.GetLatestComplete(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve incremental baseline: %w", err)
		}
		if base != nil && base.CompletedAt() != nil {
			since := *base.CompletedAt()
			nodes, err := s.nodeRepo.ListChangedSince(ctx, since, s.cfg.SnapshotCaptureLimit)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load changed nodes: %w", err)
			}
			edges, err := s.edgeRepo.ListChangedSince(ctx, since, s.cfg.SnapshotCaptureLimit)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load changed edges: %w", err)
			}
			return nodes, edges, nil
		}
	}

	nodes, err := s.nodeRepo.ListActive(ctx, s.cfg.SnapshotCaptureLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load active nodes: %w", err)
	}
	edges, err := s.edgeRepo.ListActive(ctx, s.cfg.SnapshotCaptureLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load active edges: %w", err)
	}
	return nodes, edges, nil
}

// latestCompleteFull finds the diff baseline: the most recent complete
// full snapshot other than the one being captured.
func (s *SnapshotService) latestCompleteFull(ctx context.Context, exclude valueobjects.SnapshotID) (*entities.Snapshot, error) {
	status := entities.SnapshotComplete
	snapshotType := entities.SnapshotFull
	candidates, _, err := s.snapshotRepo.List(ctx, ports.SnapshotFilter{
		Status:       &status,
		SnapshotType: &snapshotType,
		Limit:        2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve diff baseline: %w", err)
	}

	for _, candidate := range candidates {
		if !candidate.ID().Equals(exclude) {
			return candidate, nil
		}
	}
	return nil, nil
}

func (s *SnapshotService) publishSnapshotEvents(ctx context.Context, snapshot *entities.Snapshot) {
	pending := snapshot.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	if err := s.eventBus.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("Failed to publish snapshot events",
			zap.String("snapshotId", snapshot.ID().String()),
			zap.Int("eventCount", len(pending)),
			zap.Error(err),
		)
		return
	}
	snapshot.MarkEventsAsCommitted()
}

// snapshotStateMap captures a snapshot's lifecycle fields for audit
// payloads. Captured records are deliberately excluded.
func snapshotStateMap(snapshot *entities.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"name":         snapshot.Name(),
		"snapshotType": string(snapshot.Type()),
		"status":       string(snapshot.Status()),
		"computeDiff":  snapshot.ComputeDiff(),
		"nodeCount":    snapshot.NodeCount(),
		"edgeCount":    snapshot.EdgeCount(),
	}
}
