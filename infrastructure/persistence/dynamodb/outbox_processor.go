package dynamodb

import (
	"context"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/events"
)

// OutboxProcessor drains unpublished audit entries to the event
// publisher on a fixed interval. Publishing is at-least-once: an entry
// stays on the pending index until MarkPublished lands, so consumers
// must tolerate the occasional duplicate.
type OutboxProcessor struct {
	auditLog  ports.AuditLogRepository
	publisher ports.EventPublisher
	logger    *zap.Logger

	batchSize     int
	drainInterval time.Duration

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	auditLog ports.AuditLogRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		auditLog:      auditLog,
		publisher:     publisher,
		logger:        logger,
		batchSize:     50,
		drainInterval: 5 * time.Second,
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}
}

// Start begins draining in the background.
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int("batchSize", op.batchSize),
		zap.Duration("interval", op.drainInterval),
	)
	go op.drainLoop(ctx)
}

// Stop stops the processor and waits for the current drain to finish.
func (op *OutboxProcessor) Stop() {
	close(op.stopChan)
	<-op.stoppedChan
	op.logger.Info("Outbox processor stopped")
}

func (op *OutboxProcessor) drainLoop(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(op.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-op.stopChan:
			return
		case <-ticker.C:
			if err := op.Drain(ctx); err != nil {
				op.logger.Error("Outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of pending entries. Per-entry publish
// failures are recorded and retried on the next pass; only a failure to
// read the outbox itself is returned.
func (op *OutboxProcessor) Drain(ctx context.Context) error {
	pending, err := op.auditLog.ListPendingPublish(ctx, op.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	published := 0
	for _, entry := range pending {
		event := events.NewAuditRecorded(
			entry.ID,
			entry.EventType,
			string(entry.EntityKind),
			entry.EntityID,
			entry.NodeID,
			entry.EdgeID,
			entry.Actor,
			entry.Before,
			entry.After,
			entry.Metadata,
			entry.Timestamp,
		)

		if err := op.publisher.Publish(ctx, event); err != nil {
			if markErr := op.auditLog.MarkPublishFailed(ctx, entry.ID, err.Error()); markErr != nil {
				op.logger.Error("Failed to record publish failure",
					zap.String("entryId", entry.ID),
					zap.Error(markErr),
				)
			}
			continue
		}

		if err := op.auditLog.MarkPublished(ctx, entry.ID); err != nil {
			op.logger.Error("Failed to mark entry published",
				zap.String("entryId", entry.ID),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	op.logger.Debug("Outbox batch drained",
		zap.Int("pending", len(pending)),
		zap.Int("published", published),
	)
	return nil
}
