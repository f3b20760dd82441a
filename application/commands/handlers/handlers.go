// Package handlers implements the command side of the application layer.
// Each handler validates its command, applies the mutation through the
// domain entities, persists entity and audit entry in one unit of work,
// and publishes the resulting domain events.
package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/events"
)

// systemActor is recorded when a command carries no actor context.
const systemActor = "system"

func actorOrSystem(actor string) string {
	if actor == "" {
		return systemActor
	}
	return actor
}

type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// attachEmbedding computes and stores the node's embedding vector when a
// provider is configured. Best-effort: failures are logged and the write
// proceeds without a vector; the backfill command picks up stragglers.
func attachEmbedding(ctx context.Context, provider ports.EmbeddingProvider, timeout time.Duration, logger *zap.Logger, node *entities.Node) {
	if provider == nil || !provider.IsAvailable(ctx) {
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vector, err := provider.Embed(embedCtx, embeddingText(node))
	if err != nil {
		logger.Warn("Failed to embed node",
			zap.String("nodeId", node.ID().String()),
			zap.Error(err),
		)
		return
	}
	if err := node.AttachEmbedding(vector); err != nil {
		logger.Warn("Failed to attach embedding",
			zap.String("nodeId", node.ID().String()),
			zap.Error(err),
		)
	}
}

// publishEvents pushes uncommitted events to the bus. Publish failures
// are logged and swallowed: the outbox processor re-delivers from the
// audit log, so losing the fast path is not losing the event.
func publishEvents(ctx context.Context, eventBus ports.EventBus, logger *zap.Logger, sources ...eventSource) {
	for _, src := range sources {
		pending := src.GetUncommittedEvents()
		if len(pending) == 0 {
			continue
		}
		if err := eventBus.PublishBatch(ctx, pending); err != nil {
			logger.Warn("Failed to publish domain events",
				zap.Int("eventCount", len(pending)),
				zap.Error(err),
			)
			continue
		}
		src.MarkEventsAsCommitted()
	}
}
