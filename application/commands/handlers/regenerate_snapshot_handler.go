package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/services"
	pkgerrors "atlas-graph/pkg/errors"
)

// RegenerateSnapshotHandler queues a fresh capture for an existing
// snapshot.
type RegenerateSnapshotHandler struct {
	snapshots *services.SnapshotService
	logger    *zap.Logger
}

// NewRegenerateSnapshotHandler creates a new snapshot regeneration handler
func NewRegenerateSnapshotHandler(snapshots *services.SnapshotService, logger *zap.Logger) *RegenerateSnapshotHandler {
	return &RegenerateSnapshotHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// Handle executes the regenerate command and returns the snapshot reset
// to pending. Snapshots that are pending or computing are rejected as
// busy rather than captured twice.
func (h *RegenerateSnapshotHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	regenCmd, ok := cmd.(commands.RegenerateSnapshotCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	snapshot, err := h.snapshots.Regenerate(ctx, regenCmd.SnapshotID, actorOrSystem(regenCmd.Actor))
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}
