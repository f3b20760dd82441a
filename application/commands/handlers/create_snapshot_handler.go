package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// CreateSnapshotHandler registers a snapshot for background capture.
type CreateSnapshotHandler struct {
	snapshots *services.SnapshotService
	logger    *zap.Logger
}

// NewCreateSnapshotHandler creates a new snapshot creation handler
func NewCreateSnapshotHandler(snapshots *services.SnapshotService, logger *zap.Logger) *CreateSnapshotHandler {
	return &CreateSnapshotHandler{
		snapshots: snapshots,
		logger:    logger,
	}
}

// Handle executes the create snapshot command and returns the pending
// snapshot. Capture happens on the snapshot worker; callers poll the
// snapshot's status.
func (h *CreateSnapshotHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	createCmd, ok := cmd.(commands.CreateSnapshotCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	snapshot, err := h.snapshots.Create(ctx, services.CreateSnapshotRequest{
		Name:         createCmd.Name,
		Description:  createCmd.Description,
		SnapshotType: entities.SnapshotType(createCmd.SnapshotType),
		ComputeDiff:  createCmd.ComputeDiff,
		Actor:        actorOrSystem(createCmd.Actor),
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}
