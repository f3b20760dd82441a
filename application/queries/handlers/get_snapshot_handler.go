package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// GetSnapshotHandler serves a single snapshot with its captured payload.
type GetSnapshotHandler struct {
	snapshotRepo ports.SnapshotRepository
	logger       *zap.Logger
}

// NewGetSnapshotHandler creates a new GetSnapshotHandler
func NewGetSnapshotHandler(snapshotRepo ports.SnapshotRepository, logger *zap.Logger) *GetSnapshotHandler {
	return &GetSnapshotHandler{
		snapshotRepo: snapshotRepo,
		logger:       logger,
	}
}

// Handle executes the query
func (h *GetSnapshotHandler) Handle(ctx context.Context, query queries.GetSnapshotQuery) (*queries.SnapshotView, error) {
	snapshotID, err := valueobjects.NewSnapshotIDFromString(query.SnapshotID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid snapshot id").WithDetail("snapshotId", query.SnapshotID)
	}

	snapshot, err := h.snapshotRepo.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	view := queries.SnapshotViewFrom(snapshot, true)
	return &view, nil
}
