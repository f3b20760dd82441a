package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
)

// ListSnapshotsHandler serves paginated snapshot listings.
type ListSnapshotsHandler struct {
	snapshotRepo ports.SnapshotRepository
	cfg          *config.DomainConfig
	logger       *zap.Logger
}

// NewListSnapshotsHandler creates a new ListSnapshotsHandler
func NewListSnapshotsHandler(snapshotRepo ports.SnapshotRepository, cfg *config.DomainConfig, logger *zap.Logger) *ListSnapshotsHandler {
	return &ListSnapshotsHandler{
		snapshotRepo: snapshotRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// Handle executes the query
func (h *ListSnapshotsHandler) Handle(ctx context.Context, query queries.ListSnapshotsQuery) (*queries.ListSnapshotsResult, error) {
	limit := clampLimit(query.Limit, h.cfg)

	filter := ports.SnapshotFilter{
		Limit:  limit,
		Offset: query.Offset,
	}
	if query.Status != "" {
		status := entities.SnapshotStatus(query.Status)
		filter.Status = &status
	}
	if query.SnapshotType != "" {
		snapshotType := entities.SnapshotType(query.SnapshotType)
		filter.SnapshotType = &snapshotType
	}

	snapshots, total, err := h.snapshotRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]queries.SnapshotView, 0, len(snapshots))
	for _, snapshot := range snapshots {
		views = append(views, queries.SnapshotViewFrom(snapshot, false))
	}

	return &queries.ListSnapshotsResult{
		Snapshots: views,
		Total:     total,
		Limit:     limit,
		Offset:    query.Offset,
	}, nil
}
