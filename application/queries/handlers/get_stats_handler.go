package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
)

// recentLimit caps the recent-activity lists on the stats overview.
const recentLimit = 5

// GetStatsHandler serves the operational overview.
type GetStatsHandler struct {
	nodeRepo     ports.NodeRepository
	edgeRepo     ports.EdgeRepository
	snapshotRepo ports.SnapshotRepository
	auditRepo    ports.AuditLogRepository
	logger       *zap.Logger
}

// NewGetStatsHandler creates a new GetStatsHandler
func NewGetStatsHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	snapshotRepo ports.SnapshotRepository,
	auditRepo ports.AuditLogRepository,
	logger *zap.Logger,
) *GetStatsHandler {
	return &GetStatsHandler{
		nodeRepo:     nodeRepo,
		edgeRepo:     edgeRepo,
		snapshotRepo: snapshotRepo,
		auditRepo:    auditRepo,
		logger:       logger,
	}
}

// Handle executes the query
func (h *GetStatsHandler) Handle(ctx context.Context, query queries.GetStatsQuery) (*queries.GetStatsResult, error) {
	nodesByType, err := h.nodeRepo.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	edgesByType, err := h.edgeRepo.CountByType(ctx)
	if err != nil {
		return nil, err
	}

	result := &queries.GetStatsResult{
		NodesByType: nodesByType,
		EdgesByType: edgesByType,
	}
	for _, count := range nodesByType {
		result.Totals.TotalNodes += count
	}
	for _, count := range edgesByType {
		result.Totals.TotalEdges += count
	}

	active := true
	recentNodes, activeNodes, err := h.nodeRepo.List(ctx, ports.NodeFilter{IsActive: &active, Limit: recentLimit})
	if err != nil {
		return nil, err
	}
	result.Totals.ActiveNodes = activeNodes
	result.RecentNodes = queries.NodeViewsFrom(recentNodes)

	_, activeEdges, err := h.edgeRepo.List(ctx, ports.EdgeFilter{IsActive: &active, Limit: 1})
	if err != nil {
		return nil, err
	}
	result.Totals.ActiveEdges = activeEdges

	recentSnapshots, err := h.snapshotRepo.ListRecent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	result.RecentSnapshots = make([]queries.SnapshotView, 0, len(recentSnapshots))
	for _, snapshot := range recentSnapshots {
		result.RecentSnapshots = append(result.RecentSnapshots, queries.SnapshotViewFrom(snapshot, false))
	}

	_, snapshotTotal, err := h.snapshotRepo.List(ctx, ports.SnapshotFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	result.Totals.Snapshots = snapshotTotal

	_, auditTotal, err := h.auditRepo.List(ctx, ports.AuditFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	result.Totals.AuditEvents = auditTotal

	h.logger.Debug("Stats computed",
		zap.Int("totalNodes", result.Totals.TotalNodes),
		zap.Int("totalEdges", result.Totals.TotalEdges),
	)

	return result, nil
}
