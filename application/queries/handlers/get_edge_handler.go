package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// GetEdgeWithNodesHandler serves an edge with both endpoint nodes resolved.
type GetEdgeWithNodesHandler struct {
	edgeRepo ports.EdgeRepository
	nodeRepo ports.NodeRepository
	logger   *zap.Logger
}

// NewGetEdgeWithNodesHandler creates a new GetEdgeWithNodesHandler
func NewGetEdgeWithNodesHandler(
	edgeRepo ports.EdgeRepository,
	nodeRepo ports.NodeRepository,
	logger *zap.Logger,
) *GetEdgeWithNodesHandler {
	return &GetEdgeWithNodesHandler{
		edgeRepo: edgeRepo,
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// Handle executes the query
func (h *GetEdgeWithNodesHandler) Handle(ctx context.Context, query queries.GetEdgeWithNodesQuery) (*queries.GetEdgeWithNodesResult, error) {
	edgeID, err := valueobjects.NewEdgeIDFromString(query.EdgeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid edge id").WithDetail("edgeId", query.EdgeID)
	}

	edge, err := h.edgeRepo.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	// Soft-deleted edges are gone from the caller's point of view.
	if !edge.IsActive() {
		return nil, pkgerrors.EdgeNotFound(query.EdgeID)
	}

	source, err := h.nodeRepo.GetByID(ctx, edge.SourceID())
	if err != nil {
		return nil, err
	}
	target := source
	if !edge.IsSelfLoop() {
		target, err = h.nodeRepo.GetByID(ctx, edge.TargetID())
		if err != nil {
			return nil, err
		}
	}

	return &queries.GetEdgeWithNodesResult{
		Edge:       queries.EdgeViewFrom(edge),
		SourceNode: queries.NodeViewFrom(source),
		TargetNode: queries.NodeViewFrom(target),
	}, nil
}
