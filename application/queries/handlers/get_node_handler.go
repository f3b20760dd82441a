package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// GetNodeHandler serves single-node reads.
type GetNodeHandler struct {
	nodeRepo ports.NodeRepository
	logger   *zap.Logger
}

// NewGetNodeHandler creates a new GetNodeHandler
func NewGetNodeHandler(nodeRepo ports.NodeRepository, logger *zap.Logger) *GetNodeHandler {
	return &GetNodeHandler{
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// Handle executes the query
func (h *GetNodeHandler) Handle(ctx context.Context, query queries.GetNodeQuery) (*queries.NodeView, error) {
	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid node id").WithDetail("nodeId", query.NodeID)
	}

	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	view := queries.NodeViewFrom(node)
	return &view, nil
}
