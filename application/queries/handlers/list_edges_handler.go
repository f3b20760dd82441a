package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// ListEdgesHandler serves paginated edge listings.
type ListEdgesHandler struct {
	edgeRepo ports.EdgeRepository
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewListEdgesHandler creates a new ListEdgesHandler
func NewListEdgesHandler(edgeRepo ports.EdgeRepository, cfg *config.DomainConfig, logger *zap.Logger) *ListEdgesHandler {
	return &ListEdgesHandler{
		edgeRepo: edgeRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle executes the query
func (h *ListEdgesHandler) Handle(ctx context.Context, query queries.ListEdgesQuery) (*queries.ListEdgesResult, error) {
	limit := clampLimit(query.Limit, h.cfg)

	filter := ports.EdgeFilter{
		EdgeTypes: parseEdgeTypes(query.EdgeTypes),
		IsActive:  query.IsActive,
		Limit:     limit,
		Offset:    query.Offset,
	}
	if query.NodeID != "" {
		nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid node id").WithDetail("nodeId", query.NodeID)
		}
		filter.NodeID = &nodeID
	}

	edges, total, err := h.edgeRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &queries.ListEdgesResult{
		Edges:  queries.EdgeViewsFrom(edges),
		Total:  total,
		Limit:  limit,
		Offset: query.Offset,
	}, nil
}
