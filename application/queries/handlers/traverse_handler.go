package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/valueobjects"
)

// TraverseHandler runs breadth-first traversals through the traversal
// service and maps the result onto the wire shape.
type TraverseHandler struct {
	traversal *services.TraversalService
	logger    *zap.Logger
}

// NewTraverseHandler creates a new TraverseHandler
func NewTraverseHandler(traversal *services.TraversalService, logger *zap.Logger) *TraverseHandler {
	return &TraverseHandler{
		traversal: traversal,
		logger:    logger,
	}
}

// Handle executes the query
func (h *TraverseHandler) Handle(ctx context.Context, query queries.TraverseQuery) (*queries.TraverseResult, error) {
	result, err := h.traversal.Traverse(ctx, services.TraversalRequest{
		StartNodeID: query.StartNodeID,
		Direction:   valueobjects.Direction(query.Direction),
		MaxDepth:    query.MaxDepth,
		NodeTypes:   parseNodeTypes(query.NodeTypes),
		EdgeTypes:   parseEdgeTypes(query.EdgeTypes),
		Limit:       query.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &queries.TraverseResult{
		StartNode:         queries.NodeViewFrom(result.StartNode),
		VisitedNodes:      queries.NodeViewsFrom(result.VisitedNodes),
		Paths:             result.Paths,
		TotalNodesVisited: result.TotalNodesVisited,
		Depth:             result.Depth,
	}, nil
}
