package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/valueobjects"
)

// ExplainPathHandler runs path searches with reasoning enrichment.
type ExplainPathHandler struct {
	pathfinder *services.PathFinderService
	logger     *zap.Logger
}

// NewExplainPathHandler creates a new ExplainPathHandler
func NewExplainPathHandler(pathfinder *services.PathFinderService, logger *zap.Logger) *ExplainPathHandler {
	return &ExplainPathHandler{
		pathfinder: pathfinder,
		logger:     logger,
	}
}

// Handle executes the query
func (h *ExplainPathHandler) Handle(ctx context.Context, query queries.ExplainPathQuery) (*queries.ExplainPathResult, error) {
	explained, err := h.pathfinder.ExplainPath(ctx, services.PathRequest{
		StartNodeID: query.StartNodeID,
		EndNodeID:   query.EndNodeID,
		MaxDepth:    query.MaxDepth,
		Direction:   valueobjects.Direction(query.Direction),
	}, true)
	if err != nil {
		return nil, err
	}

	return &queries.ExplainPathResult{
		Path:        pathViewFrom(explained.Path),
		Explanation: explained.Explanation,
		Reasoning:   explained.Reasoning,
		Confidence:  explained.Confidence,
		Degraded:    explained.Degraded,
	}, nil
}
