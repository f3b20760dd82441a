package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/valueobjects"
)

// FindPathHandler runs bounded shortest-path searches.
type FindPathHandler struct {
	pathfinder *services.PathFinderService
	logger     *zap.Logger
}

// NewFindPathHandler creates a new FindPathHandler
func NewFindPathHandler(pathfinder *services.PathFinderService, logger *zap.Logger) *FindPathHandler {
	return &FindPathHandler{
		pathfinder: pathfinder,
		logger:     logger,
	}
}

// Handle executes the query
func (h *FindPathHandler) Handle(ctx context.Context, query queries.FindPathQuery) (*queries.FindPathResult, error) {
	path, err := h.pathfinder.FindPath(ctx, services.PathRequest{
		StartNodeID: query.StartNodeID,
		EndNodeID:   query.EndNodeID,
		MaxDepth:    query.MaxDepth,
		Direction:   valueobjects.Direction(query.Direction),
	})
	if err != nil {
		return nil, err
	}

	return &queries.FindPathResult{Path: pathViewFrom(path)}, nil
}

// pathViewFrom maps a service path onto the wire shape; a nil path stays
// nil so the response body carries an explicit null.
func pathViewFrom(path *services.Path) *queries.PathView {
	if path == nil {
		return nil
	}
	return &queries.PathView{
		Nodes:       queries.NodeViewsFrom(path.Nodes),
		Edges:       queries.EdgeViewsFrom(path.Edges),
		TotalWeight: path.TotalWeight,
		Length:      path.Length(),
	}
}
