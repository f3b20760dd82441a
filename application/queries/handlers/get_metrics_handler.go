package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/entities"
)

// GetMetricsHandler serves the latest graph metrics summary.
type GetMetricsHandler struct {
	metrics *services.MetricsService
	logger  *zap.Logger
}

// NewGetMetricsHandler creates a new GetMetricsHandler
func NewGetMetricsHandler(metrics *services.MetricsService, logger *zap.Logger) *GetMetricsHandler {
	return &GetMetricsHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// Handle executes the query
func (h *GetMetricsHandler) Handle(ctx context.Context, query queries.GetMetricsQuery) (*entities.GraphMetrics, error) {
	return h.metrics.Latest(ctx)
}
