package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/services"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// ComputeMetricsHandler runs a metrics computation over the live graph.
type ComputeMetricsHandler struct {
	metrics *services.MetricsService
	logger  *zap.Logger
}

// NewComputeMetricsHandler creates a new metrics computation handler
func NewComputeMetricsHandler(metrics *services.MetricsService, logger *zap.Logger) *ComputeMetricsHandler {
	return &ComputeMetricsHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// Handle executes the compute command and returns the finished run.
func (h *ComputeMetricsHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	computeCmd, ok := cmd.(commands.ComputeMetricsCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	nodeTypes := make([]valueobjects.NodeType, 0, len(computeCmd.NodeTypes))
	for _, raw := range computeCmd.NodeTypes {
		nodeType, err := valueobjects.ParseNodeType(raw)
		if err != nil {
			return nil, pkgerrors.UnknownNodeType(raw)
		}
		nodeTypes = append(nodeTypes, nodeType)
	}

	run, err := h.metrics.Compute(ctx, services.ComputeRequest{
		NodeTypes:         nodeTypes,
		ComputeCentrality: computeCmd.ComputeCentrality,
		ComputeClusters:   computeCmd.ComputeClusters,
		Actor:             actorOrSystem(computeCmd.Actor),
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}
