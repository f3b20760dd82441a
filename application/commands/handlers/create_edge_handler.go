package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/validators"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

// CreateEdgeHandler handles edge creation commands. Both endpoints must
// resolve to active nodes at creation time; they are not re-validated
// afterward.
type CreateEdgeHandler struct {
	uow       ports.UnitOfWork
	nodeRepo  ports.NodeRepository
	validator *validators.EdgeValidator
	eventBus  ports.EventBus
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewCreateEdgeHandler creates a new create edge handler
func NewCreateEdgeHandler(
	uow ports.UnitOfWork,
	nodeRepo ports.NodeRepository,
	validator *validators.EdgeValidator,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CreateEdgeHandler {
	return &CreateEdgeHandler{
		uow:       uow,
		nodeRepo:  nodeRepo,
		validator: validator,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the create edge command and returns the created edge.
func (h *CreateEdgeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	createCmd, ok := cmd.(commands.CreateEdgeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	if err := h.validator.ValidateCreate(validators.EdgeInput{
		SourceNodeID:    createCmd.SourceNodeID,
		TargetNodeID:    createCmd.TargetNodeID,
		EdgeType:        createCmd.EdgeType,
		Label:           createCmd.Label,
		Description:     createCmd.Description,
		Weight:          createCmd.Weight,
		IsBidirectional: createCmd.IsBidirectional,
		Properties:      createCmd.Properties,
		Confidence:      createCmd.Confidence,
	}); err != nil {
		return nil, err
	}

	sourceID, err := valueobjects.NewNodeIDFromString(createCmd.SourceNodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid source node id: %v", err))
	}
	targetID, err := valueobjects.NewNodeIDFromString(createCmd.TargetNodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid target node id: %v", err))
	}

	if err := h.requireActiveNode(ctx, sourceID, "source"); err != nil {
		return nil, err
	}
	if err := h.requireActiveNode(ctx, targetID, "target"); err != nil {
		return nil, err
	}

	edgeType, err := valueobjects.ParseEdgeType(createCmd.EdgeType)
	if err != nil {
		return nil, pkgerrors.UnknownEdgeType(createCmd.EdgeType)
	}

	edge, err := entities.NewEdgeWithConfig(sourceID, targetID, edgeType, entities.EdgeAttributes{
		Label:           createCmd.Label,
		Description:     createCmd.Description,
		Weight:          createCmd.Weight,
		IsBidirectional: createCmd.IsBidirectional,
		Properties:      createCmd.Properties,
		Confidence:      createCmd.Confidence,
	}, h.cfg)
	if err != nil {
		return nil, err
	}

	actor := actorOrSystem(createCmd.Actor)
	entry := entities.NewAuditEntry(
		events.EventEdgeCreated,
		entities.EntityKindEdge,
		edge.ID().String(),
		actor,
		nil,
		entities.EdgeStateMap(edge),
	)

	if err := h.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer h.uow.Rollback()

	if err := h.uow.EdgeRepository().Save(ctx, edge); err != nil {
		return nil, fmt.Errorf("failed to save edge: %w", err)
	}
	if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	if err := h.uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	edge.MarkPersisted()

	publishEvents(ctx, h.eventBus, h.logger, edge)

	h.logger.Info("Edge created",
		zap.String("edgeId", edge.ID().String()),
		zap.String("edgeType", edgeType.String()),
		zap.String("sourceNodeId", sourceID.String()),
		zap.String("targetNodeId", targetID.String()),
		zap.String("actor", actor),
	)

	return edge, nil
}

// requireActiveNode resolves an endpoint and rejects missing or inactive
// nodes as validation failures, per the edge creation contract.
func (h *CreateEdgeHandler) requireActiveNode(ctx context.Context, id valueobjects.NodeID, role string) error {
	node, err := h.nodeRepo.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return pkgerrors.EndpointInvalid(id.String(), role+" node does not exist")
		}
		return err
	}
	if !node.IsActive() {
		return pkgerrors.EndpointInvalid(id.String(), role+" node is inactive")
	}
	return nil
}
