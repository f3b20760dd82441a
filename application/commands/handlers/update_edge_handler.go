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

// UpdateEdgeHandler handles edge update commands. Endpoints and type are
// immutable; changing them is a delete plus recreate.
type UpdateEdgeHandler struct {
	uow       ports.UnitOfWork
	edgeRepo  ports.EdgeRepository
	validator *validators.EdgeValidator
	eventBus  ports.EventBus
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewUpdateEdgeHandler creates a new update edge handler
func NewUpdateEdgeHandler(
	uow ports.UnitOfWork,
	edgeRepo ports.EdgeRepository,
	validator *validators.EdgeValidator,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *UpdateEdgeHandler {
	return &UpdateEdgeHandler{
		uow:       uow,
		edgeRepo:  edgeRepo,
		validator: validator,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the update edge command and returns the updated edge.
func (h *UpdateEdgeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	updateCmd, ok := cmd.(commands.UpdateEdgeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	edgeID, err := valueobjects.NewEdgeIDFromString(updateCmd.EdgeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid edge id: %v", err))
	}

	if err := h.validator.ValidateUpdate(validators.EdgeUpdateInput{
		Label:       updateCmd.Label,
		Description: updateCmd.Description,
		Weight:      updateCmd.Weight,
		Properties:  updateCmd.Properties,
		Confidence:  updateCmd.Confidence,
	}); err != nil {
		return nil, err
	}

	edge, err := h.edgeRepo.GetByID(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	if updateCmd.ExpectedVersion != nil && edge.Version() != *updateCmd.ExpectedVersion {
		return nil, pkgerrors.VersionMismatch("edge", edgeID.String(), *updateCmd.ExpectedVersion)
	}

	before := entities.EdgeStateMap(edge)

	if err := edge.UpdateWithConfig(entities.EdgeUpdate{
		Label:       updateCmd.Label,
		Description: updateCmd.Description,
		Weight:      updateCmd.Weight,
		Properties:  updateCmd.Properties,
		Confidence:  updateCmd.Confidence,
	}, h.cfg); err != nil {
		return nil, err
	}

	// Nothing changed: report the current state without a version bump.
	if edge.Version() == edge.BaseVersion() {
		return edge, nil
	}

	actor := actorOrSystem(updateCmd.Actor)
	entry := entities.NewAuditEntry(
		events.EventEdgeUpdated,
		entities.EntityKindEdge,
		edge.ID().String(),
		actor,
		before,
		entities.EdgeStateMap(edge),
	)

	if err := h.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer h.uow.Rollback()

	if err := h.uow.EdgeRepository().Update(ctx, edge); err != nil {
		return nil, err
	}
	if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	if err := h.uow.Commit(ctx); err != nil {
		return nil, err
	}
	edge.MarkPersisted()

	publishEvents(ctx, h.eventBus, h.logger, edge)

	h.logger.Info("Edge updated",
		zap.String("edgeId", edge.ID().String()),
		zap.Int("version", edge.Version()),
		zap.String("actor", actor),
	)

	return edge, nil
}
