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
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
	"atlas-graph/pkg/utils"
)

// DeleteEdgeHandler handles edge soft-delete commands.
type DeleteEdgeHandler struct {
	uow      ports.UnitOfWork
	edgeRepo ports.EdgeRepository
	eventBus ports.EventBus
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewDeleteEdgeHandler creates a new delete edge handler
func NewDeleteEdgeHandler(
	uow ports.UnitOfWork,
	edgeRepo ports.EdgeRepository,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *DeleteEdgeHandler {
	return &DeleteEdgeHandler{
		uow:      uow,
		edgeRepo: edgeRepo,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle executes the delete edge command. Soft delete is idempotent, so
// version conflicts are retried against a fresh read.
func (h *DeleteEdgeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	deleteCmd, ok := cmd.(commands.DeleteEdgeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	edgeID, err := valueobjects.NewEdgeIDFromString(deleteCmd.EdgeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid edge id: %v", err))
	}

	actor := actorOrSystem(deleteCmd.Actor)

	err = utils.RetryOnConflict(ctx, h.cfg.ConflictRetries, h.cfg.ConflictRetryDelay, func() error {
		edge, err := h.edgeRepo.GetByID(ctx, edgeID)
		if err != nil {
			return err
		}

		before := entities.EdgeStateMap(edge)
		if !edge.Deactivate() {
			return nil
		}

		entry := entities.NewAuditEntry(
			events.EventEdgeDeleted,
			entities.EntityKindEdge,
			edge.ID().String(),
			actor,
			before,
			entities.EdgeStateMap(edge),
		)

		if err := h.uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer h.uow.Rollback()

		if err := h.uow.EdgeRepository().Update(ctx, edge); err != nil {
			return err
		}
		if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		if err := h.uow.Commit(ctx); err != nil {
			return err
		}
		edge.MarkPersisted()

		publishEvents(ctx, h.eventBus, h.logger, edge)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Edge deleted",
		zap.String("edgeId", edgeID.String()),
		zap.String("actor", actor),
	)

	return nil, nil
}
