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

// DeleteNodeHandler handles node soft-delete commands. Deletion does not
// cascade to edges: edges touching an inactive node stay stored and drop
// out of default traversal.
type DeleteNodeHandler struct {
	uow      ports.UnitOfWork
	nodeRepo ports.NodeRepository
	eventBus ports.EventBus
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewDeleteNodeHandler creates a new delete node handler
func NewDeleteNodeHandler(
	uow ports.UnitOfWork,
	nodeRepo ports.NodeRepository,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *DeleteNodeHandler {
	return &DeleteNodeHandler{
		uow:      uow,
		nodeRepo: nodeRepo,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle executes the delete node command. Soft delete is idempotent, so
// version conflicts are retried against a fresh read.
func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	deleteCmd, ok := cmd.(commands.DeleteNodeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	nodeID, err := valueobjects.NewNodeIDFromString(deleteCmd.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid node id: %v", err))
	}

	actor := actorOrSystem(deleteCmd.Actor)

	err = utils.RetryOnConflict(ctx, h.cfg.ConflictRetries, h.cfg.ConflictRetryDelay, func() error {
		node, err := h.nodeRepo.GetByID(ctx, nodeID)
		if err != nil {
			return err
		}

		before := entities.NodeStateMap(node)
		if !node.Deactivate() {
			return nil
		}

		entry := entities.NewAuditEntry(
			events.EventNodeDeleted,
			entities.EntityKindNode,
			node.ID().String(),
			actor,
			before,
			entities.NodeStateMap(node),
		)

		if err := h.uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer h.uow.Rollback()

		if err := h.uow.NodeRepository().Update(ctx, node); err != nil {
			return err
		}
		if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
		if err := h.uow.Commit(ctx); err != nil {
			return err
		}
		node.MarkPersisted()

		publishEvents(ctx, h.eventBus, h.logger, node)
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Node deleted",
		zap.String("nodeId", nodeID.String()),
		zap.String("actor", actor),
	)

	return nil, nil
}
