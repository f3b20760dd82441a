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

// UpdateNodeHandler handles node update commands.
type UpdateNodeHandler struct {
	uow       ports.UnitOfWork
	nodeRepo  ports.NodeRepository
	validator *validators.NodeValidator
	embedding ports.EmbeddingProvider
	eventBus  ports.EventBus
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewUpdateNodeHandler creates a new update node handler. The embedding
// provider may be nil; changed nodes then keep their previous vector.
func NewUpdateNodeHandler(
	uow ports.UnitOfWork,
	nodeRepo ports.NodeRepository,
	validator *validators.NodeValidator,
	embedding ports.EmbeddingProvider,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *UpdateNodeHandler {
	return &UpdateNodeHandler{
		uow:       uow,
		nodeRepo:  nodeRepo,
		validator: validator,
		embedding: embedding,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the update node command and returns the updated node.
func (h *UpdateNodeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	updateCmd, ok := cmd.(commands.UpdateNodeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	nodeID, err := valueobjects.NewNodeIDFromString(updateCmd.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid node id: %v", err))
	}

	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if updateCmd.ExpectedVersion != nil && node.Version() != *updateCmd.ExpectedVersion {
		return nil, pkgerrors.VersionMismatch("node", nodeID.String(), *updateCmd.ExpectedVersion)
	}

	if err := h.validator.ValidateUpdate(node.Type(), validators.NodeUpdateInput{
		Label:       updateCmd.Label,
		Description: updateCmd.Description,
		Tags:        updateCmd.Tags,
		Categories:  updateCmd.Categories,
		Properties:  updateCmd.Properties,
		Confidence:  updateCmd.Confidence,
	}); err != nil {
		return nil, err
	}

	before := entities.NodeStateMap(node)

	update := entities.NodeUpdate{
		Description: updateCmd.Description,
		Tags:        updateCmd.Tags,
		Categories:  updateCmd.Categories,
		Properties:  updateCmd.Properties,
		Confidence:  updateCmd.Confidence,
	}
	if updateCmd.Label != nil {
		label, err := valueobjects.NewLabel(*updateCmd.Label)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
		update.Label = &label
	}

	if err := node.UpdateWithConfig(update, h.cfg); err != nil {
		return nil, err
	}

	// Nothing changed: report the current state without a version bump.
	if node.Version() == node.BaseVersion() {
		return node, nil
	}

	// The text the vector was computed from just changed, so refresh it.
	attachEmbedding(ctx, h.embedding, h.cfg.EmbeddingTimeout, h.logger, node)

	actor := actorOrSystem(updateCmd.Actor)
	entry := entities.NewAuditEntry(
		events.EventNodeUpdated,
		entities.EntityKindNode,
		node.ID().String(),
		actor,
		before,
		entities.NodeStateMap(node),
	)

	if err := h.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer h.uow.Rollback()

	if err := h.uow.NodeRepository().Update(ctx, node); err != nil {
		return nil, err
	}
	if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	if err := h.uow.Commit(ctx); err != nil {
		return nil, err
	}
	node.MarkPersisted()

	publishEvents(ctx, h.eventBus, h.logger, node)

	h.logger.Info("Node updated",
		zap.String("nodeId", node.ID().String()),
		zap.Int("version", node.Version()),
		zap.String("actor", actor),
	)

	return node, nil
}
