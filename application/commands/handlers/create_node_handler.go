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

// CreateNodeHandler handles node creation commands.
type CreateNodeHandler struct {
	uow       ports.UnitOfWork
	validator *validators.NodeValidator
	embedding ports.EmbeddingProvider
	eventBus  ports.EventBus
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewCreateNodeHandler creates a new create node handler. The embedding
// provider may be nil; nodes are then created without a vector.
func NewCreateNodeHandler(
	uow ports.UnitOfWork,
	validator *validators.NodeValidator,
	embedding ports.EmbeddingProvider,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CreateNodeHandler {
	return &CreateNodeHandler{
		uow:       uow,
		validator: validator,
		embedding: embedding,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the create node command and returns the created node.
func (h *CreateNodeHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	createCmd, ok := cmd.(commands.CreateNodeCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	if err := h.validator.ValidateCreate(validators.NodeInput{
		NodeType:    createCmd.NodeType,
		Label:       createCmd.Label,
		Description: createCmd.Description,
		Tags:        createCmd.Tags,
		Categories:  createCmd.Categories,
		Properties:  createCmd.Properties,
		Confidence:  createCmd.Confidence,
	}); err != nil {
		return nil, err
	}

	nodeType, err := valueobjects.ParseNodeType(createCmd.NodeType)
	if err != nil {
		return nil, pkgerrors.UnknownNodeType(createCmd.NodeType)
	}

	label, err := valueobjects.NewLabel(createCmd.Label)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	node, err := entities.NewNodeWithConfig(nodeType, label, entities.NodeAttributes{
		Description: createCmd.Description,
		Tags:        createCmd.Tags,
		Categories:  createCmd.Categories,
		Properties:  createCmd.Properties,
		Confidence:  createCmd.Confidence,
	}, h.cfg)
	if err != nil {
		return nil, err
	}

	attachEmbedding(ctx, h.embedding, h.cfg.EmbeddingTimeout, h.logger, node)

	actor := actorOrSystem(createCmd.Actor)
	entry := entities.NewAuditEntry(
		events.EventNodeCreated,
		entities.EntityKindNode,
		node.ID().String(),
		actor,
		nil,
		entities.NodeStateMap(node),
	)

	if err := h.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer h.uow.Rollback()

	if err := h.uow.NodeRepository().Save(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}
	if err := h.uow.AuditLogRepository().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}
	if err := h.uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	node.MarkPersisted()

	publishEvents(ctx, h.eventBus, h.logger, node)

	h.logger.Info("Node created",
		zap.String("nodeId", node.ID().String()),
		zap.String("nodeType", nodeType.String()),
		zap.String("actor", actor),
	)

	return node, nil
}
