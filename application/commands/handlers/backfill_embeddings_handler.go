package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

const defaultBackfillBatchSize = 25

// BackfillEmbeddingsHandler attaches embedding vectors to active nodes
// that lack one. The run is best-effort per batch: an embedding or write
// failure counts the affected nodes as failed and the run continues, so
// one bad batch never voids the rest.
type BackfillEmbeddingsHandler struct {
	nodeRepo  ports.NodeRepository
	embedding ports.EmbeddingProvider
	auditRepo ports.AuditLogRepository
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewBackfillEmbeddingsHandler creates a new backfill handler
func NewBackfillEmbeddingsHandler(
	nodeRepo ports.NodeRepository,
	embedding ports.EmbeddingProvider,
	auditRepo ports.AuditLogRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *BackfillEmbeddingsHandler {
	return &BackfillEmbeddingsHandler{
		nodeRepo:  nodeRepo,
		embedding: embedding,
		auditRepo: auditRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the backfill command and returns the run's counters.
func (h *BackfillEmbeddingsHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	backfillCmd, ok := cmd.(commands.BackfillEmbeddingsCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	nodeTypes := make([]valueobjects.NodeType, 0, len(backfillCmd.NodeTypes))
	for _, raw := range backfillCmd.NodeTypes {
		nodeType, err := valueobjects.ParseNodeType(raw)
		if err != nil {
			return nil, pkgerrors.UnknownNodeType(raw)
		}
		nodeTypes = append(nodeTypes, nodeType)
	}

	batchSize := backfillCmd.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}

	nodes, err := h.nodeRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load active nodes: %w", err)
	}

	result := &commands.BackfillEmbeddingsResult{}
	var missing []*entities.Node
	for _, node := range nodes {
		if !nodeTypeAllowed(node.Type(), nodeTypes) {
			continue
		}
		result.NodesScanned++
		if node.HasEmbedding() {
			result.NodesSkipped++
			continue
		}
		missing = append(missing, node)
	}

	if backfillCmd.DryRun || len(missing) == 0 {
		h.logger.Info("Embedding backfill scan completed",
			zap.Bool("dryRun", backfillCmd.DryRun),
			zap.Int("nodesScanned", result.NodesScanned),
			zap.Int("nodesMissingEmbedding", len(missing)),
		)
		return result, nil
	}

	if h.embedding == nil || !h.embedding.IsAvailable(ctx) {
		return nil, pkgerrors.ProviderUnavailable("embedding", nil)
	}

	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, node := range batch {
			texts[i] = embeddingText(node)
		}

		embedCtx, cancel := context.WithTimeout(ctx, h.cfg.EmbeddingTimeout)
		vectors, err := h.embedding.EmbedBatch(embedCtx, texts)
		cancel()
		if err != nil || len(vectors) != len(batch) {
			result.NodesFailed += len(batch)
			h.logger.Warn("Failed to embed batch",
				zap.Int("batchStart", start),
				zap.Int("batchSize", len(batch)),
				zap.Error(err),
			)
			continue
		}

		for i, node := range batch {
			if err := node.AttachEmbedding(vectors[i]); err != nil {
				result.NodesFailed++
				continue
			}
			if err := h.nodeRepo.Update(ctx, node); err != nil {
				result.NodesFailed++
				h.logger.Warn("Failed to persist embedding",
					zap.String("nodeId", node.ID().String()),
					zap.Error(err),
				)
				continue
			}
			node.MarkPersisted()
			result.NodesEmbedded++
		}
	}

	entry := entities.NewAuditEntry(
		events.EventEmbeddingsBackfilled,
		entities.EntityKindMaintenance,
		uuid.New().String(),
		actorOrSystem(backfillCmd.Actor),
		nil,
		entities.StateMap(result),
	)
	if err := h.auditRepo.Append(ctx, entry); err != nil {
		h.logger.Warn("Failed to append backfill audit entry", zap.Error(err))
	}

	h.logger.Info("Embedding backfill completed",
		zap.Int("nodesScanned", result.NodesScanned),
		zap.Int("nodesEmbedded", result.NodesEmbedded),
		zap.Int("nodesSkipped", result.NodesSkipped),
		zap.Int("nodesFailed", result.NodesFailed),
	)

	return result, nil
}

// embeddingText composes the text representation a node is embedded from.
func embeddingText(node *entities.Node) string {
	parts := []string{node.Label().String()}
	if node.Description() != "" {
		parts = append(parts, node.Description())
	}
	if tags := node.Tags(); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n")
}

func nodeTypeAllowed(nodeType valueobjects.NodeType, filter []valueobjects.NodeType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if t == nodeType {
			return true
		}
	}
	return false
}
