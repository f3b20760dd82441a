package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/config"
)

// GetAuditLogHandler serves paginated audit log reads.
type GetAuditLogHandler struct {
	auditRepo ports.AuditLogRepository
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewGetAuditLogHandler creates a new GetAuditLogHandler
func NewGetAuditLogHandler(auditRepo ports.AuditLogRepository, cfg *config.DomainConfig, logger *zap.Logger) *GetAuditLogHandler {
	return &GetAuditLogHandler{
		auditRepo: auditRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle executes the query
func (h *GetAuditLogHandler) Handle(ctx context.Context, query queries.GetAuditLogQuery) (*queries.GetAuditLogResult, error) {
	limit := clampLimit(query.Limit, h.cfg)

	entries, total, err := h.auditRepo.List(ctx, ports.AuditFilter{
		EventTypes: query.EventTypes,
		NodeID:     query.NodeID,
		EdgeID:     query.EdgeID,
		EntityID:   query.EntityID,
		Since:      query.Since,
		Until:      query.Until,
		Limit:      limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &queries.GetAuditLogResult{
		Logs:   entries,
		Total:  total,
		Limit:  limit,
		Offset: query.Offset,
	}, nil
}
