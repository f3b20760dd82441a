package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/valueobjects"
)

// ListNodesHandler serves paginated node listings.
type ListNodesHandler struct {
	nodeRepo ports.NodeRepository
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewListNodesHandler creates a new ListNodesHandler
func NewListNodesHandler(nodeRepo ports.NodeRepository, cfg *config.DomainConfig, logger *zap.Logger) *ListNodesHandler {
	return &ListNodesHandler{
		nodeRepo: nodeRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle executes the query
func (h *ListNodesHandler) Handle(ctx context.Context, query queries.ListNodesQuery) (*queries.ListNodesResult, error) {
	limit := clampLimit(query.Limit, h.cfg)

	filter := ports.NodeFilter{
		NodeTypes:     parseNodeTypes(query.NodeTypes),
		Tags:          query.Tags,
		Categories:    query.Categories,
		Search:        query.Search,
		MinConfidence: query.MinConfidence,
		IsActive:      query.IsActive,
		Limit:         limit,
		Offset:        query.Offset,
	}

	nodes, total, err := h.nodeRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &queries.ListNodesResult{
		Nodes:  queries.NodeViewsFrom(nodes),
		Total:  total,
		Limit:  limit,
		Offset: query.Offset,
	}, nil
}

// clampLimit applies the default page size to unset limits and the maximum
// page size to oversized ones.
func clampLimit(limit int, cfg *config.DomainConfig) int {
	if limit <= 0 {
		return cfg.DefaultPageSize
	}
	if limit > cfg.MaxPageSize {
		return cfg.MaxPageSize
	}
	return limit
}

// parseNodeTypes converts pre-validated type names. Unknown names were
// rejected by Validate, so parse failures cannot happen here.
func parseNodeTypes(raw []string) []valueobjects.NodeType {
	if len(raw) == 0 {
		return nil
	}
	types := make([]valueobjects.NodeType, 0, len(raw))
	for _, r := range raw {
		if t, err := valueobjects.ParseNodeType(r); err == nil {
			types = append(types, t)
		}
	}
	return types
}

func parseEdgeTypes(raw []string) []valueobjects.EdgeType {
	if len(raw) == 0 {
		return nil
	}
	types := make([]valueobjects.EdgeType, 0, len(raw))
	for _, r := range raw {
		if t, err := valueobjects.ParseEdgeType(r); err == nil {
			types = append(types, t)
		}
	}
	return types
}
