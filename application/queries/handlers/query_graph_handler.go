package handlers

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

// QueryGraphHandler serves ad-hoc filtered subgraph reads.
type QueryGraphHandler struct {
	nodeRepo ports.NodeRepository
	edgeRepo ports.EdgeRepository
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewQueryGraphHandler creates a new QueryGraphHandler
func NewQueryGraphHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *QueryGraphHandler {
	return &QueryGraphHandler{
		nodeRepo: nodeRepo,
		edgeRepo: edgeRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle executes the query
func (h *QueryGraphHandler) Handle(ctx context.Context, query queries.QueryGraphQuery) (*queries.QueryGraphResult, error) {
	started := time.Now()

	limit := clampLimit(query.Limit, h.cfg)
	filter := ports.NodeFilter{
		NodeTypes:     parseNodeTypes(query.NodeTypes),
		Tags:          query.Tags,
		Categories:    query.Categories,
		Search:        query.Search,
		MinConfidence: query.MinConfidence,
		Limit:         limit,
		Offset:        query.Offset,
	}
	if !query.IncludeInactive {
		active := true
		filter.IsActive = &active
	}

	nodes, total, err := h.nodeRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	edges, err := h.connectingEdges(ctx, nodes, query.EdgeTypes)
	if err != nil {
		return nil, err
	}

	result := &queries.QueryGraphResult{
		Nodes:           queries.NodeViewsFrom(nodes),
		Edges:           queries.EdgeViewsFrom(edges),
		Total:           total,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}

	if query.GroupBy != "" {
		aggregations, err := h.aggregate(ctx, filter, query.GroupBy)
		if err != nil {
			return nil, err
		}
		result.Aggregations = aggregations
	}

	h.logger.Debug("Graph query executed",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.Int("total", total),
		zap.String("groupBy", query.GroupBy),
		zap.Int64("tookMs", result.ExecutionTimeMs),
	)

	return result, nil
}

// connectingEdges returns the active edges with both endpoints inside the
// returned node page, so the payload renders as a standalone graph.
func (h *QueryGraphHandler) connectingEdges(ctx context.Context, nodes []*entities.Node, edgeTypes []string) ([]*entities.Edge, error) {
	if len(nodes) == 0 {
		return []*entities.Edge{}, nil
	}

	ids := make([]valueobjects.NodeID, 0, len(nodes))
	inPage := make(map[valueobjects.NodeID]bool, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID())
		inPage[node.ID()] = true
	}

	incident, err := h.edgeRepo.GetByNodeIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	allowed := parseEdgeTypes(edgeTypes)
	edges := make([]*entities.Edge, 0, len(incident))
	for _, edge := range incident {
		if !inPage[edge.SourceID()] || !inPage[edge.TargetID()] {
			continue
		}
		if len(allowed) > 0 && !edgeTypeIn(edge.Type(), allowed) {
			continue
		}
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt().Equal(edges[j].CreatedAt()) {
			return edges[i].CreatedAt().Before(edges[j].CreatedAt())
		}
		return edges[i].ID().String() < edges[j].ID().String()
	})
	return edges, nil
}

// aggregate counts every match per group value, not just the returned
// page; the pagination window narrows nodes[], never the counts.
func (h *QueryGraphHandler) aggregate(ctx context.Context, filter ports.NodeFilter, groupBy string) (map[string]int, error) {
	unpaged := filter
	unpaged.Limit = 0
	unpaged.Offset = 0

	matches, _, err := h.nodeRepo.List(ctx, unpaged)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, node := range matches {
		switch groupBy {
		case queries.GroupByNodeType:
			counts[node.Type().String()]++
		case queries.GroupByCluster:
			if node.ClusterID() != "" {
				counts[node.ClusterID()]++
			}
		case queries.GroupByCategory:
			for _, category := range node.Categories() {
				counts[category]++
			}
		}
	}
	return counts, nil
}

func edgeTypeIn(t valueobjects.EdgeType, allowed []valueobjects.EdgeType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
