package queries

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// Grouping dimensions accepted by QueryGraphQuery.
const (
	GroupByNodeType = "nodeType"
	GroupByCluster  = "clusterId"
	GroupByCategory = "category"
)

// QueryGraphQuery runs an ad-hoc filtered read over the graph. The result
// carries the matching nodes, the active edges connecting them to each
// other, and, when GroupBy is set, match counts per group value.
type QueryGraphQuery struct {
	NodeTypes       []string `json:"nodeTypes,omitempty"`
	EdgeTypes       []string `json:"edgeTypes,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Search          string   `json:"search,omitempty"`
	MinConfidence   *float64 `json:"minConfidence,omitempty"`
	IncludeInactive bool     `json:"includeInactive,omitempty"`
	GroupBy         string   `json:"groupBy,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	Offset          int      `json:"offset,omitempty"`
}

// Validate validates the QueryGraphQuery
func (q QueryGraphQuery) Validate() error {
	for _, raw := range q.NodeTypes {
		if _, err := valueobjects.ParseNodeType(raw); err != nil {
			return pkgerrors.UnknownNodeType(raw)
		}
	}
	for _, raw := range q.EdgeTypes {
		if _, err := valueobjects.ParseEdgeType(raw); err != nil {
			return pkgerrors.UnknownEdgeType(raw)
		}
	}
	if q.MinConfidence != nil && (*q.MinConfidence < 0 || *q.MinConfidence > 1) {
		return pkgerrors.NewValidationError("minConfidence must be between 0 and 1")
	}
	switch q.GroupBy {
	case "", GroupByNodeType, GroupByCluster, GroupByCategory:
	default:
		return pkgerrors.NewValidationError("groupBy must be one of: nodeType, clusterId, category").
			WithDetail("groupBy", q.GroupBy)
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	if q.Offset < 0 {
		return pkgerrors.NewValidationError("offset cannot be negative")
	}
	return nil
}

// QueryGraphResult is the filtered subgraph. Edges are included only when
// both endpoints made it into the node page, so the payload is always
// renderable as a standalone graph.
type QueryGraphResult struct {
	Nodes           []NodeView     `json:"nodes"`
	Edges           []EdgeView     `json:"edges"`
	Total           int            `json:"total"`
	Aggregations    map[string]int `json:"aggregations,omitempty"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
}
