package queries

import (
	"atlas-graph/application/services"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// TraverseQuery walks the graph outward from a start node. MaxDepth zero
// is a valid request and returns just the start node.
type TraverseQuery struct {
	StartNodeID string   `json:"startNodeId"`
	Direction   string   `json:"direction,omitempty"`
	MaxDepth    int      `json:"maxDepth,omitempty"`
	NodeTypes   []string `json:"nodeTypes,omitempty"`
	EdgeTypes   []string `json:"edgeTypes,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// Validate validates the TraverseQuery
func (q TraverseQuery) Validate() error {
	if q.StartNodeID == "" {
		return pkgerrors.NewValidationError("startNodeId is required")
	}
	if q.Direction != "" {
		if _, err := valueobjects.ParseDirection(q.Direction); err != nil {
			return pkgerrors.NewValidationError("direction must be one of: incoming, outgoing, both").
				WithDetail("direction", q.Direction)
		}
	}
	if q.MaxDepth < 0 {
		return pkgerrors.NewValidationError("maxDepth cannot be negative")
	}
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
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	return nil
}

// TraverseResult is the visited set plus one representative path per
// visited node, in discovery order.
type TraverseResult struct {
	StartNode         NodeView           `json:"startNode"`
	VisitedNodes      []NodeView         `json:"visitedNodes"`
	Paths             []services.PathRef `json:"paths"`
	TotalNodesVisited int                `json:"totalNodesVisited"`
	Depth             int                `json:"depth"`
}
