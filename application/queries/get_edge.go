package queries

import (
	pkgerrors "atlas-graph/pkg/errors"
)

// GetEdgeWithNodesQuery fetches an edge together with both endpoint nodes.
type GetEdgeWithNodesQuery struct {
	EdgeID string
}

// Validate validates the GetEdgeWithNodesQuery
func (q GetEdgeWithNodesQuery) Validate() error {
	if q.EdgeID == "" {
		return pkgerrors.NewValidationError("edge id is required")
	}
	return nil
}

// GetEdgeWithNodesResult is the edge with its endpoints resolved.
type GetEdgeWithNodesResult struct {
	Edge       EdgeView `json:"edge"`
	SourceNode NodeView `json:"sourceNode"`
	TargetNode NodeView `json:"targetNode"`
}
