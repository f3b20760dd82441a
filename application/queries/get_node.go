package queries

import (
	pkgerrors "atlas-graph/pkg/errors"
)

// GetNodeQuery fetches a single node by id. Inactive nodes are still
// readable; listings are where the active filter applies.
type GetNodeQuery struct {
	NodeID string
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	if q.NodeID == "" {
		return pkgerrors.NewValidationError("node id is required")
	}
	return nil
}

// GetNodeConnectionsQuery fetches a node together with every active edge
// touching it and the nodes on the far end of those edges.
type GetNodeConnectionsQuery struct {
	NodeID string
}

// Validate validates the GetNodeConnectionsQuery
func (q GetNodeConnectionsQuery) Validate() error {
	if q.NodeID == "" {
		return pkgerrors.NewValidationError("node id is required")
	}
	return nil
}

// NeighborView pairs an adjacent node with the edge that reaches it.
type NeighborView struct {
	Node NodeView `json:"node"`
	Edge EdgeView `json:"edge"`
}

// GetNodeConnectionsResult splits the incident edges by direction relative
// to the requested node. A self-loop appears in both lists.
type GetNodeConnectionsResult struct {
	Node          NodeView       `json:"node"`
	IncomingEdges []EdgeView     `json:"incomingEdges"`
	OutgoingEdges []EdgeView     `json:"outgoingEdges"`
	Neighbors     []NeighborView `json:"neighbors"`
}
