package queries

import (
	"time"

	"atlas-graph/domain/core/entities"
)

// NodeView is the wire representation of a node returned by read operations.
// Embedding vectors are exposed only as a presence flag; the raw vector never
// leaves the store through the query side.
type NodeView struct {
	ID              string                 `json:"id"`
	NodeType        string                 `json:"nodeType"`
	Label           string                 `json:"label"`
	Description     string                 `json:"description,omitempty"`
	Tags            []string               `json:"tags"`
	Categories      []string               `json:"categories"`
	Properties      map[string]interface{} `json:"properties"`
	ConfidenceScore float64                `json:"confidenceScore"`
	CentralityScore *float64               `json:"centralityScore,omitempty"`
	ClusterID       string                 `json:"clusterId,omitempty"`
	HasEmbedding    bool                   `json:"hasEmbedding"`
	IsActive        bool                   `json:"isActive"`
	Version         int                    `json:"version"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

// EdgeView is the wire representation of an edge.
type EdgeView struct {
	ID              string                 `json:"id"`
	SourceNodeID    string                 `json:"sourceNodeId"`
	TargetNodeID    string                 `json:"targetNodeId"`
	EdgeType        string                 `json:"edgeType"`
	Label           string                 `json:"label,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Weight          float64                `json:"weight"`
	IsBidirectional bool                   `json:"isBidirectional"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
	ConfidenceScore float64                `json:"confidenceScore"`
	IsActive        bool                   `json:"isActive"`
	Version         int                    `json:"version"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

// SnapshotView is the wire representation of a snapshot. The captured
// node/edge payload is included only when the caller asks for a single
// snapshot; list responses carry the summary fields alone.
type SnapshotView struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	SnapshotType string                  `json:"snapshotType"`
	Status       string                  `json:"status"`
	ComputeDiff  bool                    `json:"computeDiff"`
	NodeCount    int                     `json:"nodeCount"`
	EdgeCount    int                     `json:"edgeCount"`
	Checksum     string                  `json:"checksum,omitempty"`
	ErrorMessage string                  `json:"errorMessage,omitempty"`
	Nodes        []entities.CapturedNode `json:"nodes,omitempty"`
	Edges        []entities.CapturedEdge `json:"edges,omitempty"`
	Diff         *entities.SnapshotDiff  `json:"diff,omitempty"`
	CreatedAt    string                  `json:"createdAt"`
	UpdatedAt    string                  `json:"updatedAt"`
	CompletedAt  *string                 `json:"completedAt,omitempty"`
}

// NodeViewFrom flattens a node entity into its view.
func NodeViewFrom(node *entities.Node) NodeView {
	return NodeView{
		ID:              node.ID().String(),
		NodeType:        node.Type().String(),
		Label:           node.Label().String(),
		Description:     node.Description(),
		Tags:            node.Tags(),
		Categories:      node.Categories(),
		Properties:      node.Properties(),
		ConfidenceScore: node.Confidence().Value(),
		CentralityScore: node.CentralityScore(),
		ClusterID:       node.ClusterID(),
		HasEmbedding:    node.HasEmbedding(),
		IsActive:        node.IsActive(),
		Version:         node.Version(),
		CreatedAt:       node.CreatedAt().Format(time.RFC3339),
		UpdatedAt:       node.UpdatedAt().Format(time.RFC3339),
	}
}

// NodeViewsFrom maps a slice of node entities, preserving order.
func NodeViewsFrom(nodes []*entities.Node) []NodeView {
	views := make([]NodeView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, NodeViewFrom(node))
	}
	return views
}

// EdgeViewFrom flattens an edge entity into its view.
func EdgeViewFrom(edge *entities.Edge) EdgeView {
	return EdgeView{
		ID:              edge.ID().String(),
		SourceNodeID:    edge.SourceID().String(),
		TargetNodeID:    edge.TargetID().String(),
		EdgeType:        edge.Type().String(),
		Label:           edge.Label().String(),
		Description:     edge.Description(),
		Weight:          edge.Weight().Value(),
		IsBidirectional: edge.IsBidirectional(),
		Properties:      edge.Properties(),
		ConfidenceScore: edge.Confidence().Value(),
		IsActive:        edge.IsActive(),
		Version:         edge.Version(),
		CreatedAt:       edge.CreatedAt().Format(time.RFC3339),
		UpdatedAt:       edge.UpdatedAt().Format(time.RFC3339),
	}
}

// EdgeViewsFrom maps a slice of edge entities, preserving order.
func EdgeViewsFrom(edges []*entities.Edge) []EdgeView {
	views := make([]EdgeView, 0, len(edges))
	for _, edge := range edges {
		views = append(views, EdgeViewFrom(edge))
	}
	return views
}

// SnapshotViewFrom flattens a snapshot entity into its view. Captured
// records and the diff are attached only when includePayload is set.
func SnapshotViewFrom(snapshot *entities.Snapshot, includePayload bool) SnapshotView {
	view := SnapshotView{
		ID:           snapshot.ID().String(),
		Name:         snapshot.Name(),
		Description:  snapshot.Description(),
		SnapshotType: string(snapshot.Type()),
		Status:       string(snapshot.Status()),
		ComputeDiff:  snapshot.ComputeDiff(),
		NodeCount:    snapshot.NodeCount(),
		EdgeCount:    snapshot.EdgeCount(),
		Checksum:     snapshot.Checksum(),
		ErrorMessage: snapshot.ErrorMessage(),
		CreatedAt:    snapshot.CreatedAt().Format(time.RFC3339),
		UpdatedAt:    snapshot.UpdatedAt().Format(time.RFC3339),
	}
	if completed := snapshot.CompletedAt(); completed != nil {
		formatted := completed.Format(time.RFC3339)
		view.CompletedAt = &formatted
	}
	if includePayload {
		view.Nodes = snapshot.Nodes()
		view.Edges = snapshot.Edges()
		view.Diff = snapshot.Diff()
	}
	return view
}
