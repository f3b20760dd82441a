package queries

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// FindPathQuery finds a minimal path between two nodes within a hop bound.
// MaxDepth zero means "use the configured default bound".
type FindPathQuery struct {
	StartNodeID string `json:"startNodeId"`
	EndNodeID   string `json:"endNodeId"`
	MaxDepth    int    `json:"maxDepth,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// Validate validates the FindPathQuery
func (q FindPathQuery) Validate() error {
	if q.StartNodeID == "" {
		return pkgerrors.NewValidationError("startNodeId is required")
	}
	if q.EndNodeID == "" {
		return pkgerrors.NewValidationError("endNodeId is required")
	}
	if q.MaxDepth < 0 {
		return pkgerrors.NewValidationError("maxDepth cannot be negative")
	}
	if q.Direction != "" {
		if _, err := valueobjects.ParseDirection(q.Direction); err != nil {
			return pkgerrors.NewValidationError("direction must be one of: incoming, outgoing, both").
				WithDetail("direction", q.Direction)
		}
	}
	return nil
}

// PathView is a fully resolved path: the node sequence, the edges walked
// between consecutive nodes, and the accumulated weight.
type PathView struct {
	Nodes       []NodeView `json:"nodes"`
	Edges       []EdgeView `json:"edges"`
	TotalWeight float64    `json:"totalWeight"`
	Length      int        `json:"length"`
}

// FindPathResult wraps the path so "no path within the bound" serializes
// as an explicit null rather than an error.
type FindPathResult struct {
	Path *PathView `json:"path"`
}

// ExplainPathQuery finds a path and asks the reasoning collaborator to
// narrate it. Narration failures degrade to the bare path.
type ExplainPathQuery struct {
	StartNodeID string `json:"startNodeId"`
	EndNodeID   string `json:"endNodeId"`
	MaxDepth    int    `json:"maxDepth,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// Validate validates the ExplainPathQuery
func (q ExplainPathQuery) Validate() error {
	return FindPathQuery(q).Validate()
}

// ExplainPathResult is the path plus whatever narration was produced.
// Degraded marks responses where the reasoning step was skipped or failed.
type ExplainPathResult struct {
	Path        *PathView `json:"path"`
	Explanation string    `json:"explanation,omitempty"`
	Reasoning   []string  `json:"reasoning,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"`
}
