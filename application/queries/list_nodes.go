package queries

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// ListNodesQuery lists nodes matching the given filters, newest-updated
// first. When IsActive is nil both active and inactive nodes are returned.
type ListNodesQuery struct {
	NodeTypes     []string
	Tags          []string
	Categories    []string
	Search        string
	MinConfidence *float64
	IsActive      *bool
	Limit         int
	Offset        int
}

// Validate validates the ListNodesQuery
func (q ListNodesQuery) Validate() error {
	for _, raw := range q.NodeTypes {
		if _, err := valueobjects.ParseNodeType(raw); err != nil {
			return pkgerrors.UnknownNodeType(raw)
		}
	}
	if q.MinConfidence != nil && (*q.MinConfidence < 0 || *q.MinConfidence > 1) {
		return pkgerrors.NewValidationError("minConfidence must be between 0 and 1")
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	if q.Offset < 0 {
		return pkgerrors.NewValidationError("offset cannot be negative")
	}
	return nil
}

// ListNodesResult carries one page of nodes plus the total match count
// independent of the pagination window.
type ListNodesResult struct {
	Nodes  []NodeView `json:"nodes"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
