package queries

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// ListEdgesQuery lists edges matching the given filters. NodeID restricts
// the result to edges touching that node as either endpoint.
type ListEdgesQuery struct {
	EdgeTypes []string
	NodeID    string
	IsActive  *bool
	Limit     int
	Offset    int
}

// Validate validates the ListEdgesQuery
func (q ListEdgesQuery) Validate() error {
	for _, raw := range q.EdgeTypes {
		if _, err := valueobjects.ParseEdgeType(raw); err != nil {
			return pkgerrors.UnknownEdgeType(raw)
		}
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	if q.Offset < 0 {
		return pkgerrors.NewValidationError("offset cannot be negative")
	}
	return nil
}

// ListEdgesResult carries one page of edges plus the total match count.
type ListEdgesResult struct {
	Edges  []EdgeView `json:"edges"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
