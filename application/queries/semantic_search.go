package queries

import (
	"strings"

	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// SemanticSearchQuery searches nodes by embedding similarity. Callers
// supply either query text to be embedded or a precomputed vector; the
// vector wins when both are present.
type SemanticSearchQuery struct {
	Query     string    `json:"query,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	NodeTypes []string  `json:"nodeTypes,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// Validate validates the SemanticSearchQuery
func (q SemanticSearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" && len(q.Embedding) == 0 {
		return pkgerrors.NewValidationError("query text or embedding is required")
	}
	for _, raw := range q.NodeTypes {
		if _, err := valueobjects.ParseNodeType(raw); err != nil {
			return pkgerrors.UnknownNodeType(raw)
		}
	}
	if q.Threshold != nil && (*q.Threshold < 0 || *q.Threshold > 1) {
		return pkgerrors.NewValidationError("threshold must be between 0 and 1")
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	return nil
}

// SearchResultView is one scored hit.
type SearchResultView struct {
	Node       NodeView `json:"node"`
	Similarity float64  `json:"similarity"`
}

// SemanticSearchResult is the scored hit list, best first.
type SemanticSearchResult struct {
	Results []SearchResultView `json:"results"`
	Count   int                `json:"count"`
}
