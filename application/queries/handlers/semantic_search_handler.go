package handlers

import (
	"context"

	"go.uber.org/zap"

	"atlas-graph/application/queries"
	"atlas-graph/application/services"
)

// SemanticSearchHandler runs embedding similarity searches.
type SemanticSearchHandler struct {
	search *services.SearchService
	logger *zap.Logger
}

// NewSemanticSearchHandler creates a new SemanticSearchHandler
func NewSemanticSearchHandler(search *services.SearchService, logger *zap.Logger) *SemanticSearchHandler {
	return &SemanticSearchHandler{
		search: search,
		logger: logger,
	}
}

// Handle executes the query
func (h *SemanticSearchHandler) Handle(ctx context.Context, query queries.SemanticSearchQuery) (*queries.SemanticSearchResult, error) {
	hits, err := h.search.Search(ctx, services.SearchRequest{
		Query:     query.Query,
		Embedding: query.Embedding,
		NodeTypes: parseNodeTypes(query.NodeTypes),
		Threshold: query.Threshold,
		Limit:     query.Limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]queries.SearchResultView, 0, len(hits))
	for _, hit := range hits {
		results = append(results, queries.SearchResultView{
			Node:       queries.NodeViewFrom(hit.Node),
			Similarity: hit.Similarity,
		})
	}

	return &queries.SemanticSearchResult{
		Results: results,
		Count:   len(results),
	}, nil
}
