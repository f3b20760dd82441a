package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// SearchService ranks nodes by embedding similarity against a query. The
// store has no vector index, so candidates are scanned and scored with
// cosine similarity; nodes without an embedding never match. When the
// embedding provider cannot vectorize a text query the search degrades to
// an empty result set instead of failing the caller.
type SearchService struct {
	nodeRepo  ports.NodeRepository
	embedding ports.EmbeddingProvider
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewSearchService creates a search service. The embedding provider may
// be nil; text queries then return no results.
func NewSearchService(
	nodeRepo ports.NodeRepository,
	embedding ports.EmbeddingProvider,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SearchService {
	return &SearchService{
		nodeRepo:  nodeRepo,
		embedding: embedding,
		cfg:       cfg,
		logger:    logger,
	}
}

// SearchRequest is one similarity query. Either Query text or a
// precomputed Embedding must be supplied; the embedding wins when both
// are present.
type SearchRequest struct {
	Query     string
	Embedding []float32
	NodeTypes []valueobjects.NodeType
	Threshold *float64
	Limit     int
}

// SearchResult pairs a matched node with its similarity to the query.
type SearchResult struct {
	Node       *entities.Node `json:"node"`
	Similarity float64        `json:"similarity"`
}

// Search returns active nodes whose embedding similarity meets the
// threshold, ordered by descending similarity and capped at the limit.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	threshold := s.cfg.DefaultSimilarityThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			return nil, pkgerrors.NewValidationError("threshold must be within [0,1]").
				WithDetail("threshold", *req.Threshold)
		}
		threshold = *req.Threshold
	}

	limit := req.Limit
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	query, degraded, err := s.resolveQueryVector(ctx, req)
	if err != nil {
		return nil, err
	}
	if degraded {
		return []SearchResult{}, nil
	}

	began := time.Now()

	candidates, err := s.nodeRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, node := range candidates {
		if !matchesNodeTypeFilter(node.Type(), req.NodeTypes) {
			continue
		}
		embedding := node.Embedding()
		if len(embedding) == 0 || len(embedding) != len(query) {
			continue
		}
		similarity := cosineSimilarity(query, embedding)
		if similarity < threshold {
			continue
		}
		results = append(results, SearchResult{Node: node, Similarity: similarity})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Node.ID().String() < results[j].Node.ID().String()
	})
	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug("Semantic search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		zap.Float64("threshold", threshold),
		zap.Duration("took", time.Since(began)),
	)

	return results, nil
}

// resolveQueryVector produces the query embedding. A true degraded flag
// means the caller should return empty results: the text could not be
// vectorized and similarity is undefined.
func (s *SearchService) resolveQueryVector(ctx context.Context, req SearchRequest) ([]float32, bool, error) {
	if len(req.Embedding) > 0 {
		return req.Embedding, false, nil
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, false, pkgerrors.NewValidationError("query text or embedding is required")
	}

	if !s.cfg.EnableSemanticSearch || s.embedding == nil {
		s.logger.Warn("Semantic search disabled, returning empty results")
		return nil, true, nil
	}
	if !s.embedding.IsAvailable(ctx) {
		s.logger.Warn("Embedding provider unavailable, returning empty results")
		return nil, true, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	vector, err := s.embedding.Embed(embedCtx, query)
	if err != nil {
		s.logger.Warn("Failed to embed search query, returning empty results", zap.Error(err))
		return nil, true, nil
	}

	return vector, false, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero-magnitude vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
