// Package config holds the tunable business rules of the graph engine.
// Values here bound work per request and are safe to reload at runtime.
package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable engine rules and constraints.
type DomainConfig struct {
	// Traversal bounds
	MaxTraversalDepth int
	MaxTraversalNodes int
	MaxPathDepth      int

	// Listing bounds
	DefaultPageSize int
	MaxPageSize     int

	// Node constraints
	MaxTagsPerNode       int
	MaxCategoriesPerNode int
	MaxPropertyKeys      int
	MaxLabelLength       int
	MaxDescriptionLength int

	// Edge constraints
	MinEdgeWeight        float64
	MaxEdgeWeight        float64
	DefaultEdgeWeight    float64
	AllowSelfEdges       bool
	AllowParallelEdges   bool

	// Merge constraints
	MaxMergeSources int
	MergeLockTTL    time.Duration

	// Search constraints
	DefaultSimilarityThreshold float64
	MaxSearchResults           int

	// Metrics
	MetricsCacheTTLSeconds int

	// Snapshot constraints
	SnapshotQueueSize    int
	SnapshotCaptureLimit int

	// Provider timeouts
	ReasoningTimeout time.Duration
	EmbeddingTimeout time.Duration

	// Conflict retries for idempotent writes
	ConflictRetries    int
	ConflictRetryDelay time.Duration

	// Feature flags
	EnableSemanticSearch bool
	EnableReasoning      bool
	EnableEventPush      bool
}

// DefaultDomainConfig returns the default engine configuration.
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTraversalDepth: 10,
		MaxTraversalNodes: 1000,
		MaxPathDepth:      20,

		DefaultPageSize: 50,
		MaxPageSize:     500,

		MaxTagsPerNode:       50,
		MaxCategoriesPerNode: 20,
		MaxPropertyKeys:      100,
		MaxLabelLength:       255,
		MaxDescriptionLength: 10000,

		MinEdgeWeight:      0.0001,
		MaxEdgeWeight:      1000,
		DefaultEdgeWeight:  1.0,
		AllowSelfEdges:     false,
		AllowParallelEdges: true,

		MaxMergeSources: 25,
		MergeLockTTL:    30 * time.Second,

		DefaultSimilarityThreshold: 0.7,
		MaxSearchResults:           100,

		MetricsCacheTTLSeconds: 300,

		SnapshotQueueSize:    16,
		SnapshotCaptureLimit: 100000,

		ReasoningTimeout: 10 * time.Second,
		EmbeddingTimeout: 5 * time.Second,

		ConflictRetries:    3,
		ConflictRetryDelay: 50 * time.Millisecond,

		EnableSemanticSearch: true,
		EnableReasoning:      true,
		EnableEventPush:      true,
	}
}

// DevelopmentDomainConfig loosens bounds for local iteration.
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.MaxTraversalDepth = 25
	cfg.MaxTraversalNodes = 10000
	cfg.AllowSelfEdges = true
	return cfg
}

// ProductionDomainConfig tightens bounds for shared deployments.
func ProductionDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.MaxTraversalDepth = 8
	cfg.MaxTraversalNodes = 500
	cfg.MaxPageSize = 200
	return cfg
}

// LoadDomainConfig selects the config for an environment name.
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate rejects configurations that would make the engine misbehave.
func (c *DomainConfig) Validate() error {
	if c.MaxTraversalDepth < 1 {
		return fmt.Errorf("MaxTraversalDepth must be at least 1")
	}
	if c.MaxTraversalNodes < 1 {
		return fmt.Errorf("MaxTraversalNodes must be at least 1")
	}
	if c.MaxPathDepth < 1 {
		return fmt.Errorf("MaxPathDepth must be at least 1")
	}
	if c.MinEdgeWeight <= 0 {
		return fmt.Errorf("MinEdgeWeight must be positive")
	}
	if c.MaxEdgeWeight <= c.MinEdgeWeight {
		return fmt.Errorf("MaxEdgeWeight must exceed MinEdgeWeight")
	}
	if c.DefaultEdgeWeight < c.MinEdgeWeight || c.DefaultEdgeWeight > c.MaxEdgeWeight {
		return fmt.Errorf("DefaultEdgeWeight must be within [MinEdgeWeight, MaxEdgeWeight]")
	}
	if c.MaxMergeSources < 2 {
		return fmt.Errorf("MaxMergeSources must be at least 2")
	}
	if c.DefaultSimilarityThreshold < 0 || c.DefaultSimilarityThreshold > 1 {
		return fmt.Errorf("DefaultSimilarityThreshold must be within [0,1]")
	}
	if c.SnapshotQueueSize < 1 {
		return fmt.Errorf("SnapshotQueueSize must be at least 1")
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf("ConflictRetries cannot be negative")
	}
	return nil
}
