package entities

import (
	"time"

	"github.com/google/uuid"
)

// GraphMetrics is the graph-level summary produced by a metrics run. It is
// cached and served independently of the per-node scores written back onto
// the nodes themselves.
type GraphMetrics struct {
	TotalNodes  int            `json:"totalNodes"`
	ActiveNodes int            `json:"activeNodes"`
	TotalEdges  int            `json:"totalEdges"`
	ActiveEdges int            `json:"activeEdges"`
	NodesByType map[string]int `json:"nodesByType"`
	EdgesByType map[string]int `json:"edgesByType"`
	ComputedAt  time.Time      `json:"computedAt"`
}

// MetricsRun records one execution of the metrics computer: the summary it
// produced plus bookkeeping about what was scored and how long it took.
type MetricsRun struct {
	ID                    string       `json:"id"`
	StartedAt             time.Time    `json:"startedAt"`
	CompletedAt           time.Time    `json:"completedAt"`
	ExecutionTimeMs       int64        `json:"executionTimeMs"`
	Metrics               GraphMetrics `json:"metrics"`
	NodesUpdated          int          `json:"nodesUpdated"`
	ClustersIdentified    int          `json:"clustersIdentified"`
	LargestClusterSize    int          `json:"largestClusterSize"`
	MaxWeightedDegree     float64      `json:"maxWeightedDegree"`
	AverageWeightedDegree float64      `json:"averageWeightedDegree"`
}

// StartMetricsRun opens a new run with a fresh id and start timestamp.
func StartMetricsRun() *MetricsRun {
	return &MetricsRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Metrics: GraphMetrics{
			NodesByType: make(map[string]int),
			EdgesByType: make(map[string]int),
		},
	}
}

// Finish stamps the completion time and derives the execution duration.
func (r *MetricsRun) Finish() {
	r.CompletedAt = time.Now()
	r.ExecutionTimeMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	r.Metrics.ComputedAt = r.CompletedAt
}
