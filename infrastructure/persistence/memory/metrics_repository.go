package memory

import (
	"context"
	"sort"
	"sync"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
)

// MetricsRepository stores metrics runs in memory.
type MetricsRepository struct {
	mu   sync.RWMutex
	runs []*entities.MetricsRun
}

var _ ports.MetricsRepository = (*MetricsRepository)(nil)

// NewMetricsRepository creates an empty in-memory metrics repository
func NewMetricsRepository() *MetricsRepository {
	return &MetricsRepository{}
}

func copyRun(run *entities.MetricsRun) *entities.MetricsRun {
	clone := *run
	clone.Metrics.NodesByType = make(map[string]int, len(run.Metrics.NodesByType))
	for k, v := range run.Metrics.NodesByType {
		clone.Metrics.NodesByType[k] = v
	}
	clone.Metrics.EdgesByType = make(map[string]int, len(run.Metrics.EdgesByType))
	for k, v := range run.Metrics.EdgesByType {
		clone.Metrics.EdgesByType[k] = v
	}
	return &clone
}

// SaveRun records a completed metrics run.
func (r *MetricsRepository) SaveRun(ctx context.Context, run *entities.MetricsRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, copyRun(run))
	return nil
}

// GetLatestRun returns the most recent run, or (nil, nil) when metrics
// have never been computed.
func (r *MetricsRepository) GetLatestRun(ctx context.Context) (*entities.MetricsRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *entities.MetricsRun
	for _, run := range r.runs {
		if latest == nil || run.CompletedAt.After(latest.CompletedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyRun(latest), nil
}

// ListRuns returns runs newest first, capped at limit.
func (r *MetricsRepository) ListRuns(ctx context.Context, limit int) ([]*entities.MetricsRun, error) {
	r.mu.RLock()
	runs := make([]*entities.MetricsRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, copyRun(run))
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CompletedAt.After(runs[j].CompletedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
