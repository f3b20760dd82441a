package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/aggregates"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
)

// metricsCacheKey is where the latest summary is cached for reads.
const metricsCacheKey = "metrics:latest"

// MetricsService scores the live graph. Centrality is the weighted degree
// normalized to the maximum observed in the scored subgraph; clusters are
// connected components named after their lexicographically smallest
// member, so recomputing an unchanged graph reassigns identical ids.
type MetricsService struct {
	nodeRepo    ports.NodeRepository
	edgeRepo    ports.EdgeRepository
	metricsRepo ports.MetricsRepository
	auditRepo   ports.AuditLogRepository
	eventBus    ports.EventBus
	cache       ports.Cache
	emitter     ports.GraphStatsEmitter
	cfg         *config.DomainConfig
	logger      *zap.Logger
}

// NewMetricsService creates a metrics service. The emitter may be nil;
// runs then skip the external gauge push.
func NewMetricsService(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	metricsRepo ports.MetricsRepository,
	auditRepo ports.AuditLogRepository,
	eventBus ports.EventBus,
	cache ports.Cache,
	emitter ports.GraphStatsEmitter,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		nodeRepo:    nodeRepo,
		edgeRepo:    edgeRepo,
		metricsRepo: metricsRepo,
		auditRepo:   auditRepo,
		eventBus:    eventBus,
		cache:       cache,
		emitter:     emitter,
		cfg:         cfg,
		logger:      logger,
	}
}

// ComputeRequest selects what a metrics run scores. An empty NodeTypes
// scores the whole active graph.
type ComputeRequest struct {
	NodeTypes         []valueobjects.NodeType
	ComputeCentrality bool
	ComputeClusters   bool
	Actor             string
}

// Compute runs the metrics computation: it loads the active graph,
// derives the graph-level summary, scores the subgraph induced by the
// node type filter, and writes changed scores back onto the nodes.
func (s *MetricsService) Compute(ctx context.Context, req ComputeRequest) (*entities.MetricsRun, error) {
	run := entities.StartMetricsRun()

	activeNodes, err := s.nodeRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load active nodes: %w", err)
	}
	activeEdges, err := s.edgeRepo.ListActive(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load active edges: %w", err)
	}

	if err := s.fillSummary(ctx, run, len(activeNodes), len(activeEdges)); err != nil {
		return nil, err
	}

	scored := activeNodes
	if len(req.NodeTypes) > 0 {
		scored = make([]*entities.Node, 0, len(activeNodes))
		for _, node := range activeNodes {
			if matchesNodeTypeFilter(node.Type(), req.NodeTypes) {
				scored = append(scored, node)
			}
		}
	}

	graph := aggregates.BuildGraph(scored, activeEdges)
	s.fillDegreeStats(run, graph)

	centrality := map[valueobjects.NodeID]float64{}
	if req.ComputeCentrality {
		centrality = computeCentrality(graph)
	}

	clusters := map[valueobjects.NodeID]string{}
	if req.ComputeClusters {
		components := graph.ConnectedComponents()
		run.ClustersIdentified = len(components)
		for _, component := range components {
			clusterID := "cluster-" + component[0].String()
			if len(component) > run.LargestClusterSize {
				run.LargestClusterSize = len(component)
			}
			for _, id := range component {
				clusters[id] = clusterID
			}
		}
	}

	if req.ComputeCentrality || req.ComputeClusters {
		updated, err := s.writeBack(ctx, graph, centrality, clusters, req.ComputeCentrality, req.ComputeClusters)
		if err != nil {
			return nil, err
		}
		run.NodesUpdated = updated
	}

	run.Finish()

	if err := s.metricsRepo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist metrics run: %w", err)
	}

	entry := entities.NewAuditEntry(
		events.EventMetricsComputed,
		entities.EntityKindMetrics,
		run.ID,
		req.Actor,
		nil,
		entities.StateMap(run.Metrics),
	).WithMetadata(map[string]interface{}{
		"nodesUpdated":       run.NodesUpdated,
		"clustersIdentified": run.ClustersIdentified,
		"executionTimeMs":    run.ExecutionTimeMs,
	})
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append metrics audit entry: %w", err)
	}

	if err := s.cache.Delete(ctx, metricsCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate metrics cache", zap.Error(err))
	}
	event := events.NewMetricsComputed(run.ID, run.NodesUpdated, run.ClustersIdentified, run.CompletedAt)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish metrics event", zap.Error(err))
	}

	if s.emitter != nil {
		s.emitter.EmitGraphStats(ctx, map[string]float64{
			"ActiveNodes":        float64(run.Metrics.ActiveNodes),
			"ActiveEdges":        float64(run.Metrics.ActiveEdges),
			"TotalNodes":         float64(run.Metrics.TotalNodes),
			"TotalEdges":         float64(run.Metrics.TotalEdges),
			"NodesUpdated":       float64(run.NodesUpdated),
			"ClustersIdentified": float64(run.ClustersIdentified),
			"MaxWeightedDegree":  run.MaxWeightedDegree,
		})
	}

	s.logger.Info("Metrics computed",
		zap.String("runId", run.ID),
		zap.Int("activeNodes", run.Metrics.ActiveNodes),
		zap.Int("activeEdges", run.Metrics.ActiveEdges),
		zap.Int("nodesUpdated", run.NodesUpdated),
		zap.Int("clustersIdentified", run.ClustersIdentified),
		zap.Int64("executionTimeMs", run.ExecutionTimeMs),
	)

	return run, nil
}

// Latest returns the most recent summary: cache first, then the last
// persisted run, then a summary computed live from counts when metrics
// have never run. The live fallback never scores nodes; it only fills
// the totals.
func (s *MetricsService) Latest(ctx context.Context) (*entities.GraphMetrics, error) {
	if value, found := s.cache.Get(ctx, metricsCacheKey); found {
		var metrics entities.GraphMetrics
		if coerceCached(value, &metrics) {
			return &metrics, nil
		}
	}

	run, err := s.metricsRepo.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}

	var metrics entities.GraphMetrics
	if run != nil {
		metrics = run.Metrics
	} else {
		live := entities.StartMetricsRun()
		activeNodeTotal, activeEdgeTotal, err := s.activeTotals(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.fillSummary(ctx, live, activeNodeTotal, activeEdgeTotal); err != nil {
			return nil, err
		}
		live.Metrics.ComputedAt = time.Now()
		metrics = live.Metrics
	}

	if err := s.cache.Set(ctx, metricsCacheKey, &metrics, s.cfg.MetricsCacheTTLSeconds); err != nil {
		s.logger.Warn("Failed to cache metrics summary", zap.Error(err))
	}

	return &metrics, nil
}

// fillSummary fills the graph-level totals on a run's summary. Type
// breakdowns count all records; the active counts carry the live subset.
func (s *MetricsService) fillSummary(ctx context.Context, run *entities.MetricsRun, activeNodes, activeEdges int) error {
	nodeCounts, err := s.nodeRepo.CountByType(ctx)
	if err != nil {
		return fmt.Errorf("failed to count nodes by type: %w", err)
	}
	edgeCounts, err := s.edgeRepo.CountByType(ctx)
	if err != nil {
		return fmt.Errorf("failed to count edges by type: %w", err)
	}

	totalNodes := 0
	for nodeType, count := range nodeCounts {
		run.Metrics.NodesByType[nodeType] = count
		totalNodes += count
	}
	totalEdges := 0
	for edgeType, count := range edgeCounts {
		run.Metrics.EdgesByType[edgeType] = count
		totalEdges += count
	}

	run.Metrics.TotalNodes = totalNodes
	run.Metrics.ActiveNodes = activeNodes
	run.Metrics.TotalEdges = totalEdges
	run.Metrics.ActiveEdges = activeEdges

	return nil
}

// fillDegreeStats records the degree distribution of the scored subgraph
func (s *MetricsService) fillDegreeStats(run *entities.MetricsRun, graph *aggregates.Graph) {
	ids := graph.NodeIDs()
	if len(ids) == 0 {
		return
	}

	total := 0.0
	for _, id := range ids {
		degree := graph.WeightedDegree(id)
		total += degree
		if degree > run.MaxWeightedDegree {
			run.MaxWeightedDegree = degree
		}
	}
	run.AverageWeightedDegree = total / float64(len(ids))
}

// activeTotals counts active nodes and edges without loading them.
func (s *MetricsService) activeTotals(ctx context.Context) (int, int, error) {
	active := true
	_, nodeTotal, err := s.nodeRepo.List(ctx, ports.NodeFilter{IsActive: &active, Limit: 1})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count active nodes: %w", err)
	}
	_, edgeTotal, err := s.edgeRepo.List(ctx, ports.EdgeFilter{IsActive: &active, Limit: 1})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count active edges: %w", err)
	}
	return nodeTotal, edgeTotal, nil
}

// writeBack persists changed scores onto the nodes, in id order so a rerun
// touches nodes in the same sequence.
func (s *MetricsService) writeBack(
	ctx context.Context,
	graph *aggregates.Graph,
	centrality map[valueobjects.NodeID]float64,
	clusters map[valueobjects.NodeID]string,
	setCentrality, setClusters bool,
) (int, error) {
	updated := 0

	for _, id := range graph.NodeIDs() {
		node, _ := graph.Node(id)

		var score *float64
		if setCentrality {
			value := centrality[id]
			score = &value
		}
		var clusterID *string
		if setClusters {
			value := clusters[id]
			clusterID = &value
		}

		if !node.SetMetricScores(score, clusterID) {
			continue
		}
		if err := s.nodeRepo.Update(ctx, node); err != nil {
			return updated, fmt.Errorf("failed to write scores for node %s: %w", id, err)
		}
		node.MarkPersisted()
		updated++
	}

	return updated, nil
}

// computeCentrality normalizes each node's weighted degree by the maximum
// observed in the subgraph. An edgeless subgraph scores everything zero.
func computeCentrality(graph *aggregates.Graph) map[valueobjects.NodeID]float64 {
	scores := make(map[valueobjects.NodeID]float64, graph.NodeCount())

	max := graph.MaxWeightedDegree()
	for _, id := range graph.NodeIDs() {
		if max > 0 {
			scores[id] = graph.WeightedDegree(id) / max
		} else {
			scores[id] = 0
		}
	}

	return scores
}
