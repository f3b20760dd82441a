package services

import (
	"container/heap"
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/aggregates"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// PathFinderService finds weighted shortest paths between two nodes and
// optionally narrates them through the reasoning provider. Edge weight is
// the distance cost; with uniform weights the search degenerates to plain
// breadth-first order.
type PathFinderService struct {
	loader    *GraphLoader
	nodeRepo  ports.NodeRepository
	reasoning ports.ReasoningProvider
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewPathFinderService creates a path finder. The reasoning provider may
// be nil; explanation requests then degrade to the bare path.
func NewPathFinderService(
	loader *GraphLoader,
	nodeRepo ports.NodeRepository,
	reasoning ports.ReasoningProvider,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *PathFinderService {
	return &PathFinderService{
		loader:    loader,
		nodeRepo:  nodeRepo,
		reasoning: reasoning,
		cfg:       cfg,
		logger:    logger,
	}
}

// PathRequest bounds one shortest-path search.
type PathRequest struct {
	StartNodeID string
	EndNodeID   string
	MaxDepth    int
	Direction   valueobjects.Direction
}

// Path is an ordered route through the graph: Nodes has one more entry
// than Edges, and Edges[i] connects Nodes[i] to Nodes[i+1].
type Path struct {
	Nodes       []*entities.Node `json:"nodes"`
	Edges       []*entities.Edge `json:"edges"`
	TotalWeight float64          `json:"totalWeight"`
}

// Length returns the number of hops in the path
func (p *Path) Length() int {
	return len(p.Edges)
}

// ExplainedPath is a found path plus its optional narration. Degraded is
// set when narration was requested but the reasoning provider could not
// deliver it.
type ExplainedPath struct {
	Path        *Path    `json:"path"`
	Explanation string   `json:"explanation,omitempty"`
	Reasoning   []string `json:"reasoning,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Degraded    bool     `json:"degraded,omitempty"`
}

// FindPath returns the minimum-weight path from start to end using at
// most MaxDepth hops, or nil when no such path exists. Both endpoints
// must resolve to active nodes.
func (s *PathFinderService) FindPath(ctx context.Context, req PathRequest) (*Path, error) {
	startID, err := valueobjects.NewNodeIDFromString(req.StartNodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid start node id").
			WithDetail("startNodeId", req.StartNodeID)
	}
	endID, err := valueobjects.NewNodeIDFromString(req.EndNodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid end node id").
			WithDetail("endNodeId", req.EndNodeID)
	}
	if req.MaxDepth < 0 {
		return nil, pkgerrors.NewValidationError("maxDepth cannot be negative")
	}

	maxDepth := req.MaxDepth
	if maxDepth == 0 || maxDepth > s.cfg.MaxPathDepth {
		maxDepth = s.cfg.MaxPathDepth
	}
	direction := req.Direction
	if direction == "" {
		direction = valueobjects.DirectionBoth
	}

	start, err := s.nodeRepo.GetByID(ctx, startID)
	if err != nil {
		return nil, err
	}
	if !start.IsActive() {
		return nil, pkgerrors.NodeNotFound(startID.String())
	}
	end, err := s.nodeRepo.GetByID(ctx, endID)
	if err != nil {
		return nil, err
	}
	if !end.IsActive() {
		return nil, pkgerrors.NodeNotFound(endID.String())
	}

	if startID.Equals(endID) {
		return &Path{Nodes: []*entities.Node{start}, Edges: []*entities.Edge{}}, nil
	}

	began := time.Now()

	graph, err := s.loader.LoadNeighborhood(ctx, []valueobjects.NodeID{startID}, maxDepth, direction, nil, nil, s.cfg.MaxTraversalNodes)
	if err != nil {
		return nil, err
	}
	if !graph.HasNode(endID) {
		return nil, nil
	}

	path := dijkstraBounded(graph, startID, endID, direction, maxDepth)

	s.logger.Debug("Path search completed",
		zap.String("startNodeId", startID.String()),
		zap.String("endNodeId", endID.String()),
		zap.Bool("found", path != nil),
		zap.Duration("took", time.Since(began)),
	)

	return path, nil
}

// ExplainPath finds the path and, when requested, asks the reasoning
// provider to narrate it. Narration failures degrade the response to the
// bare path instead of failing the call.
func (s *PathFinderService) ExplainPath(ctx context.Context, req PathRequest, includeReasoning bool) (*ExplainedPath, error) {
	path, err := s.FindPath(ctx, req)
	if err != nil {
		return nil, err
	}
	if path == nil || !includeReasoning {
		return &ExplainedPath{Path: path}, nil
	}

	if !s.cfg.EnableReasoning || s.reasoning == nil {
		return &ExplainedPath{Path: path, Degraded: true}, nil
	}
	if !s.reasoning.IsAvailable(ctx) {
		s.logger.Warn("Reasoning provider unavailable, returning bare path")
		return &ExplainedPath{Path: path, Degraded: true}, nil
	}

	explainCtx, cancel := context.WithTimeout(ctx, s.cfg.ReasoningTimeout)
	defer cancel()

	explanation, err := s.reasoning.Explain(explainCtx, path.Nodes, path.Edges)
	if err != nil {
		s.logger.Warn("Path narration failed, returning bare path",
			zap.String("startNodeId", req.StartNodeID),
			zap.String("endNodeId", req.EndNodeID),
			zap.Error(err),
		)
		return &ExplainedPath{Path: path, Degraded: true}, nil
	}

	return &ExplainedPath{
		Path:        path,
		Explanation: explanation.Explanation,
		Reasoning:   explanation.Reasoning,
		Confidence:  &explanation.Confidence,
	}, nil
}

// pqItem is one search state: a node reached with some cost and hop
// count. Parent links double as the path reconstruction chain.
type pqItem struct {
	nodeID valueobjects.NodeID
	dist   float64
	hops   int
	parent *pqItem
	via    *entities.Edge
	seq    int
	index  int
}

// searchQueue orders states by cost, preferring fewer hops and then
// lexicographic node id so equal-cost searches are deterministic.
type searchQueue []*pqItem

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	if q[i].hops != q[j].hops {
		return q[i].hops < q[j].hops
	}
	if a, b := q[i].nodeID.String(), q[j].nodeID.String(); a != b {
		return a < b
	}
	return q[i].seq < q[j].seq
}

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *searchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// hopDist is one point on a node's cost/hop Pareto frontier.
type hopDist struct {
	hops int
	dist float64
}

// dijkstraBounded runs a hop-bounded minimum-weight search over the
// loaded view. States are (node, hops) pairs: under a hop bound a
// costlier route with fewer hops can still be the only one that reaches
// the end, so a state is discarded only when another state to the same
// node dominates it on both cost and hops.
func dijkstraBounded(
	graph *aggregates.Graph,
	startID, endID valueobjects.NodeID,
	direction valueobjects.Direction,
	maxDepth int,
) *Path {
	frontiers := make(map[valueobjects.NodeID][]hopDist)
	seq := 0

	queue := &searchQueue{}
	heap.Init(queue)
	startItem := &pqItem{nodeID: startID, dist: 0, hops: 0, seq: seq}
	heap.Push(queue, startItem)
	frontiers[startID] = []hopDist{{hops: 0, dist: 0}}

	for queue.Len() > 0 {
		item := heap.Pop(queue).(*pqItem)

		if item.nodeID.Equals(endID) {
			return reconstructPath(graph, item)
		}
		if item.hops == maxDepth {
			continue
		}

		neighbors := graph.Neighbors(item.nodeID, direction, nil)
		sort.Slice(neighbors, func(i, j int) bool {
			return neighbors[i].Edge.ID().String() < neighbors[j].Edge.ID().String()
		})

		for _, neighbor := range neighbors {
			nextDist := item.dist + neighbor.Edge.Weight().Value()
			nextHops := item.hops + 1
			nextID := neighbor.Node.ID()

			if dominated(frontiers[nextID], nextHops, nextDist) {
				continue
			}
			frontiers[nextID] = append(frontiers[nextID], hopDist{hops: nextHops, dist: nextDist})

			seq++
			heap.Push(queue, &pqItem{
				nodeID: nextID,
				dist:   nextDist,
				hops:   nextHops,
				parent: item,
				via:    neighbor.Edge,
				seq:    seq,
			})
		}
	}

	return nil
}

// dominated reports whether an existing state reaches the node at least
// as cheaply in at most as many hops.
func dominated(frontier []hopDist, hops int, dist float64) bool {
	for _, f := range frontier {
		if f.hops <= hops && f.dist <= dist {
			return true
		}
	}
	return false
}

// reconstructPath walks the parent chain back to the start state.
func reconstructPath(graph *aggregates.Graph, item *pqItem) *Path {
	var nodes []*entities.Node
	var edges []*entities.Edge

	for current := item; current != nil; current = current.parent {
		node, _ := graph.Node(current.nodeID)
		nodes = append(nodes, node)
		if current.via != nil {
			edges = append(edges, current.via)
		}
	}

	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return &Path{
		Nodes:       nodes,
		Edges:       edges,
		TotalWeight: item.dist,
	}
}
