package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// TraversalService walks the live graph breadth-first from a start node.
// Each level costs one edge batch and one node batch against the store,
// so the depth and node bounds directly cap storage work.
type TraversalService struct {
	nodeRepo ports.NodeRepository
	edgeRepo ports.EdgeRepository
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewTraversalService creates a traversal service
func NewTraversalService(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *TraversalService {
	return &TraversalService{
		nodeRepo: nodeRepo,
		edgeRepo: edgeRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// TraversalRequest bounds one traversal.
type TraversalRequest struct {
	StartNodeID string
	Direction   valueobjects.Direction
	MaxDepth    int
	NodeTypes   []valueobjects.NodeType
	EdgeTypes   []valueobjects.EdgeType
	Limit       int
}

// PathRef is one representative route from the start node, recorded as
// alternating ids: NodeIDs has one more entry than EdgeIDs.
type PathRef struct {
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds"`
	Depth   int      `json:"depth"`
}

// TraversalResult is the outcome of one bounded traversal. VisitedNodes
// and Paths are index-aligned and in breadth-first discovery order, so
// each path is a minimum-hop route to its node.
type TraversalResult struct {
	StartNode         *entities.Node   `json:"startNode"`
	VisitedNodes      []*entities.Node `json:"visitedNodes"`
	Paths             []PathRef        `json:"paths"`
	TotalNodesVisited int              `json:"totalNodesVisited"`
	Depth             int              `json:"depth"`
}

// stagedVia remembers how a candidate node was first discovered.
type stagedVia struct {
	parent valueobjects.NodeID
	edge   *entities.Edge
}

// Traverse expands breadth-first from the start node. Expansion follows
// only active edges matching the direction and type filters, visits only
// active nodes, and stops at MaxDepth or Limit visited nodes, whichever
// comes first. A zero MaxDepth visits only the start node.
func (s *TraversalService) Traverse(ctx context.Context, req TraversalRequest) (*TraversalResult, error) {
	startID, err := valueobjects.NewNodeIDFromString(req.StartNodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid start node id").
			WithDetail("startNodeId", req.StartNodeID)
	}
	if req.MaxDepth < 0 {
		return nil, pkgerrors.NewValidationError("maxDepth cannot be negative")
	}

	maxDepth := req.MaxDepth
	if maxDepth > s.cfg.MaxTraversalDepth {
		maxDepth = s.cfg.MaxTraversalDepth
	}
	limit := req.Limit
	if limit <= 0 || limit > s.cfg.MaxTraversalNodes {
		limit = s.cfg.MaxTraversalNodes
	}

	start, err := s.nodeRepo.GetByID(ctx, startID)
	if err != nil {
		return nil, err
	}
	if !start.IsActive() {
		return nil, pkgerrors.NodeNotFound(startID.String())
	}

	began := time.Now()

	visited := map[valueobjects.NodeID]bool{startID: true}
	rejected := make(map[valueobjects.NodeID]bool)
	order := []*entities.Node{start}
	depthOf := map[valueobjects.NodeID]int{startID: 0}
	parentOf := make(map[valueobjects.NodeID]valueobjects.NodeID)
	viaEdge := make(map[valueobjects.NodeID]*entities.Edge)

	frontier := []valueobjects.NodeID{startID}

	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(order) < limit; depth++ {
		edges, err := s.edgeRepo.GetByNodeIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}

		incident := groupEdgesByEndpoint(edges, frontier)

		// Stage unseen neighbors in frontier order; the first discovery
		// fixes the representative path.
		var candidateIDs []valueobjects.NodeID
		staging := make(map[valueobjects.NodeID]stagedVia)
		for _, from := range frontier {
			for _, edge := range incident[from] {
				if !hopAllowed(req.Direction, edge, from) {
					continue
				}
				if !matchesEdgeTypeFilter(edge.Type(), req.EdgeTypes) {
					continue
				}
				neighbor := edge.OtherEnd(from)
				if visited[neighbor] || rejected[neighbor] {
					continue
				}
				if _, already := staging[neighbor]; already {
					continue
				}
				staging[neighbor] = stagedVia{parent: from, edge: edge}
				candidateIDs = append(candidateIDs, neighbor)
			}
		}
		if len(candidateIDs) == 0 {
			break
		}

		candidates, err := s.nodeRepo.GetBatch(ctx, candidateIDs)
		if err != nil {
			return nil, err
		}
		candidateByID := make(map[valueobjects.NodeID]*entities.Node, len(candidates))
		for _, node := range candidates {
			candidateByID[node.ID()] = node
		}

		var next []valueobjects.NodeID
		for _, id := range candidateIDs {
			if len(order) >= limit {
				break
			}
			node, found := candidateByID[id]
			if !found || !node.IsActive() || !matchesNodeTypeFilter(node.Type(), req.NodeTypes) {
				rejected[id] = true
				continue
			}

			via := staging[id]
			visited[id] = true
			depthOf[id] = depth + 1
			parentOf[id] = via.parent
			viaEdge[id] = via.edge
			order = append(order, node)
			next = append(next, id)
		}

		frontier = next
	}

	result := &TraversalResult{
		StartNode:         start,
		VisitedNodes:      order,
		Paths:             make([]PathRef, 0, len(order)),
		TotalNodesVisited: len(order),
	}
	for _, node := range order {
		path := s.pathTo(node.ID(), startID, parentOf, viaEdge)
		result.Paths = append(result.Paths, path)
		if path.Depth > result.Depth {
			result.Depth = path.Depth
		}
	}

	s.logger.Debug("Traversal completed",
		zap.String("startNodeId", startID.String()),
		zap.String("direction", req.Direction.String()),
		zap.Int("visited", result.TotalNodesVisited),
		zap.Int("depth", result.Depth),
		zap.Duration("took", time.Since(began)),
	)

	return result, nil
}

// pathTo reconstructs the representative path by walking parent links
// back to the start node.
func (s *TraversalService) pathTo(
	id, startID valueobjects.NodeID,
	parentOf map[valueobjects.NodeID]valueobjects.NodeID,
	viaEdge map[valueobjects.NodeID]*entities.Edge,
) PathRef {
	var nodeIDs, edgeIDs []string

	current := id
	for !current.Equals(startID) {
		nodeIDs = append(nodeIDs, current.String())
		edgeIDs = append(edgeIDs, viaEdge[current].ID().String())
		current = parentOf[current]
	}
	nodeIDs = append(nodeIDs, startID.String())

	reverseStrings(nodeIDs)
	reverseStrings(edgeIDs)

	return PathRef{
		NodeIDs: nodeIDs,
		EdgeIDs: edgeIDs,
		Depth:   len(edgeIDs),
	}
}

// groupEdgesByEndpoint indexes a batch of edges by the frontier node they
// touch. Incident edges are ordered oldest first with the id as a tie
// break, which keeps traversal output stable across runs.
func groupEdgesByEndpoint(edges []*entities.Edge, frontier []valueobjects.NodeID) map[valueobjects.NodeID][]*entities.Edge {
	frontierSet := make(map[valueobjects.NodeID]bool, len(frontier))
	for _, id := range frontier {
		frontierSet[id] = true
	}

	incident := make(map[valueobjects.NodeID][]*entities.Edge, len(frontier))
	for _, edge := range edges {
		if frontierSet[edge.SourceID()] {
			incident[edge.SourceID()] = append(incident[edge.SourceID()], edge)
		}
		if frontierSet[edge.TargetID()] && !edge.IsSelfLoop() {
			incident[edge.TargetID()] = append(incident[edge.TargetID()], edge)
		}
	}

	for _, list := range incident {
		sort.Slice(list, func(i, j int) bool {
			if list[i].CreatedAt().Equal(list[j].CreatedAt()) {
				return list[i].ID().String() < list[j].ID().String()
			}
			return list[i].CreatedAt().Before(list[j].CreatedAt())
		})
	}

	return incident
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i] = s[j]
	}
}
