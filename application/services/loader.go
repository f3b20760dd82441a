package services

import (
	"context"
	"fmt"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/aggregates"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
)

// GraphLoader builds in-memory graph views from the registries. The store
// has no native graph queries, so neighborhoods are assembled level by
// level: one edge batch per hop, one node batch for the new endpoints.
type GraphLoader struct {
	nodeRepo ports.NodeRepository
	edgeRepo ports.EdgeRepository
}

// NewGraphLoader creates a graph loader over the given registries
func NewGraphLoader(nodeRepo ports.NodeRepository, edgeRepo ports.EdgeRepository) *GraphLoader {
	return &GraphLoader{
		nodeRepo: nodeRepo,
		edgeRepo: edgeRepo,
	}
}

// LoadNeighborhood returns a view of everything reachable from the start
// nodes within depth hops, honoring direction and the optional type
// filters. Inactive records never enter the view. Expansion halts once
// maxNodes are loaded; the view is then a truncated but valid subgraph.
func (l *GraphLoader) LoadNeighborhood(
	ctx context.Context,
	startIDs []valueobjects.NodeID,
	depth int,
	direction valueobjects.Direction,
	nodeTypes []valueobjects.NodeType,
	edgeTypes []valueobjects.EdgeType,
	maxNodes int,
) (*aggregates.Graph, error) {
	graph := aggregates.NewGraph()

	starts, err := l.nodeRepo.GetBatch(ctx, startIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load start nodes: %w", err)
	}

	frontier := make([]valueobjects.NodeID, 0, len(starts))
	for _, node := range starts {
		if !node.IsActive() {
			continue
		}
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
		frontier = append(frontier, node.ID())
	}

	// A node rejected once (inactive or filtered out) never becomes
	// traversable, so later levels skip it without another lookup.
	rejected := make(map[valueobjects.NodeID]bool)

	for hop := 0; hop < depth && len(frontier) > 0 && graph.NodeCount() < maxNodes; hop++ {
		edges, err := l.edgeRepo.GetByNodeIDs(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("failed to load edges at depth %d: %w", hop+1, err)
		}

		frontierSet := make(map[valueobjects.NodeID]bool, len(frontier))
		for _, id := range frontier {
			frontierSet[id] = true
		}

		var candidateIDs []valueobjects.NodeID
		staged := make(map[valueobjects.NodeID]bool)
		for _, edge := range edges {
			if !matchesEdgeTypeFilter(edge.Type(), edgeTypes) {
				continue
			}
			for _, from := range []valueobjects.NodeID{edge.SourceID(), edge.TargetID()} {
				if !frontierSet[from] || !hopAllowed(direction, edge, from) {
					continue
				}
				neighbor := edge.OtherEnd(from)
				if graph.HasNode(neighbor) || rejected[neighbor] || staged[neighbor] {
					continue
				}
				staged[neighbor] = true
				candidateIDs = append(candidateIDs, neighbor)
			}
		}

		var next []valueobjects.NodeID
		if len(candidateIDs) > 0 {
			candidates, err := l.nodeRepo.GetBatch(ctx, candidateIDs)
			if err != nil {
				return nil, fmt.Errorf("failed to load nodes at depth %d: %w", hop+1, err)
			}

			for _, node := range candidates {
				if graph.NodeCount() >= maxNodes {
					break
				}
				if !node.IsActive() || !matchesNodeTypeFilter(node.Type(), nodeTypes) {
					rejected[node.ID()] = true
					continue
				}
				if err := graph.AddNode(node); err != nil {
					return nil, err
				}
				next = append(next, node.ID())
			}
		}

		// Index every traversable edge whose endpoints made it into the
		// view, including edges closing a cycle between known nodes.
		for _, edge := range edges {
			if !matchesEdgeTypeFilter(edge.Type(), edgeTypes) {
				continue
			}
			if !graph.HasNode(edge.SourceID()) || !graph.HasNode(edge.TargetID()) {
				continue
			}
			if err := graph.AddEdge(edge); err != nil {
				return nil, err
			}
		}

		frontier = next
	}

	return graph, nil
}

// hopAllowed reports whether the edge can be traversed away from the
// given endpoint under the requested direction. Bidirectional edges are
// traversable either way.
func hopAllowed(direction valueobjects.Direction, edge *entities.Edge, from valueobjects.NodeID) bool {
	if edge.IsBidirectional() {
		return true
	}
	switch direction {
	case valueobjects.DirectionOutgoing:
		return edge.SourceID().Equals(from)
	case valueobjects.DirectionIncoming:
		return edge.TargetID().Equals(from)
	default:
		return true
	}
}

func matchesEdgeTypeFilter(edgeType valueobjects.EdgeType, filter []valueobjects.EdgeType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if t == edgeType {
			return true
		}
	}
	return false
}

func matchesNodeTypeFilter(nodeType valueobjects.NodeType, filter []valueobjects.NodeType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, t := range filter {
		if t == nodeType {
			return true
		}
	}
	return false
}
