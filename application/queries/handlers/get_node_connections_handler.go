package handlers

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// GetNodeConnectionsHandler serves a node with its incident edges and the
// nodes on the far end of them.
type GetNodeConnectionsHandler struct {
	nodeRepo ports.NodeRepository
	edgeRepo ports.EdgeRepository
	logger   *zap.Logger
}

// NewGetNodeConnectionsHandler creates a new GetNodeConnectionsHandler
func NewGetNodeConnectionsHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	logger *zap.Logger,
) *GetNodeConnectionsHandler {
	return &GetNodeConnectionsHandler{
		nodeRepo: nodeRepo,
		edgeRepo: edgeRepo,
		logger:   logger,
	}
}

// Handle executes the query
func (h *GetNodeConnectionsHandler) Handle(ctx context.Context, query queries.GetNodeConnectionsQuery) (*queries.GetNodeConnectionsResult, error) {
	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid node id").WithDetail("nodeId", query.NodeID)
	}

	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	edges, err := h.edgeRepo.GetByNodeID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt().Equal(edges[j].CreatedAt()) {
			return edges[i].CreatedAt().Before(edges[j].CreatedAt())
		}
		return edges[i].ID().String() < edges[j].ID().String()
	})

	result := &queries.GetNodeConnectionsResult{
		Node:          queries.NodeViewFrom(node),
		IncomingEdges: []queries.EdgeView{},
		OutgoingEdges: []queries.EdgeView{},
		Neighbors:     []queries.NeighborView{},
	}

	neighborIDs := make([]valueobjects.NodeID, 0, len(edges))
	seen := make(map[valueobjects.NodeID]bool)
	for _, edge := range edges {
		view := queries.EdgeViewFrom(edge)
		if edge.SourceID().Equals(nodeID) {
			result.OutgoingEdges = append(result.OutgoingEdges, view)
		}
		if edge.TargetID().Equals(nodeID) {
			result.IncomingEdges = append(result.IncomingEdges, view)
		}

		if edge.IsSelfLoop() {
			continue
		}
		other := edge.OtherEnd(nodeID)
		if !seen[other] {
			seen[other] = true
			neighborIDs = append(neighborIDs, other)
		}
	}

	neighbors, err := h.nodeRepo.GetBatch(ctx, neighborIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[valueobjects.NodeID]*entities.Node, len(neighbors))
	for _, neighbor := range neighbors {
		byID[neighbor.ID()] = neighbor
	}

	// One neighbor entry per incident edge; parallel edges repeat the node.
	for _, edge := range edges {
		if edge.IsSelfLoop() {
			continue
		}
		neighbor, ok := byID[edge.OtherEnd(nodeID)]
		if !ok || !neighbor.IsActive() {
			continue
		}
		result.Neighbors = append(result.Neighbors, queries.NeighborView{
			Node: queries.NodeViewFrom(neighbor),
			Edge: queries.EdgeViewFrom(edge),
		})
	}

	h.logger.Debug("Node connections retrieved",
		zap.String("nodeId", query.NodeID),
		zap.Int("incoming", len(result.IncomingEdges)),
		zap.Int("outgoing", len(result.OutgoingEdges)),
		zap.Int("neighbors", len(result.Neighbors)),
	)

	return result, nil
}
