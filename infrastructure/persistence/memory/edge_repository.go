package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// EdgeRepository stores edges in a map guarded by a RWMutex.
type EdgeRepository struct {
	mu    sync.RWMutex
	edges map[string]*entities.Edge
}

var _ ports.EdgeRepository = (*EdgeRepository)(nil)

// NewEdgeRepository creates an empty in-memory edge repository
func NewEdgeRepository() *EdgeRepository {
	return &EdgeRepository{edges: make(map[string]*entities.Edge)}
}

func copyEdge(edge *entities.Edge) *entities.Edge {
	clone, err := entities.ReconstructEdge(
		edge.ID(),
		edge.SourceID(), edge.TargetID(),
		edge.Type(),
		edge.Label(),
		edge.Description(),
		edge.Weight(),
		edge.IsBidirectional(),
		edge.Properties(),
		edge.Confidence(),
		edge.IsActive(),
		edge.CreatedAt(), edge.UpdatedAt(),
		edge.Version(),
	)
	if err != nil {
		panic(err)
	}
	return clone
}

// Save creates an edge; the id must be unused.
func (r *EdgeRepository) Save(ctx context.Context, edge *entities.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := edge.ID().String()
	if _, exists := r.edges[id]; exists {
		return pkgerrors.NewConflictError("edge already exists").WithDetail("edgeId", id)
	}
	r.edges[id] = copyEdge(edge)
	return nil
}

// Update rewrites an edge conditionally on its base version.
func (r *EdgeRepository) Update(ctx context.Context, edge *entities.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := edge.ID().String()
	stored, exists := r.edges[id]
	if !exists {
		return pkgerrors.EdgeNotFound(id)
	}
	if stored.Version() != edge.BaseVersion() {
		return pkgerrors.VersionMismatch("edge", id, edge.BaseVersion())
	}
	r.edges[id] = copyEdge(edge)
	return nil
}

// GetByID retrieves an edge by id.
func (r *EdgeRepository) GetByID(ctx context.Context, id valueobjects.EdgeID) (*entities.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, exists := r.edges[id.String()]
	if !exists {
		return nil, pkgerrors.EdgeNotFound(id.String())
	}
	return copyEdge(stored), nil
}

// GetByNodeID returns active edges touching the node as source or target.
func (r *EdgeRepository) GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	return r.GetByNodeIDs(ctx, []valueobjects.NodeID{nodeID})
}

// GetByNodeIDs returns the distinct active edges touching any of the
// given nodes.
func (r *EdgeRepository) GetByNodeIDs(ctx context.Context, nodeIDs []valueobjects.NodeID) ([]*entities.Edge, error) {
	touched := make([]*entities.Edge, 0)

	r.mu.RLock()
	for _, edge := range r.edges {
		if !edge.IsActive() {
			continue
		}
		for _, nodeID := range nodeIDs {
			if edge.Touches(nodeID) {
				touched = append(touched, copyEdge(edge))
				break
			}
		}
	}
	r.mu.RUnlock()

	sortEdgesOldestFirst(touched)
	return touched, nil
}

// List returns one page of matching edges plus the total match count.
func (r *EdgeRepository) List(ctx context.Context, filter ports.EdgeFilter) ([]*entities.Edge, int, error) {
	matches := make([]*entities.Edge, 0)

	r.mu.RLock()
	for _, edge := range r.edges {
		if edgeMatches(edge, filter) {
			matches = append(matches, copyEdge(edge))
		}
	}
	r.mu.RUnlock()

	sortEdgesOldestFirst(matches)
	total := len(matches)
	return page(matches, filter.Offset, filter.Limit), total, nil
}

// ListActive returns active edges; limit <= 0 means unbounded.
func (r *EdgeRepository) ListActive(ctx context.Context, limit int) ([]*entities.Edge, error) {
	active := make([]*entities.Edge, 0)

	r.mu.RLock()
	for _, edge := range r.edges {
		if edge.IsActive() {
			active = append(active, copyEdge(edge))
		}
	}
	r.mu.RUnlock()

	sortEdgesOldestFirst(active)
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// ListChangedSince returns edges updated after the given instant,
// including soft-deleted ones.
func (r *EdgeRepository) ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Edge, error) {
	changed := make([]*entities.Edge, 0)

	r.mu.RLock()
	for _, edge := range r.edges {
		if edge.UpdatedAt().After(since) {
			changed = append(changed, copyEdge(edge))
		}
	}
	r.mu.RUnlock()

	sortEdgesOldestFirst(changed)
	if limit > 0 && len(changed) > limit {
		changed = changed[:limit]
	}
	return changed, nil
}

// CountByType counts all edges per type.
func (r *EdgeRepository) CountByType(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, edge := range r.edges {
		counts[edge.Type().String()]++
	}
	return counts, nil
}

func edgeMatches(edge *entities.Edge, filter ports.EdgeFilter) bool {
	if filter.IsActive != nil && edge.IsActive() != *filter.IsActive {
		return false
	}
	if len(filter.EdgeTypes) > 0 {
		found := false
		for _, t := range filter.EdgeTypes {
			if edge.Type() == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.NodeID != nil && !edge.Touches(*filter.NodeID) {
		return false
	}
	return true
}

func sortEdgesOldestFirst(edges []*entities.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt().Equal(edges[j].CreatedAt()) {
			return edges[i].CreatedAt().Before(edges[j].CreatedAt())
		}
		return edges[i].ID().String() < edges[j].ID().String()
	})
}
