// Package memory implements the persistence ports over in-process maps.
// It backs local development and the test suites; the DynamoDB package is
// the deployed implementation. Repositories copy entities on the way in
// and out so callers never share mutable state with the store, and writes
// enforce the same version conditions as the conditional writes in
// DynamoDB.
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

// NodeRepository stores nodes in a map guarded by a RWMutex.
type NodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]*entities.Node
}

var _ ports.NodeRepository = (*NodeRepository)(nil)

// NewNodeRepository creates an empty in-memory node repository
func NewNodeRepository() *NodeRepository {
	return &NodeRepository{nodes: make(map[string]*entities.Node)}
}

func copyNode(node *entities.Node) *entities.Node {
	clone, err := entities.ReconstructNode(
		node.ID(),
		node.Type(),
		node.Label(),
		node.Description(),
		node.Tags(), node.Categories(),
		node.Properties(),
		node.Confidence(),
		node.IsActive(),
		node.CentralityScore(),
		node.ClusterID(),
		node.Embedding(),
		node.CreatedAt(), node.UpdatedAt(),
		node.Version(),
	)
	if err != nil {
		// The source was a valid entity; reconstruction cannot fail.
		panic(err)
	}
	return clone
}

// Save creates a node; the id must be unused.
func (r *NodeRepository) Save(ctx context.Context, node *entities.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := node.ID().String()
	if _, exists := r.nodes[id]; exists {
		return pkgerrors.NewConflictError("node already exists").WithDetail("nodeId", id)
	}
	r.nodes[id] = copyNode(node)
	return nil
}

// Update rewrites a node conditionally on its base version.
func (r *NodeRepository) Update(ctx context.Context, node *entities.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := node.ID().String()
	stored, exists := r.nodes[id]
	if !exists {
		return pkgerrors.NodeNotFound(id)
	}
	if stored.Version() != node.BaseVersion() {
		return pkgerrors.VersionMismatch("node", id, node.BaseVersion())
	}
	r.nodes[id] = copyNode(node)
	return nil
}

// GetByID retrieves a node by id.
func (r *NodeRepository) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, exists := r.nodes[id.String()]
	if !exists {
		return nil, pkgerrors.NodeNotFound(id.String())
	}
	return copyNode(stored), nil
}

// GetBatch retrieves the nodes that exist among the given ids; missing
// ids are omitted.
func (r *NodeRepository) GetBatch(ctx context.Context, ids []valueobjects.NodeID) ([]*entities.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]*entities.Node, 0, len(ids))
	for _, id := range ids {
		if stored, exists := r.nodes[id.String()]; exists {
			nodes = append(nodes, copyNode(stored))
		}
	}
	return nodes, nil
}

// List returns one page of matching nodes, newest-updated first, plus the
// total match count independent of the pagination window.
func (r *NodeRepository) List(ctx context.Context, filter ports.NodeFilter) ([]*entities.Node, int, error) {
	matches := make([]*entities.Node, 0)

	r.mu.RLock()
	for _, node := range r.nodes {
		if nodeMatches(node, filter) {
			matches = append(matches, copyNode(node))
		}
	}
	r.mu.RUnlock()

	sortNodesNewestFirst(matches)
	total := len(matches)
	return page(matches, filter.Offset, filter.Limit), total, nil
}

// ListActive returns active nodes; limit <= 0 means unbounded.
func (r *NodeRepository) ListActive(ctx context.Context, limit int) ([]*entities.Node, error) {
	active := make([]*entities.Node, 0)

	r.mu.RLock()
	for _, node := range r.nodes {
		if node.IsActive() {
			active = append(active, copyNode(node))
		}
	}
	r.mu.RUnlock()

	sortNodesNewestFirst(active)
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// ListChangedSince returns nodes updated after the given instant,
// including soft-deleted ones.
func (r *NodeRepository) ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Node, error) {
	changed := make([]*entities.Node, 0)

	r.mu.RLock()
	for _, node := range r.nodes {
		if node.UpdatedAt().After(since) {
			changed = append(changed, copyNode(node))
		}
	}
	r.mu.RUnlock()

	sortNodesNewestFirst(changed)
	if limit > 0 && len(changed) > limit {
		changed = changed[:limit]
	}
	return changed, nil
}

// CountByType counts all nodes per type.
func (r *NodeRepository) CountByType(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, node := range r.nodes {
		counts[node.Type().String()]++
	}
	return counts, nil
}

func nodeMatches(node *entities.Node, filter ports.NodeFilter) bool {
	if filter.IsActive != nil && node.IsActive() != *filter.IsActive {
		return false
	}
	if len(filter.NodeTypes) > 0 {
		found := false
		for _, t := range filter.NodeTypes {
			if node.Type() == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range filter.Tags {
		if !node.HasTag(tag) {
			return false
		}
	}
	for _, category := range filter.Categories {
		if !node.HasCategory(category) {
			return false
		}
	}
	if filter.MinConfidence != nil && node.Confidence().Value() < *filter.MinConfidence {
		return false
	}
	if filter.UpdatedAfter != nil && !node.UpdatedAt().After(*filter.UpdatedAfter) {
		return false
	}
	if filter.Search != "" && !node.MatchesQuery(filter.Search) {
		return false
	}
	return true
}

func sortNodesNewestFirst(nodes []*entities.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].UpdatedAt().Equal(nodes[j].UpdatedAt()) {
			return nodes[i].UpdatedAt().After(nodes[j].UpdatedAt())
		}
		return nodes[i].ID().String() < nodes[j].ID().String()
	})
}

// page applies offset pagination; a non-positive limit disables the cap.
func page[T any](matches []T, offset, limit int) []T {
	if offset >= len(matches) {
		return []T{}
	}
	window := matches[offset:]
	if limit > 0 && len(window) > limit {
		window = window[:limit]
	}
	return window
}
