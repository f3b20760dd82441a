package memory

import (
	"context"
	"sort"
	"sync"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// SnapshotRepository stores snapshot records in a map guarded by a
// RWMutex.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*entities.Snapshot
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates an empty in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[string]*entities.Snapshot)}
}

func copySnapshot(s *entities.Snapshot) *entities.Snapshot {
	clone, err := entities.ReconstructSnapshot(
		s.ID(),
		s.Name(), s.Description(),
		s.Type(),
		s.Status(),
		s.ComputeDiff(),
		s.ErrorMessage(),
		s.NodeCount(), s.EdgeCount(),
		s.Nodes(), s.Edges(),
		s.Diff(),
		s.Checksum(),
		s.CreatedAt(), s.UpdatedAt(),
		s.CompletedAt(),
		s.Version(),
	)
	if err != nil {
		panic(err)
	}
	return clone
}

// Save creates a snapshot record; the id must be unused.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := snapshot.ID().String()
	if _, exists := r.snapshots[id]; exists {
		return pkgerrors.NewConflictError("snapshot already exists").WithDetail("snapshotId", id)
	}
	r.snapshots[id] = copySnapshot(snapshot)
	return nil
}

// Update rewrites a snapshot conditionally on its base version. The
// version condition is what rejects two concurrent captures of the same
// snapshot id.
func (r *SnapshotRepository) Update(ctx context.Context, snapshot *entities.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := snapshot.ID().String()
	stored, exists := r.snapshots[id]
	if !exists {
		return pkgerrors.SnapshotNotFound(id)
	}
	if stored.Version() != snapshot.BaseVersion() {
		return pkgerrors.VersionMismatch("snapshot", id, snapshot.BaseVersion())
	}
	r.snapshots[id] = copySnapshot(snapshot)
	return nil
}

// GetByID retrieves a snapshot by id.
func (r *SnapshotRepository) GetByID(ctx context.Context, id valueobjects.SnapshotID) (*entities.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, exists := r.snapshots[id.String()]
	if !exists {
		return nil, pkgerrors.SnapshotNotFound(id.String())
	}
	return copySnapshot(stored), nil
}

// List returns one page of matching snapshots, newest first, plus the
// total match count.
func (r *SnapshotRepository) List(ctx context.Context, filter ports.SnapshotFilter) ([]*entities.Snapshot, int, error) {
	matches := make([]*entities.Snapshot, 0)

	r.mu.RLock()
	for _, snapshot := range r.snapshots {
		if filter.Status != nil && snapshot.Status() != *filter.Status {
			continue
		}
		if filter.SnapshotType != nil && snapshot.Type() != *filter.SnapshotType {
			continue
		}
		matches = append(matches, copySnapshot(snapshot))
	}
	r.mu.RUnlock()

	sortSnapshotsNewestFirst(matches)
	total := len(matches)
	return page(matches, filter.Offset, filter.Limit), total, nil
}

// GetLatestComplete returns the most recently completed snapshot, or
// (nil, nil) when none exists.
func (r *SnapshotRepository) GetLatestComplete(ctx context.Context) (*entities.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *entities.Snapshot
	for _, snapshot := range r.snapshots {
		if snapshot.Status() != entities.SnapshotComplete || snapshot.CompletedAt() == nil {
			continue
		}
		if latest == nil || snapshot.CompletedAt().After(*latest.CompletedAt()) {
			latest = snapshot
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copySnapshot(latest), nil
}

// ListRecent returns the newest snapshots first, capped at limit.
func (r *SnapshotRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	recent := make([]*entities.Snapshot, 0)

	r.mu.RLock()
	for _, snapshot := range r.snapshots {
		recent = append(recent, copySnapshot(snapshot))
	}
	r.mu.RUnlock()

	sortSnapshotsNewestFirst(recent)
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func sortSnapshotsNewestFirst(snapshots []*entities.Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].CreatedAt().Equal(snapshots[j].CreatedAt()) {
			return snapshots[i].CreatedAt().After(snapshots[j].CreatedAt())
		}
		return snapshots[i].ID().String() < snapshots[j].ID().String()
	})
}
