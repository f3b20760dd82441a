package memory

import (
	"context"
	"sync"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// UnitOfWork stages writes and applies them on Commit. A mutex spans
// Begin through Commit/Rollback, so transactions through one unit of
// work serialize; that matches the per-id write serialization the engine
// requires and keeps the memory implementation honest about atomicity.
type UnitOfWork struct {
	nodes     *NodeRepository
	edges     *EdgeRepository
	snapshots *SnapshotRepository
	audit     *AuditLogRepository

	mu     sync.Mutex
	active bool
	staged []func(ctx context.Context) error
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a unit of work over the given repositories
func NewUnitOfWork(
	nodes *NodeRepository,
	edges *EdgeRepository,
	snapshots *SnapshotRepository,
	audit *AuditLogRepository,
) *UnitOfWork {
	return &UnitOfWork{
		nodes:     nodes,
		edges:     edges,
		snapshots: snapshots,
		audit:     audit,
	}
}

// Begin opens a transaction and blocks until any other transaction on
// this unit of work finishes.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	u.active = true
	u.staged = u.staged[:0]
	return nil
}

// Commit applies the staged writes in order. The first failure aborts
// the remainder.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if !u.active {
		return pkgerrors.NewInternalError("commit without begin")
	}

	var err error
	for _, op := range u.staged {
		if err = op(ctx); err != nil {
			break
		}
	}

	u.staged = nil
	u.active = false
	u.mu.Unlock()
	return err
}

// Rollback discards staged writes. Safe to call after Commit; it then
// does nothing.
func (u *UnitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	u.staged = nil
	u.active = false
	u.mu.Unlock()
	return nil
}

func (u *UnitOfWork) stage(op func(ctx context.Context) error) {
	u.staged = append(u.staged, op)
}

// NodeRepository returns the node repository bound to this transaction.
// Writes stage until Commit; reads pass through.
func (u *UnitOfWork) NodeRepository() ports.NodeRepository {
	return &stagedNodeRepo{NodeRepository: u.nodes, uow: u}
}

// EdgeRepository returns the edge repository bound to this transaction.
func (u *UnitOfWork) EdgeRepository() ports.EdgeRepository {
	return &stagedEdgeRepo{EdgeRepository: u.edges, uow: u}
}

// SnapshotRepository returns the snapshot repository bound to this
// transaction.
func (u *UnitOfWork) SnapshotRepository() ports.SnapshotRepository {
	return &stagedSnapshotRepo{SnapshotRepository: u.snapshots, uow: u}
}

// AuditLogRepository returns the audit log bound to this transaction.
func (u *UnitOfWork) AuditLogRepository() ports.AuditLogRepository {
	return &stagedAuditRepo{AuditLogRepository: u.audit, uow: u}
}

type stagedNodeRepo struct {
	*NodeRepository
	uow *UnitOfWork
}

func (r *stagedNodeRepo) Save(ctx context.Context, node *entities.Node) error {
	r.uow.stage(func(ctx context.Context) error { return r.NodeRepository.Save(ctx, node) })
	return nil
}

func (r *stagedNodeRepo) Update(ctx context.Context, node *entities.Node) error {
	r.uow.stage(func(ctx context.Context) error { return r.NodeRepository.Update(ctx, node) })
	return nil
}

type stagedEdgeRepo struct {
	*EdgeRepository
	uow *UnitOfWork
}

func (r *stagedEdgeRepo) Save(ctx context.Context, edge *entities.Edge) error {
	r.uow.stage(func(ctx context.Context) error { return r.EdgeRepository.Save(ctx, edge) })
	return nil
}

func (r *stagedEdgeRepo) Update(ctx context.Context, edge *entities.Edge) error {
	r.uow.stage(func(ctx context.Context) error { return r.EdgeRepository.Update(ctx, edge) })
	return nil
}

type stagedSnapshotRepo struct {
	*SnapshotRepository
	uow *UnitOfWork
}

func (r *stagedSnapshotRepo) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	r.uow.stage(func(ctx context.Context) error { return r.SnapshotRepository.Save(ctx, snapshot) })
	return nil
}

func (r *stagedSnapshotRepo) Update(ctx context.Context, snapshot *entities.Snapshot) error {
	r.uow.stage(func(ctx context.Context) error { return r.SnapshotRepository.Update(ctx, snapshot) })
	return nil
}

type stagedAuditRepo struct {
	*AuditLogRepository
	uow *UnitOfWork
}

func (r *stagedAuditRepo) Append(ctx context.Context, entry *entities.AuditEntry) error {
	r.uow.stage(func(ctx context.Context) error { return r.AuditLogRepository.Append(ctx, entry) })
	return nil
}

func (r *stagedAuditRepo) AppendBatch(ctx context.Context, entries []*entities.AuditEntry) error {
	r.uow.stage(func(ctx context.Context) error { return r.AuditLogRepository.AppendBatch(ctx, entries) })
	return nil
}
