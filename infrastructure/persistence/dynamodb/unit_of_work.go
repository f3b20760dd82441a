package dynamodb

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// TransactWriteItems caps a transaction at 100 items.
const transactItemLimit = 100

// UnitOfWork stages writes into a single TransactWriteItems call.
// Repositories obtained from it intercept writes; reads pass through to
// the live table, so a staged write is not visible to a read inside the
// same unit. Conditional failures inside the transaction surface as the
// same conflict errors the direct repositories return.
//
// Snapshot payload chunks cannot ride the transaction (a large capture
// alone would blow the item limit), so staged snapshot updates commit
// the metadata item transactionally and write chunks immediately after
// a successful commit.
type UnitOfWork struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger

	nodes     *NodeRepository
	edges     *EdgeRepository
	snapshots *SnapshotRepository
	audit     *AuditStore

	mu         sync.Mutex
	active     bool
	staged     []types.TransactWriteItem
	postCommit []func(ctx context.Context) error
	// conflicts maps the index of a staged item to the conflict error to
	// surface when its condition fails.
	conflicts map[int]error
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a new UnitOfWork
func NewUnitOfWork(
	client *dynamodb.Client,
	tableName string,
	nodes *NodeRepository,
	edges *EdgeRepository,
	snapshots *SnapshotRepository,
	audit *AuditStore,
	logger *zap.Logger,
) *UnitOfWork {
	return &UnitOfWork{
		client:    client,
		tableName: tableName,
		nodes:     nodes,
		edges:     edges,
		snapshots: snapshots,
		audit:     audit,
		logger:    logger,
	}
}

// Begin opens the unit. A unit cannot be reentered.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.active {
		return pkgerrors.NewInternalError("unit of work already active")
	}
	u.active = true
	u.staged = nil
	u.postCommit = nil
	u.conflicts = make(map[int]error)
	return nil
}

// Commit applies every staged write in one transaction, then runs the
// post-commit actions.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.active {
		return pkgerrors.NewInternalError("commit without begin")
	}
	u.active = false

	if len(u.staged) == 0 {
		return nil
	}
	if len(u.staged) > transactItemLimit {
		return pkgerrors.NewDatabaseError("commit transaction",
			errors.New("too many writes for one transaction"))
	}

	_, err := u.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: u.staged,
	})
	if err != nil {
		if conflict := u.conflictFor(err); conflict != nil {
			return conflict
		}
		return pkgerrors.NewDatabaseError("commit transaction", err)
	}

	for _, action := range u.postCommit {
		if err := action(ctx); err != nil {
			return err
		}
	}

	u.logger.Debug("Unit of work committed", zap.Int("writes", len(u.staged)))
	return nil
}

// Rollback discards the staged writes. Nothing has touched the table.
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = false
	u.staged = nil
	u.postCommit = nil
	u.conflicts = nil
	return nil
}

// conflictFor maps a transaction cancellation back to the staged item
// whose condition failed.
func (u *UnitOfWork) conflictFor(err error) error {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return nil
	}
	for i, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			if conflict, ok := u.conflicts[i]; ok {
				return conflict
			}
		}
	}
	return nil
}

func (u *UnitOfWork) stage(item types.TransactWriteItem, conflict error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.staged = append(u.staged, item)
	if conflict != nil {
		u.conflicts[len(u.staged)-1] = conflict
	}
}

func (u *UnitOfWork) stageAll(items []types.TransactWriteItem, conflict error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, item := range items {
		u.staged = append(u.staged, item)
		// The canonical item carries the condition; it is always first.
		if conflict != nil && i == 0 {
			u.conflicts[len(u.staged)-1] = conflict
		}
	}
}

func (u *UnitOfWork) addPostCommit(action func(ctx context.Context) error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.postCommit = append(u.postCommit, action)
}

func (u *UnitOfWork) NodeRepository() ports.NodeRepository {
	return &txNodeRepo{NodeRepository: u.nodes, uow: u}
}

func (u *UnitOfWork) EdgeRepository() ports.EdgeRepository {
	return &txEdgeRepo{EdgeRepository: u.edges, uow: u}
}

func (u *UnitOfWork) SnapshotRepository() ports.SnapshotRepository {
	return &txSnapshotRepo{SnapshotRepository: u.snapshots, uow: u}
}

func (u *UnitOfWork) AuditLogRepository() ports.AuditLogRepository {
	return &txAuditRepo{AuditStore: u.audit, uow: u}
}

// putTransactItem builds a conditional Put for the staged transaction.
func putTransactItem(tableName string, item interface{}, cond *expression.Expression) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, pkgerrors.NewDatabaseError("marshal staged write", err)
	}
	put := &types.Put{
		TableName: aws.String(tableName),
		Item:      av,
	}
	if cond != nil {
		put.ConditionExpression = cond.Condition()
		put.ExpressionAttributeNames = cond.Names()
		put.ExpressionAttributeValues = cond.Values()
	}
	return types.TransactWriteItem{Put: put}, nil
}

func mustNotExist() (*expression.Expression, error) {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build staged condition", err)
	}
	return &expr, nil
}

func versionEquals(version int) (*expression.Expression, error) {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(version))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build staged condition", err)
	}
	return &expr, nil
}

// txNodeRepo stages node writes; reads pass through.
type txNodeRepo struct {
	*NodeRepository
	uow *UnitOfWork
}

func (r *txNodeRepo) Save(ctx context.Context, node *entities.Node) error {
	cond, err := mustNotExist()
	if err != nil {
		return err
	}
	item, err := putTransactItem(r.uow.tableName, newNodeItem(node), cond)
	if err != nil {
		return err
	}
	r.uow.stage(item, pkgerrors.NewConflictError("node already exists").WithDetail("nodeId", node.ID().String()))
	return nil
}

func (r *txNodeRepo) Update(ctx context.Context, node *entities.Node) error {
	cond, err := versionEquals(node.BaseVersion())
	if err != nil {
		return err
	}
	item, err := putTransactItem(r.uow.tableName, newNodeItem(node), cond)
	if err != nil {
		return err
	}
	r.uow.stage(item, pkgerrors.VersionMismatch("node", node.ID().String(), node.BaseVersion()))
	return nil
}

// txEdgeRepo stages edge writes, carrying the adjacency copies along in
// the same transaction.
type txEdgeRepo struct {
	*EdgeRepository
	uow *UnitOfWork
}

func (r *txEdgeRepo) Save(ctx context.Context, edge *entities.Edge) error {
	cond, err := mustNotExist()
	if err != nil {
		return err
	}
	items, err := r.EdgeRepository.writeItems(edge, cond)
	if err != nil {
		return err
	}
	r.uow.stageAll(items, pkgerrors.NewConflictError("edge already exists").WithDetail("edgeId", edge.ID().String()))
	return nil
}

func (r *txEdgeRepo) Update(ctx context.Context, edge *entities.Edge) error {
	stored, err := r.EdgeRepository.GetByID(ctx, edge.ID())
	if err != nil {
		return err
	}

	cond, err := versionEquals(edge.BaseVersion())
	if err != nil {
		return err
	}
	items, err := r.EdgeRepository.writeItems(edge, cond)
	if err != nil {
		return err
	}
	for _, endpoint := range staleEndpoints(stored, edge) {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(r.uow.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pkNodePrefix + endpoint},
					"SK": &types.AttributeValueMemberS{Value: skEdgePrefix + edge.ID().String()},
				},
			},
		})
	}
	r.uow.stageAll(items, pkgerrors.VersionMismatch("edge", edge.ID().String(), edge.BaseVersion()))
	return nil
}

// txSnapshotRepo stages the metadata write; payload chunks are written
// post-commit.
type txSnapshotRepo struct {
	*SnapshotRepository
	uow *UnitOfWork
}

func (r *txSnapshotRepo) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	item, err := newSnapshotItem(snapshot, 0, 0)
	if err != nil {
		return err
	}
	cond, err := mustNotExist()
	if err != nil {
		return err
	}
	staged, err := putTransactItem(r.uow.tableName, item, cond)
	if err != nil {
		return err
	}
	r.uow.stage(staged, pkgerrors.NewConflictError("snapshot already exists").WithDetail("snapshotId", snapshot.ID().String()))
	return nil
}

func (r *txSnapshotRepo) Update(ctx context.Context, snapshot *entities.Snapshot) error {
	nodeChunks, err := chunkPayloads(snapshot.Nodes())
	if err != nil {
		return err
	}
	edgeChunks, err := chunkPayloads(snapshot.Edges())
	if err != nil {
		return err
	}

	item, err := newSnapshotItem(snapshot, len(nodeChunks), len(edgeChunks))
	if err != nil {
		return err
	}
	cond, err := versionEquals(snapshot.BaseVersion())
	if err != nil {
		return err
	}
	staged, err := putTransactItem(r.uow.tableName, item, cond)
	if err != nil {
		return err
	}
	r.uow.stage(staged, pkgerrors.VersionMismatch("snapshot", snapshot.ID().String(), snapshot.BaseVersion()))

	pk := pkSnapshotPrefix + snapshot.ID().String()
	r.uow.addPostCommit(func(ctx context.Context) error {
		if err := r.SnapshotRepository.writeChunks(ctx, pk, chunkKindNodes, nodeChunks); err != nil {
			return err
		}
		return r.SnapshotRepository.writeChunks(ctx, pk, chunkKindEdges, edgeChunks)
	})
	return nil
}

// txAuditRepo stages audit appends.
type txAuditRepo struct {
	*AuditStore
	uow *UnitOfWork
}

func (r *txAuditRepo) Append(ctx context.Context, entry *entities.AuditEntry) error {
	cond, err := mustNotExist()
	if err != nil {
		return err
	}
	item, err := putTransactItem(r.uow.tableName, newAuditItem(entry), cond)
	if err != nil {
		return err
	}
	r.uow.stage(item, pkgerrors.NewConflictError("audit entry already exists").WithDetail("entryId", entry.ID))
	return nil
}

func (r *txAuditRepo) AppendBatch(ctx context.Context, entries []*entities.AuditEntry) error {
	for _, entry := range entries {
		if err := r.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
