package dynamodb

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	pkgerrors "atlas-graph/pkg/errors"
)

// DistributedLock is an advisory lock built on conditional writes. A
// lock row may be taken when it does not exist or when the previous
// holder's TTL has lapsed; Acquire fails fast rather than waiting. The
// table's TTL attribute eventually removes rows whose holder never
// released.
type DistributedLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.DistributedLock = (*DistributedLock)(nil)

// NewDistributedLock creates a new DistributedLock
func NewDistributedLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

type lockItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	LockID     string `dynamodbav:"LockID"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"`
}

// Acquire takes the lock for resource, failing with a LockNotAcquired
// error when another holder's lease is still live.
func (dl *DistributedLock) Acquire(ctx context.Context, resource string, ttl time.Duration) (ports.LockHandle, error) {
	now := time.Now()
	item := lockItem{
		PK:         pkLockPrefix + resource,
		SK:         skMetadata,
		LockID:     uuid.New().String(),
		AcquiredAt: sortableTime(now),
		ExpiresAt:  now.Add(ttl).UnixNano(),
		TTL:        now.Add(ttl).Unix() + 1,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("marshal lock", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Or(
			expression.Name("PK").AttributeNotExists(),
			expression.Name("ExpiresAt").LessThan(expression.Value(now.UnixNano())),
		)).
		Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build lock condition", err)
	}

	_, err = dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(dl.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return nil, pkgerrors.LockNotAcquired(resource)
		}
		return nil, pkgerrors.NewDatabaseError("acquire lock", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("resource", resource),
		zap.String("lockId", item.LockID),
		zap.Duration("ttl", ttl),
	)
	return &lockHandle{lock: dl, resource: resource, lockID: item.LockID}, nil
}

type lockHandle struct {
	lock     *DistributedLock
	resource string
	lockID   string
	once     sync.Once
}

func (h *lockHandle) Resource() string { return h.resource }

// Release deletes the lock row if this handle still owns it. A lease
// that expired and was re-acquired elsewhere is left alone.
func (h *lockHandle) Release(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		cond, berr := expression.NewBuilder().
			WithCondition(expression.Name("LockID").Equal(expression.Value(h.lockID))).
			Build()
		if berr != nil {
			err = pkgerrors.NewDatabaseError("build lock condition", berr)
			return
		}

		_, derr := h.lock.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(h.lock.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pkLockPrefix + h.resource},
				"SK": &types.AttributeValueMemberS{Value: skMetadata},
			},
			ConditionExpression:       cond.Condition(),
			ExpressionAttributeNames:  cond.Names(),
			ExpressionAttributeValues: cond.Values(),
		})
		if derr != nil {
			if isConditionalCheckFailure(derr) {
				h.lock.logger.Warn("Lock lease expired before release",
					zap.String("resource", h.resource),
					zap.String("lockId", h.lockID),
				)
				return
			}
			err = pkgerrors.NewDatabaseError("release lock", derr)
		}
	})
	return err
}
