package dynamodb

import (
	"context"
	"errors"
	"time"

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

// AuditStore is the append-only audit log, doubling as the outbox for
// the event publisher. Fresh entries carry the sparse
// GSI2PK=OUTBOX#PENDING attributes; MarkPublished removes them, which
// drops the entry from the pending index without touching the log
// itself.
type AuditStore struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.AuditLogRepository = (*AuditStore)(nil)

// NewAuditStore creates a new AuditStore
func NewAuditStore(client *dynamodb.Client, tableName string, logger *zap.Logger) *AuditStore {
	return &AuditStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// auditItem is the DynamoDB shape of an audit entry.
type auditItem struct {
	PK         string                 `dynamodbav:"PK"`
	SK         string                 `dynamodbav:"SK"`
	GSI1PK     string                 `dynamodbav:"GSI1PK"`
	GSI1SK     string                 `dynamodbav:"GSI1SK"`
	GSI2PK     string                 `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK     string                 `dynamodbav:"GSI2SK,omitempty"`
	EntityType string                 `dynamodbav:"EntityType"`
	EntryID    string                 `dynamodbav:"EntryID"`
	EventType  string                 `dynamodbav:"EventType"`
	EntityKind string                 `dynamodbav:"EntityKind"`
	EntityID   string                 `dynamodbav:"EntityID"`
	NodeID     string                 `dynamodbav:"NodeID,omitempty"`
	EdgeID     string                 `dynamodbav:"EdgeID,omitempty"`
	Actor      string                 `dynamodbav:"Actor"`
	Before     map[string]interface{} `dynamodbav:"Before,omitempty"`
	After      map[string]interface{} `dynamodbav:"After,omitempty"`
	Metadata   map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	Timestamp  string                 `dynamodbav:"Timestamp"`

	// Outbox bookkeeping. PublishAttempts and LastPublishError survive
	// MarkPublished for postmortems.
	PublishAttempts  int    `dynamodbav:"PublishAttempts"`
	LastPublishError string `dynamodbav:"LastPublishError,omitempty"`
	PublishedAt      string `dynamodbav:"PublishedAt,omitempty"`
}

func newAuditItem(entry *entities.AuditEntry) auditItem {
	sk := updatedSortKey(entry.Timestamp, entry.ID)
	return auditItem{
		PK:         pkAuditPrefix + entry.ID,
		SK:         skMetadata,
		GSI1PK:     classAudit,
		GSI1SK:     sk,
		GSI2PK:     gsi2OutboxPending,
		GSI2SK:     sk,
		EntityType: "AUDIT",
		EntryID:    entry.ID,
		EventType:  entry.EventType,
		EntityKind: string(entry.EntityKind),
		EntityID:   entry.EntityID,
		NodeID:     entry.NodeID,
		EdgeID:     entry.EdgeID,
		Actor:      entry.Actor,
		Before:     entry.Before,
		After:      entry.After,
		Metadata:   entry.Metadata,
		Timestamp:  sortableTime(entry.Timestamp),
	}
}

func (item auditItem) toEntry() (*entities.AuditEntry, error) {
	ts, err := time.Parse(sortKeyTimeFormat, item.Timestamp)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored audit entry has an invalid timestamp")
	}
	return &entities.AuditEntry{
		ID:         item.EntryID,
		EventType:  item.EventType,
		EntityKind: entities.EntityKind(item.EntityKind),
		EntityID:   item.EntityID,
		NodeID:     item.NodeID,
		EdgeID:     item.EdgeID,
		Actor:      item.Actor,
		Before:     item.Before,
		After:      item.After,
		Metadata:   item.Metadata,
		Timestamp:  ts,
	}, nil
}

// Append writes one audit entry. Entry ids are unique by construction;
// the condition guards against a retried command writing twice.
func (s *AuditStore) Append(ctx context.Context, entry *entities.AuditEntry) error {
	av, err := attributevalue.MarshalMap(newAuditItem(entry))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal audit entry", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build audit condition", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return pkgerrors.NewConflictError("audit entry already exists").WithDetail("entryId", entry.ID)
		}
		return pkgerrors.NewDatabaseError("append audit entry", err)
	}
	return nil
}

// AppendBatch writes entries with BatchWriteItem, retrying unprocessed
// items. Batch writes cannot carry conditions; entry ids are fresh UUIDs
// so overwrite is not a concern here.
func (s *AuditStore) AppendBatch(ctx context.Context, entries []*entities.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(entries))
	for _, entry := range entries {
		av, err := attributevalue.MarshalMap(newAuditItem(entry))
		if err != nil {
			return pkgerrors.NewDatabaseError("marshal audit entry", err)
		}
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: av},
		})
	}

	const batchWriteLimit = 25
	for start := 0; start < len(requests); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(requests) {
			end = len(requests)
		}

		pending := requests[start:end]
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= 3 {
				return pkgerrors.NewDatabaseError("append audit batch",
					errors.New("unprocessed audit writes after retries"))
			}
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
			})
			if err != nil {
				return pkgerrors.NewDatabaseError("append audit batch", err)
			}
			pending = out.UnprocessedItems[s.tableName]
		}
	}
	return nil
}

// List returns one page of the audit log, newest first, plus the exact
// total matching the filter.
func (s *AuditStore) List(ctx context.Context, filter ports.AuditFilter) ([]*entities.AuditEntry, int, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classAudit))
	if filter.Since != nil || filter.Until != nil {
		// Entries sort under UPDATED#<ts>#<id>, so a time window maps
		// directly onto a sort key range.
		lo := "UPDATED#"
		hi := "UPDATED#￿"
		if filter.Since != nil {
			lo = "UPDATED#" + sortableTime(*filter.Since)
		}
		if filter.Until != nil {
			hi = "UPDATED#" + sortableTime(*filter.Until) + "#￿"
		}
		keyCond = keyCond.And(expression.Key("GSI1SK").Between(expression.Value(lo), expression.Value(hi)))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("build audit query", err)
	}

	matches := make([]*entities.AuditEntry, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			IndexName:                 aws.String(gsi1Name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("query audit log", err)
		}

		var page []auditItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("unmarshal audit entries", err)
		}
		for _, item := range page {
			entry, err := item.toEntry()
			if err != nil {
				return nil, 0, err
			}
			if auditEntryMatches(entry, filter) {
				matches = append(matches, entry)
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	total := len(matches)
	return pageSlice(matches, filter.Offset, filter.Limit), total, nil
}

func auditEntryMatches(entry *entities.AuditEntry, filter ports.AuditFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, et := range filter.EventTypes {
			if entry.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.NodeID != "" && entry.NodeID != filter.NodeID {
		return false
	}
	if filter.EdgeID != "" && entry.EdgeID != filter.EdgeID {
		return false
	}
	if filter.EntityID != "" && entry.EntityID != filter.EntityID {
		return false
	}
	return true
}

// ListPendingPublish returns unpublished entries oldest first, capped at
// limit, off the sparse outbox index.
func (s *AuditStore) ListPendingPublish(ctx context.Context, limit int) ([]*entities.AuditEntry, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(gsi2OutboxPending))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build outbox query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(gsi2Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query outbox", err)
	}

	var page []auditItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal outbox entries", err)
	}

	entries := make([]*entities.AuditEntry, 0, len(page))
	for _, item := range page {
		entry, err := item.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MarkPublished removes the entry from the outbox index and stamps the
// publish time.
func (s *AuditStore) MarkPublished(ctx context.Context, entryID string) error {
	update := expression.
		Remove(expression.Name("GSI2PK")).
		Remove(expression.Name("GSI2SK")).
		Set(expression.Name("PublishedAt"), expression.Value(sortableTime(time.Now())))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build outbox update", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkAuditPrefix + entryID},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("mark audit entry published", err)
	}
	return nil
}

// MarkPublishFailed records the failure and bumps the attempt counter.
// The entry stays on the outbox index so the next drain retries it.
func (s *AuditStore) MarkPublishFailed(ctx context.Context, entryID string, reason string) error {
	update := expression.
		Set(expression.Name("LastPublishError"), expression.Value(reason)).
		Add(expression.Name("PublishAttempts"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build outbox update", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkAuditPrefix + entryID},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("mark audit publish failure", err)
	}

	s.logger.Warn("Audit entry publish failed",
		zap.String("entryId", entryID),
		zap.String("reason", reason),
	)
	return nil
}
