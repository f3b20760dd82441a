package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// Captured payload chunking. A full capture can exceed the 400KB item
// cap, so captured nodes and edges are stored as JSON chunks under the
// snapshot's partition and reassembled on read. 500 captured records per
// chunk keeps each item well under the cap even with heavy property bags.
const (
	chunkKindNodes   = "NODES"
	chunkKindEdges   = "EDGES"
	recordsPerChunk  = 500
	chunkIndexFormat = "%06d"
)

// SnapshotRepository persists snapshot records. The metadata item carries
// the state machine and summary; the captured payload lives in chunk
// items under the same partition. Status transitions ride the metadata
// item's version condition, which is what rejects a second capture of
// the same snapshot running concurrently.
type SnapshotRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// snapshotItem is the DynamoDB shape of a snapshot's metadata.
type snapshotItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK"`
	GSI1SK       string `dynamodbav:"GSI1SK"`
	GSI2PK       string `dynamodbav:"GSI2PK"`
	GSI2SK       string `dynamodbav:"GSI2SK"`
	EntityType   string `dynamodbav:"EntityType"`
	SnapshotID   string `dynamodbav:"SnapshotID"`
	Name         string `dynamodbav:"Name"`
	Description  string `dynamodbav:"Description,omitempty"`
	SnapshotType string `dynamodbav:"SnapshotType"`
	Status       string `dynamodbav:"Status"`
	ComputeDiff  bool   `dynamodbav:"ComputeDiff"`
	ErrorMessage string `dynamodbav:"ErrorMessage,omitempty"`
	NodeCount    int    `dynamodbav:"NodeCount"`
	EdgeCount    int    `dynamodbav:"EdgeCount"`
	NodeChunks   int    `dynamodbav:"NodeChunks"`
	EdgeChunks   int    `dynamodbav:"EdgeChunks"`
	DiffJSON     string `dynamodbav:"DiffJSON,omitempty"`
	Checksum     string `dynamodbav:"Checksum,omitempty"`
	Version      int    `dynamodbav:"Version"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
	CompletedAt  string `dynamodbav:"CompletedAt,omitempty"`
}

// chunkItem is one slice of a snapshot's captured payload.
type chunkItem struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Payload string `dynamodbav:"Payload"`
}

func newSnapshotItem(snapshot *entities.Snapshot, nodeChunks, edgeChunks int) (snapshotItem, error) {
	id := snapshot.ID().String()
	sk := updatedSortKey(snapshot.UpdatedAt(), id)
	item := snapshotItem{
		PK:           pkSnapshotPrefix + id,
		SK:           skMetadata,
		GSI1PK:       classSnapshot,
		GSI1SK:       sk,
		GSI2PK:       gsi2SnapStatusPrefix + string(snapshot.Status()),
		GSI2SK:       sk,
		EntityType:   "SNAPSHOT",
		SnapshotID:   id,
		Name:         snapshot.Name(),
		Description:  snapshot.Description(),
		SnapshotType: string(snapshot.Type()),
		Status:       string(snapshot.Status()),
		ComputeDiff:  snapshot.ComputeDiff(),
		ErrorMessage: snapshot.ErrorMessage(),
		NodeCount:    snapshot.NodeCount(),
		EdgeCount:    snapshot.EdgeCount(),
		NodeChunks:   nodeChunks,
		EdgeChunks:   edgeChunks,
		Checksum:     snapshot.Checksum(),
		Version:      snapshot.Version(),
		CreatedAt:    sortableTime(snapshot.CreatedAt()),
		UpdatedAt:    sortableTime(snapshot.UpdatedAt()),
	}
	if completed := snapshot.CompletedAt(); completed != nil {
		item.CompletedAt = sortableTime(*completed)
	}
	if diff := snapshot.Diff(); diff != nil {
		raw, err := json.Marshal(diff)
		if err != nil {
			return snapshotItem{}, pkgerrors.NewDatabaseError("marshal snapshot diff", err)
		}
		item.DiffJSON = string(raw)
	}
	return item, nil
}

func (item snapshotItem) toEntity(nodes []entities.CapturedNode, edges []entities.CapturedEdge) (*entities.Snapshot, error) {
	snapshotID, err := valueobjects.NewSnapshotIDFromString(item.SnapshotID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid id")
	}
	createdAt, err := time.Parse(sortKeyTimeFormat, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid createdAt")
	}
	updatedAt, err := time.Parse(sortKeyTimeFormat, item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid updatedAt")
	}
	var completedAt *time.Time
	if item.CompletedAt != "" {
		parsed, err := time.Parse(sortKeyTimeFormat, item.CompletedAt)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid completedAt")
		}
		completedAt = &parsed
	}
	var diff *entities.SnapshotDiff
	if item.DiffJSON != "" {
		diff = &entities.SnapshotDiff{}
		if err := json.Unmarshal([]byte(item.DiffJSON), diff); err != nil {
			return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid diff")
		}
	}

	return entities.ReconstructSnapshot(
		snapshotID,
		item.Name, item.Description,
		entities.SnapshotType(item.SnapshotType),
		entities.SnapshotStatus(item.Status),
		item.ComputeDiff,
		item.ErrorMessage,
		item.NodeCount, item.EdgeCount,
		nodes, edges,
		diff,
		item.Checksum,
		createdAt, updatedAt,
		completedAt,
		item.Version,
	)
}

// chunkPayloads JSON-encodes the captured records in fixed-size slices.
func chunkPayloads[T any](records []T) ([]string, error) {
	chunks := make([]string, 0, (len(records)+recordsPerChunk-1)/recordsPerChunk)
	for start := 0; start < len(records); start += recordsPerChunk {
		end := start + recordsPerChunk
		if end > len(records) {
			end = len(records)
		}
		raw, err := json.Marshal(records[start:end])
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("marshal snapshot chunk", err)
		}
		chunks = append(chunks, string(raw))
	}
	return chunks, nil
}

func chunkSortKey(kind string, index int) string {
	return skChunkPrefix + kind + "#" + fmt.Sprintf(chunkIndexFormat, index)
}

// Save creates a snapshot record; the id must be unused. A fresh
// snapshot carries no payload yet, so only the metadata item is written.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *entities.Snapshot) error {
	item, err := newSnapshotItem(snapshot, 0, 0)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal snapshot", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build snapshot condition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return pkgerrors.NewConflictError("snapshot already exists").WithDetail("snapshotId", snapshot.ID().String())
		}
		return pkgerrors.NewDatabaseError("save snapshot", err)
	}

	r.logger.Debug("Snapshot saved", zap.String("snapshotId", snapshot.ID().String()))
	return nil
}

// Update rewrites the metadata item conditionally on its base version
// and replaces the payload chunks. The metadata write goes first: if the
// version condition fails, no chunk is touched.
func (r *SnapshotRepository) Update(ctx context.Context, snapshot *entities.Snapshot) error {
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
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal snapshot", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(snapshot.BaseVersion()))).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build snapshot condition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return pkgerrors.VersionMismatch("snapshot", snapshot.ID().String(), snapshot.BaseVersion())
		}
		return pkgerrors.NewDatabaseError("update snapshot", err)
	}

	pk := pkSnapshotPrefix + snapshot.ID().String()
	if err := r.writeChunks(ctx, pk, chunkKindNodes, nodeChunks); err != nil {
		return err
	}
	if err := r.writeChunks(ctx, pk, chunkKindEdges, edgeChunks); err != nil {
		return err
	}

	r.logger.Debug("Snapshot updated",
		zap.String("snapshotId", snapshot.ID().String()),
		zap.String("status", string(snapshot.Status())),
		zap.Int("nodeChunks", len(nodeChunks)),
		zap.Int("edgeChunks", len(edgeChunks)),
	)
	return nil
}

func (r *SnapshotRepository) writeChunks(ctx context.Context, pk, kind string, chunks []string) error {
	for i, payload := range chunks {
		av, err := attributevalue.MarshalMap(chunkItem{
			PK:      pk,
			SK:      chunkSortKey(kind, i),
			Payload: payload,
		})
		if err != nil {
			return pkgerrors.NewDatabaseError("marshal snapshot chunk", err)
		}
		if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item:      av,
		}); err != nil {
			return pkgerrors.NewDatabaseError("write snapshot chunk", err)
		}
	}
	return nil
}

// GetByID retrieves a snapshot with its captured payload reassembled.
func (r *SnapshotRepository) GetByID(ctx context.Context, id valueobjects.SnapshotID) (*entities.Snapshot, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(pkSnapshotPrefix + id.String()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build snapshot query", err)
	}

	var meta *snapshotItem
	nodeChunks := make(map[string]string)
	edgeChunks := make(map[string]string)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query snapshot", err)
		}

		for _, raw := range out.Items {
			sk := ""
			if v, ok := raw["SK"].(*types.AttributeValueMemberS); ok {
				sk = v.Value
			}
			switch {
			case sk == skMetadata:
				var item snapshotItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, pkgerrors.NewDatabaseError("unmarshal snapshot", err)
				}
				meta = &item
			case len(sk) > len(skChunkPrefix):
				var chunk chunkItem
				if err := attributevalue.UnmarshalMap(raw, &chunk); err != nil {
					return nil, pkgerrors.NewDatabaseError("unmarshal snapshot chunk", err)
				}
				if strings.Contains(sk, chunkKindNodes) {
					nodeChunks[sk] = chunk.Payload
				} else {
					edgeChunks[sk] = chunk.Payload
				}
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	if meta == nil {
		return nil, pkgerrors.SnapshotNotFound(id.String())
	}

	nodes, err := assembleChunks[entities.CapturedNode](nodeChunks, meta.NodeChunks, chunkKindNodes)
	if err != nil {
		return nil, err
	}
	edges, err := assembleChunks[entities.CapturedEdge](edgeChunks, meta.EdgeChunks, chunkKindEdges)
	if err != nil {
		return nil, err
	}

	return meta.toEntity(nodes, edges)
}

// assembleChunks decodes the expected chunk count in index order. Stale
// chunks beyond the expected count (left over from a smaller recapture)
// are ignored.
func assembleChunks[T any](chunks map[string]string, expected int, kind string) ([]T, error) {
	if expected == 0 {
		return nil, nil
	}

	keys := make([]string, 0, expected)
	for i := 0; i < expected; i++ {
		keys = append(keys, chunkSortKey(kind, i))
	}
	sort.Strings(keys)

	records := make([]T, 0, expected*recordsPerChunk)
	for _, key := range keys {
		payload, ok := chunks[key]
		if !ok {
			return nil, pkgerrors.NewDatabaseError("read snapshot payload",
				fmt.Errorf("missing chunk %s", key))
		}
		var slice []T
		if err := json.Unmarshal([]byte(payload), &slice); err != nil {
			return nil, pkgerrors.NewDatabaseError("decode snapshot chunk", err)
		}
		records = append(records, slice...)
	}
	return records, nil
}

// List returns one page of snapshot summaries, newest first, plus the
// exact total. Payloads are not hydrated here.
func (r *SnapshotRepository) List(ctx context.Context, filter ports.SnapshotFilter) ([]*entities.Snapshot, int, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, 0, err
	}

	matches := make([]*entities.Snapshot, 0, len(all))
	for _, snapshot := range all {
		if filter.Status != nil && snapshot.Status() != *filter.Status {
			continue
		}
		if filter.SnapshotType != nil && snapshot.Type() != *filter.SnapshotType {
			continue
		}
		matches = append(matches, snapshot)
	}

	total := len(matches)
	return pageSlice(matches, filter.Offset, filter.Limit), total, nil
}

// GetLatestComplete returns the most recently completed snapshot with
// its payload hydrated, or (nil, nil) when none exists.
func (r *SnapshotRepository) GetLatestComplete(ctx context.Context) (*entities.Snapshot, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(gsi2SnapStatusPrefix + string(entities.SnapshotComplete)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build snapshot query", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi2Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query latest snapshot", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var item snapshotItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal snapshot", err)
	}
	snapshotID, err := valueobjects.NewSnapshotIDFromString(item.SnapshotID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored snapshot has an invalid id")
	}
	return r.GetByID(ctx, snapshotID)
}

// ListRecent returns the newest snapshot summaries, capped at limit.
func (r *SnapshotRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Snapshot, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// listClass walks the snapshot partition on GSI1, newest first, returning
// summaries without payloads.
func (r *SnapshotRepository) listClass(ctx context.Context) ([]*entities.Snapshot, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classSnapshot))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build snapshot query", err)
	}

	snapshots := make([]*entities.Snapshot, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(gsi1Name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query snapshots", err)
		}

		var page []snapshotItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal snapshots", err)
		}
		for _, item := range page {
			snapshot, err := item.toEntity(nil, nil)
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, snapshot)
		}

		if out.LastEvaluatedKey == nil {
			return snapshots, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}
