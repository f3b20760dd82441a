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
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// EdgeRepository persists edges in the single-table layout. Each edge is
// one canonical item plus an adjacency duplicate under each endpoint's
// partition, so the edges incident to a node are a single Query. The
// canonical item and its adjacency copies move together in one
// transaction; a merge redirect that changes an endpoint relocates the
// stale adjacency item inside the same transaction.
type EdgeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.EdgeRepository = (*EdgeRepository)(nil)

// NewEdgeRepository creates a new EdgeRepository
func NewEdgeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *EdgeRepository {
	return &EdgeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// edgeItem is the DynamoDB shape of an edge. Canonical and adjacency
// items share it; adjacency items carry different keys and no GSI
// attributes so class listings see each edge once.
type edgeItem struct {
	PK              string                 `dynamodbav:"PK"`
	SK              string                 `dynamodbav:"SK"`
	GSI1PK          string                 `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK          string                 `dynamodbav:"GSI1SK,omitempty"`
	GSI2PK          string                 `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK          string                 `dynamodbav:"GSI2SK,omitempty"`
	EntityType      string                 `dynamodbav:"EntityType"`
	EdgeID          string                 `dynamodbav:"EdgeID"`
	SourceNodeID    string                 `dynamodbav:"SourceNodeID"`
	TargetNodeID    string                 `dynamodbav:"TargetNodeID"`
	EdgeType        string                 `dynamodbav:"EdgeType"`
	Label           string                 `dynamodbav:"Label,omitempty"`
	Description     string                 `dynamodbav:"Description,omitempty"`
	Weight          float64                `dynamodbav:"Weight"`
	IsBidirectional bool                   `dynamodbav:"IsBidirectional"`
	Properties      map[string]interface{} `dynamodbav:"Properties,omitempty"`
	ConfidenceScore float64                `dynamodbav:"ConfidenceScore"`
	IsActive        bool                   `dynamodbav:"IsActive"`
	Version         int                    `dynamodbav:"Version"`
	CreatedAt       string                 `dynamodbav:"CreatedAt"`
	UpdatedAt       string                 `dynamodbav:"UpdatedAt"`
}

func newEdgeItem(edge *entities.Edge) edgeItem {
	id := edge.ID().String()
	sk := updatedSortKey(edge.UpdatedAt(), id)
	return edgeItem{
		PK:              pkEdgePrefix + id,
		SK:              skMetadata,
		GSI1PK:          classEdge,
		GSI1SK:          sk,
		GSI2PK:          gsi2EdgeTypePrefix + edge.Type().String(),
		GSI2SK:          sk,
		EntityType:      "EDGE",
		EdgeID:          id,
		SourceNodeID:    edge.SourceID().String(),
		TargetNodeID:    edge.TargetID().String(),
		EdgeType:        edge.Type().String(),
		Label:           edge.Label().String(),
		Description:     edge.Description(),
		Weight:          edge.Weight().Value(),
		IsBidirectional: edge.IsBidirectional(),
		Properties:      edge.Properties(),
		ConfidenceScore: edge.Confidence().Value(),
		IsActive:        edge.IsActive(),
		Version:         edge.Version(),
		CreatedAt:       sortableTime(edge.CreatedAt()),
		UpdatedAt:       sortableTime(edge.UpdatedAt()),
	}
}

// adjacencyItem rekeys the canonical item under one endpoint's partition.
func adjacencyItem(canonical edgeItem, endpointNodeID string) edgeItem {
	item := canonical
	item.PK = pkNodePrefix + endpointNodeID
	item.SK = skEdgePrefix + canonical.EdgeID
	item.GSI1PK = ""
	item.GSI1SK = ""
	item.GSI2PK = ""
	item.GSI2SK = ""
	return item
}

func (item edgeItem) toEntity() (*entities.Edge, error) {
	edgeID, err := valueobjects.NewEdgeIDFromString(item.EdgeID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid id")
	}
	sourceID, err := valueobjects.NewNodeIDFromString(item.SourceNodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid source id")
	}
	targetID, err := valueobjects.NewNodeIDFromString(item.TargetNodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid target id")
	}
	label, err := valueobjects.NewOptionalLabel(item.Label)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid label")
	}
	weight, err := valueobjects.NewWeight(item.Weight)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid weight")
	}
	confidence, err := valueobjects.NewConfidence(item.ConfidenceScore)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid confidence")
	}
	createdAt, err := time.Parse(sortKeyTimeFormat, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid createdAt")
	}
	updatedAt, err := time.Parse(sortKeyTimeFormat, item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored edge has an invalid updatedAt")
	}

	return entities.ReconstructEdge(
		edgeID,
		sourceID, targetID,
		valueobjects.EdgeType(item.EdgeType),
		label,
		item.Description,
		weight,
		item.IsBidirectional,
		item.Properties,
		confidence,
		item.IsActive,
		createdAt, updatedAt,
		item.Version,
	)
}

// writeItems builds the canonical put plus adjacency puts for one edge.
// The condition applies to the canonical item only; adjacency items are
// unconditional copies.
func (r *EdgeRepository) writeItems(edge *entities.Edge, condition *expression.Expression) ([]types.TransactWriteItem, error) {
	canonical := newEdgeItem(edge)

	items := []edgeItem{canonical, adjacencyItem(canonical, canonical.SourceNodeID)}
	if canonical.TargetNodeID != canonical.SourceNodeID {
		items = append(items, adjacencyItem(canonical, canonical.TargetNodeID))
	}

	writes := make([]types.TransactWriteItem, 0, len(items))
	for i, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("marshal edge", err)
		}
		put := &types.Put{
			TableName: aws.String(r.tableName),
			Item:      av,
		}
		if i == 0 && condition != nil {
			put.ConditionExpression = condition.Condition()
			put.ExpressionAttributeNames = condition.Names()
			put.ExpressionAttributeValues = condition.Values()
		}
		writes = append(writes, types.TransactWriteItem{Put: put})
	}
	return writes, nil
}

// Save creates an edge; the id must be unused.
func (r *EdgeRepository) Save(ctx context.Context, edge *entities.Edge) error {
	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build edge condition", err)
	}

	writes, err := r.writeItems(edge, &cond)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return pkgerrors.NewConflictError("edge already exists").WithDetail("edgeId", edge.ID().String())
		}
		return pkgerrors.NewDatabaseError("save edge", err)
	}

	r.logger.Debug("Edge saved",
		zap.String("edgeId", edge.ID().String()),
		zap.String("edgeType", edge.Type().String()),
	)
	return nil
}

// Update rewrites an edge conditionally on its base version. When an
// endpoint changed (merge redirect), the adjacency item under the old
// endpoint is deleted in the same transaction.
func (r *EdgeRepository) Update(ctx context.Context, edge *entities.Edge) error {
	stored, err := r.GetByID(ctx, edge.ID())
	if err != nil {
		return err
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(edge.BaseVersion()))).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build edge condition", err)
	}

	writes, err := r.writeItems(edge, &cond)
	if err != nil {
		return err
	}

	for _, stale := range staleEndpoints(stored, edge) {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pkNodePrefix + stale},
					"SK": &types.AttributeValueMemberS{Value: skEdgePrefix + edge.ID().String()},
				},
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err != nil {
		if isConditionalCheckFailure(err) {
			return pkgerrors.VersionMismatch("edge", edge.ID().String(), edge.BaseVersion())
		}
		return pkgerrors.NewDatabaseError("update edge", err)
	}

	r.logger.Debug("Edge updated",
		zap.String("edgeId", edge.ID().String()),
		zap.Int("version", edge.Version()),
	)
	return nil
}

// staleEndpoints lists the stored endpoints that the updated edge no
// longer touches.
func staleEndpoints(stored, updated *entities.Edge) []string {
	current := map[string]bool{
		updated.SourceID().String(): true,
		updated.TargetID().String(): true,
	}
	stale := make([]string, 0, 2)
	seen := make(map[string]bool, 2)
	for _, endpoint := range []string{stored.SourceID().String(), stored.TargetID().String()} {
		if !current[endpoint] && !seen[endpoint] {
			stale = append(stale, endpoint)
			seen[endpoint] = true
		}
	}
	return stale
}

// GetByID retrieves an edge by id from its canonical item.
func (r *EdgeRepository) GetByID(ctx context.Context, id valueobjects.EdgeID) (*entities.Edge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkEdgePrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get edge", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.EdgeNotFound(id.String())
	}

	var item edgeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal edge", err)
	}
	return item.toEntity()
}

// GetByNodeID returns active edges touching the node as source or target.
func (r *EdgeRepository) GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(pkNodePrefix + nodeID.String())).
		And(expression.Key("SK").BeginsWith(skEdgePrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build adjacency query", err)
	}

	edges := make([]*entities.Edge, 0)
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
			return nil, pkgerrors.NewDatabaseError("query adjacency", err)
		}

		var page []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal edges", err)
		}
		for _, item := range page {
			if !item.IsActive {
				continue
			}
			edge, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}

		if out.LastEvaluatedKey == nil {
			sortEdgesStable(edges)
			return edges, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// GetByNodeIDs returns the distinct active edges touching any of the
// given nodes, one adjacency query per node.
func (r *EdgeRepository) GetByNodeIDs(ctx context.Context, nodeIDs []valueobjects.NodeID) ([]*entities.Edge, error) {
	seen := make(map[string]bool)
	edges := make([]*entities.Edge, 0)
	for _, nodeID := range nodeIDs {
		incident, err := r.GetByNodeID(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		for _, edge := range incident {
			if seen[edge.ID().String()] {
				continue
			}
			seen[edge.ID().String()] = true
			edges = append(edges, edge)
		}
	}
	sortEdgesStable(edges)
	return edges, nil
}

// List returns one page of matching edges plus the exact total. Same
// full-partition walk as the node listing, for the same reason.
func (r *EdgeRepository) List(ctx context.Context, filter ports.EdgeFilter) ([]*entities.Edge, int, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, 0, err
	}

	matches := make([]*entities.Edge, 0, len(all))
	for _, edge := range all {
		if matchesEdgeFilter(edge, filter) {
			matches = append(matches, edge)
		}
	}
	sortEdgesStable(matches)

	total := len(matches)
	return pageSlice(matches, filter.Offset, filter.Limit), total, nil
}

// ListActive returns active edges; limit <= 0 means unbounded.
func (r *EdgeRepository) ListActive(ctx context.Context, limit int) ([]*entities.Edge, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*entities.Edge, 0, len(all))
	for _, edge := range all {
		if !edge.IsActive() {
			continue
		}
		active = append(active, edge)
		if limit > 0 && len(active) >= limit {
			break
		}
	}
	return active, nil
}

// ListChangedSince returns edges updated after the given instant,
// including soft-deleted ones.
func (r *EdgeRepository) ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Edge, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classEdge)).
		And(expression.Key("GSI1SK").GreaterThan(expression.Value("UPDATED#" + sortableTime(since) + "#￿")))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build edge query", err)
	}

	edges := make([]*entities.Edge, 0)
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
			return nil, pkgerrors.NewDatabaseError("query changed edges", err)
		}

		var page []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal edges", err)
		}
		for _, item := range page {
			edge, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
			if limit > 0 && len(edges) >= limit {
				return edges, nil
			}
		}

		if out.LastEvaluatedKey == nil {
			return edges, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// CountByType counts all edges per type with COUNT queries on GSI2.
func (r *EdgeRepository) CountByType(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, edgeType := range valueobjects.AllEdgeTypes() {
		keyCond := expression.Key("GSI2PK").Equal(expression.Value(gsi2EdgeTypePrefix + edgeType.String()))
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("build count query", err)
		}

		total := 0
		var lastKey map[string]types.AttributeValue
		for {
			out, err := r.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(r.tableName),
				IndexName:                 aws.String(gsi2Name),
				KeyConditionExpression:    expr.KeyCondition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				Select:                    types.SelectCount,
				ExclusiveStartKey:         lastKey,
			})
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("count edges", err)
			}
			total += int(out.Count)
			if out.LastEvaluatedKey == nil {
				break
			}
			lastKey = out.LastEvaluatedKey
		}
		if total > 0 {
			counts[edgeType.String()] = total
		}
	}
	return counts, nil
}

func (r *EdgeRepository) listClass(ctx context.Context) ([]*entities.Edge, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classEdge))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build edge query", err)
	}

	edges := make([]*entities.Edge, 0)
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
			return nil, pkgerrors.NewDatabaseError("query edges", err)
		}

		var page []edgeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal edges", err)
		}
		for _, item := range page {
			edge, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}

		if out.LastEvaluatedKey == nil {
			return edges, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

func matchesEdgeFilter(edge *entities.Edge, filter ports.EdgeFilter) bool {
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

// isConditionalCheckFailure detects a failed condition inside a
// transaction as well as on a plain conditional write.
func isConditionalCheckFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
