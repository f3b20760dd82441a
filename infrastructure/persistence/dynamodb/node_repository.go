package dynamodb

import (
	"context"
	"errors"
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

// NodeRepository persists nodes in the single-table layout. Writes are
// conditional: Save requires the id to be unused, Update compares the
// stored version against the entity's base version.
type NodeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// Compile-time interface check
var _ ports.NodeRepository = (*NodeRepository)(nil)

// NewNodeRepository creates a new NodeRepository
func NewNodeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *NodeRepository {
	return &NodeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// nodeItem is the DynamoDB shape of a node.
type nodeItem struct {
	PK              string                 `dynamodbav:"PK"`
	SK              string                 `dynamodbav:"SK"`
	GSI1PK          string                 `dynamodbav:"GSI1PK"`
	GSI1SK          string                 `dynamodbav:"GSI1SK"`
	GSI2PK          string                 `dynamodbav:"GSI2PK"`
	GSI2SK          string                 `dynamodbav:"GSI2SK"`
	EntityType      string                 `dynamodbav:"EntityType"`
	NodeID          string                 `dynamodbav:"NodeID"`
	NodeType        string                 `dynamodbav:"NodeType"`
	Label           string                 `dynamodbav:"Label"`
	Description     string                 `dynamodbav:"Description,omitempty"`
	Tags            []string               `dynamodbav:"Tags,omitempty"`
	Categories      []string               `dynamodbav:"Categories,omitempty"`
	Properties      map[string]interface{} `dynamodbav:"Properties,omitempty"`
	ConfidenceScore float64                `dynamodbav:"ConfidenceScore"`
	CentralityScore *float64               `dynamodbav:"CentralityScore,omitempty"`
	ClusterID       string                 `dynamodbav:"ClusterID,omitempty"`
	Embedding       []float32              `dynamodbav:"Embedding,omitempty"`
	IsActive        bool                   `dynamodbav:"IsActive"`
	Version         int                    `dynamodbav:"Version"`
	CreatedAt       string                 `dynamodbav:"CreatedAt"`
	UpdatedAt       string                 `dynamodbav:"UpdatedAt"`
}

func newNodeItem(node *entities.Node) nodeItem {
	id := node.ID().String()
	sk := updatedSortKey(node.UpdatedAt(), id)
	return nodeItem{
		PK:              pkNodePrefix + id,
		SK:              skMetadata,
		GSI1PK:          classNode,
		GSI1SK:          sk,
		GSI2PK:          gsi2NodeTypePrefix + node.Type().String(),
		GSI2SK:          sk,
		EntityType:      "NODE",
		NodeID:          id,
		NodeType:        node.Type().String(),
		Label:           node.Label().String(),
		Description:     node.Description(),
		Tags:            node.Tags(),
		Categories:      node.Categories(),
		Properties:      node.Properties(),
		ConfidenceScore: node.Confidence().Value(),
		CentralityScore: node.CentralityScore(),
		ClusterID:       node.ClusterID(),
		Embedding:       node.Embedding(),
		IsActive:        node.IsActive(),
		Version:         node.Version(),
		CreatedAt:       sortableTime(node.CreatedAt()),
		UpdatedAt:       sortableTime(node.UpdatedAt()),
	}
}

func (item nodeItem) toEntity() (*entities.Node, error) {
	nodeID, err := valueobjects.NewNodeIDFromString(item.NodeID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored node has an invalid id")
	}
	label, err := valueobjects.NewLabel(item.Label)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored node has an invalid label")
	}
	confidence, err := valueobjects.NewConfidence(item.ConfidenceScore)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored node has an invalid confidence")
	}
	createdAt, err := time.Parse(sortKeyTimeFormat, item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored node has an invalid createdAt")
	}
	updatedAt, err := time.Parse(sortKeyTimeFormat, item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "stored node has an invalid updatedAt")
	}

	return entities.ReconstructNode(
		nodeID,
		valueobjects.NodeType(item.NodeType),
		label,
		item.Description,
		item.Tags, item.Categories,
		item.Properties,
		confidence,
		item.IsActive,
		item.CentralityScore,
		item.ClusterID,
		item.Embedding,
		createdAt, updatedAt,
		item.Version,
	)
}

// Save creates a node; the id must be unused.
func (r *NodeRepository) Save(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(newNodeItem(node))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal node", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build node condition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError("node already exists").WithDetail("nodeId", node.ID().String())
		}
		return pkgerrors.NewDatabaseError("save node", err)
	}

	r.logger.Debug("Node saved",
		zap.String("nodeId", node.ID().String()),
		zap.String("nodeType", node.Type().String()),
	)
	return nil
}

// Update rewrites a node conditionally on its base version.
func (r *NodeRepository) Update(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(newNodeItem(node))
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal node", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(node.BaseVersion()))).
		Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build node condition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.VersionMismatch("node", node.ID().String(), node.BaseVersion())
		}
		return pkgerrors.NewDatabaseError("update node", err)
	}

	r.logger.Debug("Node updated",
		zap.String("nodeId", node.ID().String()),
		zap.Int("version", node.Version()),
	)
	return nil
}

// GetByID retrieves a node by id.
func (r *NodeRepository) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkNodePrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get node", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NodeNotFound(id.String())
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal node", err)
	}
	return item.toEntity()
}

// GetBatch retrieves the nodes that exist among the given ids. Missing ids
// are omitted rather than reported; callers decide whether absence is an
// error.
func (r *NodeRepository) GetBatch(ctx context.Context, ids []valueobjects.NodeID) ([]*entities.Node, error) {
	if len(ids) == 0 {
		return []*entities.Node{}, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkNodePrefix + id.String()},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		})
	}

	nodes := make([]*entities.Node, 0, len(ids))
	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}
		chunk, err := r.batchGet(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, chunk...)
	}
	return nodes, nil
}

// batchGetLimit is DynamoDB's BatchGetItem key cap.
const batchGetLimit = 100

func (r *NodeRepository) batchGet(ctx context.Context, keys []map[string]types.AttributeValue) ([]*entities.Node, error) {
	nodes := make([]*entities.Node, 0, len(keys))
	pending := keys

	for attempt := 0; len(pending) > 0 && attempt < 3; attempt++ {
		out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				r.tableName: {Keys: pending},
			},
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("batch get nodes", err)
		}

		for _, raw := range out.Responses[r.tableName] {
			var item nodeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal node", err)
			}
			node, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}

		unprocessed, ok := out.UnprocessedKeys[r.tableName]
		if !ok || len(unprocessed.Keys) == 0 {
			return nodes, nil
		}
		pending = unprocessed.Keys
	}

	if len(pending) > 0 {
		return nil, pkgerrors.NewDatabaseError("batch get nodes", errors.New("unprocessed keys after retries"))
	}
	return nodes, nil
}

// List returns one page of matching nodes, newest-updated first, plus the
// exact total. The class partition is walked in full because the total
// must be independent of the pagination window; filters apply in memory
// so matching lives in one place.
func (r *NodeRepository) List(ctx context.Context, filter ports.NodeFilter) ([]*entities.Node, int, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, 0, err
	}

	matches := make([]*entities.Node, 0, len(all))
	for _, node := range all {
		if matchesNodeFilter(node, filter) {
			matches = append(matches, node)
		}
	}

	total := len(matches)
	page := pageSlice(matches, filter.Offset, filter.Limit)
	return page, total, nil
}

// ListActive returns active nodes; limit <= 0 means unbounded.
func (r *NodeRepository) ListActive(ctx context.Context, limit int) ([]*entities.Node, error) {
	all, err := r.listClass(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*entities.Node, 0, len(all))
	for _, node := range all {
		if !node.IsActive() {
			continue
		}
		active = append(active, node)
		if limit > 0 && len(active) >= limit {
			break
		}
	}
	return active, nil
}

// ListChangedSince returns nodes updated after the given instant,
// including soft-deleted ones. The cut is pushed into the key condition.
func (r *NodeRepository) ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Node, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classNode)).
		And(expression.Key("GSI1SK").GreaterThan(expression.Value("UPDATED#" + sortableTime(since) + "#￿")))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build node query", err)
	}

	nodes := make([]*entities.Node, 0)
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
			return nil, pkgerrors.NewDatabaseError("query changed nodes", err)
		}

		var page []nodeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal nodes", err)
		}
		for _, item := range page {
			node, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
			if limit > 0 && len(nodes) >= limit {
				return nodes, nil
			}
		}

		if out.LastEvaluatedKey == nil {
			return nodes, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// CountByType counts all nodes per type with one COUNT query per known
// type; no items travel.
func (r *NodeRepository) CountByType(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, nodeType := range valueobjects.AllNodeTypes() {
		keyCond := expression.Key("GSI2PK").Equal(expression.Value(gsi2NodeTypePrefix + nodeType.String()))
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
				return nil, pkgerrors.NewDatabaseError("count nodes", err)
			}
			total += int(out.Count)
			if out.LastEvaluatedKey == nil {
				break
			}
			lastKey = out.LastEvaluatedKey
		}
		if total > 0 {
			counts[nodeType.String()] = total
		}
	}
	return counts, nil
}

// listClass walks the full node partition on GSI1, newest-updated first.
func (r *NodeRepository) listClass(ctx context.Context) ([]*entities.Node, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classNode))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build node query", err)
	}

	nodes := make([]*entities.Node, 0)
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
			return nil, pkgerrors.NewDatabaseError("query nodes", err)
		}

		var page []nodeItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal nodes", err)
		}
		for _, item := range page {
			node, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}

		if out.LastEvaluatedKey == nil {
			return nodes, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

// matchesNodeFilter applies a NodeFilter to a hydrated node.
func matchesNodeFilter(node *entities.Node, filter ports.NodeFilter) bool {
	if filter.IsActive != nil && node.IsActive() != *filter.IsActive {
		return false
	}
	if len(filter.NodeTypes) > 0 && !nodeTypeIn(node.Type(), filter.NodeTypes) {
		return false
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

func nodeTypeIn(t valueobjects.NodeType, allowed []valueobjects.NodeType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// pageSlice applies offset pagination to an already-filtered match list.
// A non-positive limit disables the page cap.
func pageSlice[T any](matches []T, offset, limit int) []T {
	if offset >= len(matches) {
		return []T{}
	}
	window := matches[offset:]
	if limit > 0 && len(window) > limit {
		window = window[:limit]
	}
	out := make([]T, len(window))
	copy(out, window)
	return out
}

// sortEdgesStable orders edges by creation time then id; shared by the
// edge repository's list paths.
func sortEdgesStable(edges []*entities.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt().Equal(edges[j].CreatedAt()) {
			return edges[i].CreatedAt().Before(edges[j].CreatedAt())
		}
		return edges[i].ID().String() < edges[j].ID().String()
	})
}

var _ = strings.TrimPrefix
