package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"atlas-graph/application/ports"
	pkgerrors "atlas-graph/pkg/errors"
)

// Websocket connections are short-lived; a TTL cleans up rows whose
// disconnect handler never ran.
const connectionTTL = 2 * time.Hour

// ConnectionRepository tracks live websocket connections for event push.
type ConnectionRepository struct {
	client    *dynamodb.Client
	tableName string
}

var _ ports.ConnectionRepository = (*ConnectionRepository)(nil)

// NewConnectionRepository creates a new ConnectionRepository
func NewConnectionRepository(client *dynamodb.Client, tableName string) *ConnectionRepository {
	return &ConnectionRepository{
		client:    client,
		tableName: tableName,
	}
}

type connectionItem struct {
	PK          string            `dynamodbav:"PK"`
	SK          string            `dynamodbav:"SK"`
	GSI1PK      string            `dynamodbav:"GSI1PK"`
	GSI1SK      string            `dynamodbav:"GSI1SK"`
	EntityType  string            `dynamodbav:"EntityType"`
	ConnID      string            `dynamodbav:"ConnID"`
	Metadata    map[string]string `dynamodbav:"Metadata,omitempty"`
	ConnectedAt string            `dynamodbav:"ConnectedAt"`
	TTL         int64             `dynamodbav:"TTL"`
}

// Save registers a connection. Reconnects with the same id overwrite.
func (r *ConnectionRepository) Save(ctx context.Context, conn ports.Connection) error {
	av, err := attributevalue.MarshalMap(connectionItem{
		PK:          pkConnPrefix + conn.ID,
		SK:          skMetadata,
		GSI1PK:      classConn,
		GSI1SK:      updatedSortKey(conn.ConnectedAt, conn.ID),
		EntityType:  "CONN",
		ConnID:      conn.ID,
		Metadata:    conn.Metadata,
		ConnectedAt: sortableTime(conn.ConnectedAt),
		TTL:         conn.ConnectedAt.Add(connectionTTL).Unix(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal connection", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		return pkgerrors.NewDatabaseError("save connection", err)
	}
	return nil
}

// Delete removes a connection on disconnect. Deleting an unknown id is
// not an error.
func (r *ConnectionRepository) Delete(ctx context.Context, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkConnPrefix + connectionID},
			"SK": &types.AttributeValueMemberS{Value: skMetadata},
		},
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete connection", err)
	}
	return nil
}

// ListActive returns every registered connection.
func (r *ConnectionRepository) ListActive(ctx context.Context) ([]ports.Connection, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classConn))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build connection query", err)
	}

	conns := make([]ports.Connection, 0)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(gsi1Name),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query connections", err)
		}

		var page []connectionItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal connections", err)
		}
		for _, item := range page {
			connectedAt, err := time.Parse(sortKeyTimeFormat, item.ConnectedAt)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "stored connection has an invalid timestamp")
			}
			conns = append(conns, ports.Connection{
				ID:          item.ConnID,
				Metadata:    item.Metadata,
				ConnectedAt: connectedAt,
			})
		}

		if out.LastEvaluatedKey == nil {
			return conns, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}
