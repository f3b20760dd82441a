// Package schema materializes the single-table layout for local
// development and tests. Production tables are managed by
// infrastructure-as-code; Bootstrap is a convenience for dynamodb-local
// and fresh environments.
package schema

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	pkgerrors "atlas-graph/pkg/errors"
)

// Bootstrap creates the graph table when it does not exist.
type Bootstrap struct {
	client *dynamodb.Client
	logger *zap.Logger
}

// NewBootstrap creates a new Bootstrap
func NewBootstrap(client *dynamodb.Client, logger *zap.Logger) *Bootstrap {
	return &Bootstrap{client: client, logger: logger}
}

// EnsureTable creates tableName with the PK/SK key schema, GSI1 and GSI2,
// and TTL on the TTL attribute, then waits for it to become active. An
// existing table is left untouched.
func (b *Bootstrap) EnsureTable(ctx context.Context, tableName string) error {
	_, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return pkgerrors.NewDatabaseError("describe table", err)
	}

	b.logger.Info("Creating table", zap.String("table", tableName))

	gsiThroughput := &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(5),
		WriteCapacityUnits: aws.Int64(5),
	}
	_, err = b.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI1SK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI2PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("GSI2SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: gsiThroughput,
			},
			{
				IndexName: aws.String("GSI2"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI2PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI2SK"), KeyType: types.KeyTypeRange},
				},
				Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: gsiThroughput,
			},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("create table", err)
	}

	if err := b.waitActive(ctx, tableName); err != nil {
		return err
	}

	// Lock leases and websocket connection rows expire via TTL.
	_, err = b.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("TTL"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		// dynamodb-local rejects TTL configuration; the table is still
		// usable without it.
		b.logger.Warn("TTL configuration failed", zap.Error(err))
	}

	b.logger.Info("Table ready", zap.String("table", tableName))
	return nil
}

func (b *Bootstrap) waitActive(ctx context.Context, tableName string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err == nil && out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ctx.Done():
			return pkgerrors.NewTimeoutError("table creation")
		case <-ticker.C:
		}
	}
}
