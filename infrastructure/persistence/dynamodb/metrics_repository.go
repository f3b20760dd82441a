package dynamodb

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// MetricsRepository stores metrics runs. Runs are immutable once written;
// the newest one is the cached graph summary served by the stats and
// metrics queries.
type MetricsRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.MetricsRepository = (*MetricsRepository)(nil)

// NewMetricsRepository creates a new MetricsRepository
func NewMetricsRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *MetricsRepository {
	return &MetricsRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// metricsItem is the DynamoDB shape of a metrics run. The run itself is
// a JSON blob; only the keys needed for ordering are lifted out.
type metricsItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	RunID      string `dynamodbav:"RunID"`
	RunJSON    string `dynamodbav:"RunJSON"`
}

// SaveRun persists a completed metrics run.
func (r *MetricsRepository) SaveRun(ctx context.Context, run *entities.MetricsRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal metrics run", err)
	}

	av, err := attributevalue.MarshalMap(metricsItem{
		PK:         pkMetricsPrefix + run.ID,
		SK:         skMetadata,
		GSI1PK:     classMetrics,
		GSI1SK:     updatedSortKey(run.CompletedAt, run.ID),
		EntityType: "METRICS",
		RunID:      run.ID,
		RunJSON:    string(raw),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal metrics run", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		return pkgerrors.NewDatabaseError("save metrics run", err)
	}

	r.logger.Debug("Metrics run saved",
		zap.String("runId", run.ID),
		zap.Int64("executionTimeMs", run.ExecutionTimeMs),
	)
	return nil
}

// GetLatestRun returns the most recent run, or (nil, nil) when metrics
// have never been computed.
func (r *MetricsRepository) GetLatestRun(ctx context.Context) (*entities.MetricsRun, error) {
	runs, err := r.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns returns the newest runs first, capped at limit.
func (r *MetricsRepository) ListRuns(ctx context.Context, limit int) ([]*entities.MetricsRun, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(classMetrics))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build metrics query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(gsi1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query metrics runs", err)
	}

	var page []metricsItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal metrics runs", err)
	}

	runs := make([]*entities.MetricsRun, 0, len(page))
	for _, item := range page {
		run := &entities.MetricsRun{}
		if err := json.Unmarshal([]byte(item.RunJSON), run); err != nil {
			return nil, pkgerrors.NewDatabaseError("decode metrics run", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
