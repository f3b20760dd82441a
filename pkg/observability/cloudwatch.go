package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchEmitter ships graph-level gauges to CloudWatch after each
// metrics run. Emission is best effort; a CloudWatch outage never fails
// the run that produced the numbers.
type CloudWatchEmitter struct {
	client    *cloudwatch.Client
	namespace string
	logger    *zap.Logger
}

// NewCloudWatchEmitter creates a new CloudWatchEmitter
func NewCloudWatchEmitter(client *cloudwatch.Client, namespace string, logger *zap.Logger) *CloudWatchEmitter {
	return &CloudWatchEmitter{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// EmitGraphStats publishes one datum per stat under the configured
// namespace.
func (e *CloudWatchEmitter) EmitGraphStats(ctx context.Context, stats map[string]float64) {
	if len(stats) == 0 {
		return
	}

	now := time.Now()
	data := make([]types.MetricDatum, 0, len(stats))
	for name, value := range stats {
		data = append(data, types.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(value),
			Timestamp:  aws.Time(now),
			Unit:       types.StandardUnitCount,
		})
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(e.namespace),
		MetricData: data,
	})
	if err != nil {
		e.logger.Warn("CloudWatch metric emission failed", zap.Error(err))
	}
}
