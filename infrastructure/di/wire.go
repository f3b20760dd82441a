//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"atlas-graph/application/ports"
	"atlas-graph/infrastructure/config"
	"atlas-graph/pkg/observability"
)

// SuperSet is the full provider set.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideNodeRepository,
	ProvideEdgeRepository,
	ProvideSnapshotRepository,
	ProvideAuditStore,
	ProvideMetricsRepository,
	ProvideConnectionRepository,
	ProvideUnitOfWork,
	ProvideDistributedLock,
	ProvideEventPublisher,
	ProvideEventBus,
	ProvideCache,
	ProvideReasoningProvider,
	ProvideEmbeddingProvider,
	ProvideServices,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideMetrics,
	ProvideCloudWatchEmitter,
	wire.Bind(new(ports.GraphStatsEmitter), new(*observability.CloudWatchEmitter)),
	ProvideTracer,
	ProvideRateLimiter,
	ProvideOutboxProcessor,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
