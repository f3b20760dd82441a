//go:build !wireinject
// +build !wireinject

package di

import (
	"context"

	"atlas-graph/infrastructure/config"
)

// InitializeContainer wires the full production dependency graph. This
// is the hand-maintained twin of the wire-generated initializer; keep
// the two in step.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	dcfg := ProvideDomainConfig(cfg)

	tracer := ProvideTracer()
	awsCfg, err := ProvideAWSConfig(ctx, cfg, tracer)
	if err != nil {
		return nil, err
	}
	dynamoClient := ProvideDynamoDBClient(awsCfg)
	eventBridgeClient := ProvideEventBridgeClient(awsCfg)
	cloudWatchClient := ProvideCloudWatchClient(awsCfg)

	nodes := ProvideNodeRepository(dynamoClient, cfg, logger)
	edges := ProvideEdgeRepository(dynamoClient, cfg, logger)
	snapshots := ProvideSnapshotRepository(dynamoClient, cfg, logger)
	audit := ProvideAuditStore(dynamoClient, cfg, logger)
	metricsRepo := ProvideMetricsRepository(dynamoClient, cfg, logger)
	connRepo := ProvideConnectionRepository(dynamoClient, cfg)
	uow := ProvideUnitOfWork(dynamoClient, cfg, nodes, edges, snapshots, audit, logger)
	lock := ProvideDistributedLock(dynamoClient, cfg, logger)

	publisher := ProvideEventPublisher(eventBridgeClient, cfg, logger)
	eventBus := ProvideEventBus(publisher, logger)
	cacheStore := ProvideCache(cfg, logger)

	reasoning := ProvideReasoningProvider(cfg, tracer, logger)
	embedding := ProvideEmbeddingProvider(cfg, tracer, logger)
	cloudWatch := ProvideCloudWatchEmitter(cloudWatchClient, cfg, logger)

	services := ProvideServices(nodes, edges, snapshots, audit, metricsRepo, reasoning, embedding, eventBus, cacheStore, cloudWatch, dcfg, logger)

	commandBus, err := ProvideCommandBus(uow, nodes, edges, audit, embedding, lock, eventBus, services, dcfg, logger)
	if err != nil {
		return nil, err
	}
	queryBus, err := ProvideQueryBus(nodes, edges, snapshots, audit, services, dcfg, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		DomainConfig: dcfg,
		Logger:       logger,
		DynamoClient: dynamoClient,
		NodeRepo:     nodes,
		EdgeRepo:     edges,
		SnapshotRepo: snapshots,
		AuditRepo:    audit,
		MetricsRepo:  metricsRepo,
		ConnRepo:     connRepo,
		UnitOfWork:   uow,
		Lock:         lock,
		Cache:        cacheStore,
		EventBus:     eventBus,
		Publisher:    publisher,
		Outbox:       ProvideOutboxProcessor(audit, publisher, logger),
		Services:     services,
		CommandBus:   commandBus,
		QueryBus:     queryBus,
		Metrics:      ProvideMetrics(cfg),
		CloudWatch:   cloudWatch,
		Tracer:       tracer,
		RateLimiter:  ProvideRateLimiter(dynamoClient, cfg),
	}, nil
}
