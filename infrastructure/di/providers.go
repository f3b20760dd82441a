package di

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	cmdhandlers "atlas-graph/application/commands/handlers"
	"atlas-graph/application/ports"
	"atlas-graph/application/queries"
	querybus "atlas-graph/application/queries/bus"
	qryhandlers "atlas-graph/application/queries/handlers"
	appservices "atlas-graph/application/services"
	domaincfg "atlas-graph/domain/config"
	"atlas-graph/domain/core/validators"
	"atlas-graph/infrastructure/cache"
	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/messaging"
	"atlas-graph/infrastructure/persistence/dynamodb"
	"atlas-graph/infrastructure/providers"
	"atlas-graph/pkg/auth"
	"atlas-graph/pkg/observability"
)

// ProvideLogger creates the logger for this environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		zcfg := zap.NewProductionConfig()
		if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(level)
		}
		return zcfg.Build()
	}
	return zap.NewDevelopment()
}

// ProvideDomainConfig derives the engine rules from the app config.
func ProvideDomainConfig(cfg *config.Config) *domaincfg.DomainConfig {
	return cfg.DomainConfig()
}

// ProvideAWSConfig creates AWS configuration. A configured endpoint
// points every AWS client at a local emulator; with tracing enabled the
// clients emit X-Ray subsegments per call.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config, tracer *observability.Tracer) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.AWS.Endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.Features.EnableTracing {
		tracer.InstrumentAWSClients(&awsCfg)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideNodeRepository creates the node repository.
func ProvideNodeRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.NodeRepository {
	return dynamodb.NewNodeRepository(client, cfg.AWS.TableName, logger)
}

// ProvideEdgeRepository creates the edge repository.
func ProvideEdgeRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.EdgeRepository {
	return dynamodb.NewEdgeRepository(client, cfg.AWS.TableName, logger)
}

// ProvideSnapshotRepository creates the snapshot repository.
func ProvideSnapshotRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.SnapshotRepository {
	return dynamodb.NewSnapshotRepository(client, cfg.AWS.TableName, logger)
}

// ProvideAuditStore creates the audit log store.
func ProvideAuditStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.AuditStore {
	return dynamodb.NewAuditStore(client, cfg.AWS.TableName, logger)
}

// ProvideMetricsRepository creates the metrics run repository.
func ProvideMetricsRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.MetricsRepository {
	return dynamodb.NewMetricsRepository(client, cfg.AWS.TableName, logger)
}

// ProvideConnectionRepository creates the websocket connection registry.
func ProvideConnectionRepository(client *awsdynamodb.Client, cfg *config.Config) *dynamodb.ConnectionRepository {
	return dynamodb.NewConnectionRepository(client, cfg.AWS.TableName)
}

// ProvideUnitOfWork creates the transactional unit of work.
func ProvideUnitOfWork(
	client *awsdynamodb.Client,
	cfg *config.Config,
	nodes *dynamodb.NodeRepository,
	edges *dynamodb.EdgeRepository,
	snapshots *dynamodb.SnapshotRepository,
	audit *dynamodb.AuditStore,
	logger *zap.Logger,
) ports.UnitOfWork {
	return dynamodb.NewUnitOfWork(client, cfg.AWS.TableName, nodes, edges, snapshots, audit, logger)
}

// ProvideDistributedLock creates the merge advisory lock.
func ProvideDistributedLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DistributedLock {
	return dynamodb.NewDistributedLock(client, cfg.AWS.TableName, logger)
}

// ProvideEventPublisher creates the EventBridge publisher, or nil when
// no bus is configured; the in-process event bus tolerates a nil
// external publisher.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.AWS.EventBusName == "" {
		return nil
	}
	return messaging.NewEventBridgePublisher(client, cfg.AWS.EventBusName, "atlas-graph", logger)
}

// ProvideEventBus creates the in-process event bus.
func ProvideEventBus(publisher ports.EventPublisher, logger *zap.Logger) ports.EventBus {
	return messaging.NewEventBus(publisher, logger)
}

// ProvideCache selects Redis when configured, the in-process cache
// otherwise.
func ProvideCache(cfg *config.Config, logger *zap.Logger) ports.Cache {
	if cfg.Redis.Address == "" {
		return NewInMemoryCache()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return cache.NewRedisCache(client, cfg.Redis.Prefix, logger)
}

// ProvideReasoningProvider creates the path narration client.
func ProvideReasoningProvider(cfg *config.Config, tracer *observability.Tracer, logger *zap.Logger) ports.ReasoningProvider {
	return providers.NewReasoningClient(
		cfg.Providers.ReasoningURL,
		cfg.Providers.ReasoningAPIKey,
		cfg.Providers.Timeout,
		tracer,
		logger,
	)
}

// ProvideEmbeddingProvider creates the embedding client.
func ProvideEmbeddingProvider(cfg *config.Config, tracer *observability.Tracer, logger *zap.Logger) ports.EmbeddingProvider {
	return providers.NewEmbeddingClient(
		cfg.Providers.EmbeddingURL,
		cfg.Providers.EmbeddingAPIKey,
		cfg.Providers.EmbeddingModel,
		cfg.Providers.Timeout,
		tracer,
		logger,
	)
}

// ProvideMetrics creates the Prometheus sink.
func ProvideMetrics(cfg *config.Config) *observability.Metrics {
	return observability.NewMetrics("atlas_graph")
}

// ProvideCloudWatchEmitter creates the graph stat emitter.
func ProvideCloudWatchEmitter(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.CloudWatchEmitter {
	return observability.NewCloudWatchEmitter(client, "AtlasGraph/"+cfg.Environment, logger)
}

// ProvideTracer creates the X-Ray tracer.
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("atlas-graph")
}

// ProvideRateLimiter selects the per-actor rate limiter. A zero limit
// disables limiting; without a table the limiter is in-process only.
func ProvideRateLimiter(client *awsdynamodb.Client, cfg *config.Config) auth.RateLimiter {
	if cfg.Auth.RateLimit <= 0 {
		return nil
	}
	if cfg.AWS.TableName == "" {
		return auth.NewTokenBucketLimiter(cfg.Auth.RateLimit, time.Minute/time.Duration(cfg.Auth.RateLimit))
	}
	return auth.NewDistributedRateLimiter(
		client,
		cfg.AWS.TableName,
		cfg.Auth.RateLimit,
		time.Minute,
		"API",
	)
}

// ProvideOutboxProcessor creates the audit outbox drainer, or nil when
// no external publisher is configured.
func ProvideOutboxProcessor(audit *dynamodb.AuditStore, publisher ports.EventPublisher, logger *zap.Logger) *dynamodb.OutboxProcessor {
	if publisher == nil {
		return nil
	}
	return dynamodb.NewOutboxProcessor(audit, publisher, logger)
}

// Services groups the application services the interfaces layer talks
// to directly.
type Services struct {
	Traversal  *appservices.TraversalService
	PathFinder *appservices.PathFinderService
	Search     *appservices.SearchService
	Metrics    *appservices.MetricsService
	Snapshots  *appservices.SnapshotService
}

// ProvideServices wires the domain services.
func ProvideServices(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	snapshotRepo ports.SnapshotRepository,
	auditRepo ports.AuditLogRepository,
	metricsRepo ports.MetricsRepository,
	reasoning ports.ReasoningProvider,
	embedding ports.EmbeddingProvider,
	eventBus ports.EventBus,
	cacheStore ports.Cache,
	statsEmitter ports.GraphStatsEmitter,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) *Services {
	loader := appservices.NewGraphLoader(nodeRepo, edgeRepo)
	return &Services{
		Traversal:  appservices.NewTraversalService(nodeRepo, edgeRepo, dcfg, logger),
		PathFinder: appservices.NewPathFinderService(loader, nodeRepo, reasoning, dcfg, logger),
		Search:     appservices.NewSearchService(nodeRepo, embedding, dcfg, logger),
		Metrics:    appservices.NewMetricsService(nodeRepo, edgeRepo, metricsRepo, auditRepo, eventBus, cacheStore, statsEmitter, dcfg, logger),
		Snapshots:  appservices.NewSnapshotService(snapshotRepo, nodeRepo, edgeRepo, auditRepo, eventBus, dcfg, logger),
	}
}

// ProvideCommandBus registers every command handler.
func ProvideCommandBus(
	uow ports.UnitOfWork,
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	auditRepo ports.AuditLogRepository,
	embedding ports.EmbeddingProvider,
	lock ports.DistributedLock,
	eventBus ports.EventBus,
	services *Services,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()

	nodeValidator := validators.NewNodeValidator(dcfg)
	edgeValidator := validators.NewEdgeValidator(dcfg)
	mergeValidator := validators.NewMergeValidator(dcfg)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateNodeCommand{}, cmdhandlers.NewCreateNodeHandler(uow, nodeValidator, embedding, eventBus, dcfg, logger)},
		{commands.UpdateNodeCommand{}, cmdhandlers.NewUpdateNodeHandler(uow, nodeRepo, nodeValidator, embedding, eventBus, dcfg, logger)},
		{commands.DeleteNodeCommand{}, cmdhandlers.NewDeleteNodeHandler(uow, nodeRepo, eventBus, dcfg, logger)},
		{commands.CreateEdgeCommand{}, cmdhandlers.NewCreateEdgeHandler(uow, nodeRepo, edgeValidator, eventBus, dcfg, logger)},
		{commands.UpdateEdgeCommand{}, cmdhandlers.NewUpdateEdgeHandler(uow, edgeRepo, edgeValidator, eventBus, dcfg, logger)},
		{commands.DeleteEdgeCommand{}, cmdhandlers.NewDeleteEdgeHandler(uow, edgeRepo, eventBus, dcfg, logger)},
		{commands.MergeNodesCommand{}, cmdhandlers.NewMergeNodesHandler(nodeRepo, edgeRepo, auditRepo, mergeValidator, lock, eventBus, dcfg, logger)},
		{commands.CreateSnapshotCommand{}, cmdhandlers.NewCreateSnapshotHandler(services.Snapshots, logger)},
		{commands.RegenerateSnapshotCommand{}, cmdhandlers.NewRegenerateSnapshotHandler(services.Snapshots, logger)},
		{commands.ComputeMetricsCommand{}, cmdhandlers.NewComputeMetricsHandler(services.Metrics, logger)},
		{commands.BackfillEmbeddingsCommand{}, cmdhandlers.NewBackfillEmbeddingsHandler(nodeRepo, embedding, auditRepo, dcfg, logger)},
	}
	for _, reg := range registrations {
		if err := commandBus.Register(reg.cmd, reg.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// queryAdapter bridges a typed query handler into the bus.
type queryAdapter func(ctx context.Context, query querybus.Query) (interface{}, error)

func (f queryAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return f(ctx, query)
}

// ProvideQueryBus registers every query handler.
func ProvideQueryBus(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	snapshotRepo ports.SnapshotRepository,
	auditRepo ports.AuditLogRepository,
	services *Services,
	dcfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()

	listNodes := qryhandlers.NewListNodesHandler(nodeRepo, dcfg, logger)
	getNode := qryhandlers.NewGetNodeHandler(nodeRepo, logger)
	getConnections := qryhandlers.NewGetNodeConnectionsHandler(nodeRepo, edgeRepo, logger)
	listEdges := qryhandlers.NewListEdgesHandler(edgeRepo, dcfg, logger)
	getEdge := qryhandlers.NewGetEdgeWithNodesHandler(edgeRepo, nodeRepo, logger)
	traverse := qryhandlers.NewTraverseHandler(services.Traversal, logger)
	findPath := qryhandlers.NewFindPathHandler(services.PathFinder, logger)
	explainPath := qryhandlers.NewExplainPathHandler(services.PathFinder, logger)
	search := qryhandlers.NewSemanticSearchHandler(services.Search, logger)
	queryGraph := qryhandlers.NewQueryGraphHandler(nodeRepo, edgeRepo, dcfg, logger)
	getAudit := qryhandlers.NewGetAuditLogHandler(auditRepo, dcfg, logger)
	getStats := qryhandlers.NewGetStatsHandler(nodeRepo, edgeRepo, snapshotRepo, auditRepo, logger)
	getMetrics := qryhandlers.NewGetMetricsHandler(services.Metrics, logger)
	listSnapshots := qryhandlers.NewListSnapshotsHandler(snapshotRepo, dcfg, logger)
	getSnapshot := qryhandlers.NewGetSnapshotHandler(snapshotRepo, logger)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.ListNodesQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return listNodes.Handle(ctx, q.(queries.ListNodesQuery))
		})},
		{queries.GetNodeQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getNode.Handle(ctx, q.(queries.GetNodeQuery))
		})},
		{queries.GetNodeConnectionsQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getConnections.Handle(ctx, q.(queries.GetNodeConnectionsQuery))
		})},
		{queries.ListEdgesQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return listEdges.Handle(ctx, q.(queries.ListEdgesQuery))
		})},
		{queries.GetEdgeWithNodesQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getEdge.Handle(ctx, q.(queries.GetEdgeWithNodesQuery))
		})},
		{queries.TraverseQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return traverse.Handle(ctx, q.(queries.TraverseQuery))
		})},
		{queries.FindPathQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return findPath.Handle(ctx, q.(queries.FindPathQuery))
		})},
		{queries.ExplainPathQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return explainPath.Handle(ctx, q.(queries.ExplainPathQuery))
		})},
		{queries.SemanticSearchQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return search.Handle(ctx, q.(queries.SemanticSearchQuery))
		})},
		{queries.QueryGraphQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return queryGraph.Handle(ctx, q.(queries.QueryGraphQuery))
		})},
		{queries.GetAuditLogQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getAudit.Handle(ctx, q.(queries.GetAuditLogQuery))
		})},
		{queries.GetStatsQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getStats.Handle(ctx, q.(queries.GetStatsQuery))
		})},
		{queries.GetMetricsQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getMetrics.Handle(ctx, q.(queries.GetMetricsQuery))
		})},
		{queries.ListSnapshotsQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return listSnapshots.Handle(ctx, q.(queries.ListSnapshotsQuery))
		})},
		{queries.GetSnapshotQuery{}, queryAdapter(func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getSnapshot.Handle(ctx, q.(queries.GetSnapshotQuery))
		})},
	}
	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, reg.handler); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}
