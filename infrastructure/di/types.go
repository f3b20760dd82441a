package di

import (
	"context"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"atlas-graph/application/commands/bus"
	"atlas-graph/application/ports"
	querybus "atlas-graph/application/queries/bus"
	domaincfg "atlas-graph/domain/config"
	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/persistence/dynamodb"
	"atlas-graph/pkg/auth"
	"atlas-graph/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config       *config.Config
	DomainConfig *domaincfg.DomainConfig
	Logger       *zap.Logger

	DynamoClient *awsdynamodb.Client

	NodeRepo     ports.NodeRepository
	EdgeRepo     ports.EdgeRepository
	SnapshotRepo ports.SnapshotRepository
	AuditRepo    ports.AuditLogRepository
	MetricsRepo  ports.MetricsRepository
	ConnRepo     ports.ConnectionRepository
	UnitOfWork   ports.UnitOfWork
	Lock         ports.DistributedLock
	Cache        ports.Cache

	EventBus  ports.EventBus
	Publisher ports.EventPublisher
	Outbox    *dynamodb.OutboxProcessor

	Services   *Services
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus

	Metrics     *observability.Metrics
	CloudWatch  *observability.CloudWatchEmitter
	Tracer      *observability.Tracer
	RateLimiter auth.RateLimiter
}

// Start launches the background workers.
func (c *Container) Start(ctx context.Context) {
	c.Services.Snapshots.Start()
	if c.Outbox != nil {
		c.Outbox.Start(ctx)
	}
}

// Shutdown drains workers and flushes the logger.
func (c *Container) Shutdown() {
	if c.Outbox != nil {
		c.Outbox.Stop()
	}
	c.Services.Snapshots.Stop()
	_ = c.Logger.Sync()
}
