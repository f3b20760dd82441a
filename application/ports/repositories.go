package ports

import (
	"context"
	"time"

	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
)

// NodeFilter narrows node list queries. Zero values mean "no constraint";
// IsActive is tri-state so callers can ask for active, inactive, or both.
type NodeFilter struct {
	NodeTypes     []valueobjects.NodeType
	Tags          []string
	Categories    []string
	Search        string
	MinConfidence *float64
	IsActive      *bool
	UpdatedAfter  *time.Time
	Limit         int
	Offset        int
}

// EdgeFilter narrows edge list queries. NodeID matches edges touching the
// node as either endpoint.
type EdgeFilter struct {
	EdgeTypes []valueobjects.EdgeType
	NodeID    *valueobjects.NodeID
	IsActive  *bool
	Limit     int
	Offset    int
}

// SnapshotFilter narrows snapshot list queries.
type SnapshotFilter struct {
	Status       *entities.SnapshotStatus
	SnapshotType *entities.SnapshotType
	Limit        int
	Offset       int
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	EventTypes []string
	NodeID     string
	EdgeID     string
	EntityID   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// NodeRepository persists node entities. Save creates and fails on an
// existing id; Update writes conditionally against the entity's base
// version and returns a conflict error on a mismatch.
type NodeRepository interface {
	Save(ctx context.Context, node *entities.Node) error
	Update(ctx context.Context, node *entities.Node) error
	GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)
	GetBatch(ctx context.Context, ids []valueobjects.NodeID) ([]*entities.Node, error)
	// List returns one page of matching nodes, newest-updated first, plus
	// the total match count independent of the pagination window. A
	// non-positive limit disables the page cap.
	List(ctx context.Context, filter NodeFilter) ([]*entities.Node, int, error)
	// ListActive returns active nodes; limit <= 0 means unbounded. The
	// engines load their working set through this.
	ListActive(ctx context.Context, limit int) ([]*entities.Node, error)
	// ListChangedSince returns nodes updated after the given instant,
	// including soft-deleted ones, so incremental captures see deletions.
	ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Node, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

// EdgeRepository persists edge entities with the same create/update
// conditional-write split as NodeRepository.
type EdgeRepository interface {
	Save(ctx context.Context, edge *entities.Edge) error
	Update(ctx context.Context, edge *entities.Edge) error
	GetByID(ctx context.Context, id valueobjects.EdgeID) (*entities.Edge, error)
	// GetByNodeID returns active edges touching the node as source or target.
	GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error)
	// GetByNodeIDs returns the distinct active edges touching any of the
	// given nodes, deduplicated by edge id.
	GetByNodeIDs(ctx context.Context, nodeIDs []valueobjects.NodeID) ([]*entities.Edge, error)
	List(ctx context.Context, filter EdgeFilter) ([]*entities.Edge, int, error)
	ListActive(ctx context.Context, limit int) ([]*entities.Edge, error)
	ListChangedSince(ctx context.Context, since time.Time, limit int) ([]*entities.Edge, error)
	CountByType(ctx context.Context) (map[string]int, error)
}

// SnapshotRepository persists snapshot records and their captured payloads.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *entities.Snapshot) error
	Update(ctx context.Context, snapshot *entities.Snapshot) error
	GetByID(ctx context.Context, id valueobjects.SnapshotID) (*entities.Snapshot, error)
	List(ctx context.Context, filter SnapshotFilter) ([]*entities.Snapshot, int, error)
	// GetLatestComplete returns the most recently completed snapshot, or
	// (nil, nil) when none exists yet.
	GetLatestComplete(ctx context.Context) (*entities.Snapshot, error)
	ListRecent(ctx context.Context, limit int) ([]*entities.Snapshot, error)
}

// AuditLogRepository is the append-only mutation log. Entries double as
// the outbox: each is written pending and marked published once the
// event bridge accepts it.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *entities.AuditEntry) error
	AppendBatch(ctx context.Context, entries []*entities.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*entities.AuditEntry, int, error)
	ListPendingPublish(ctx context.Context, limit int) ([]*entities.AuditEntry, error)
	MarkPublished(ctx context.Context, entryID string) error
	MarkPublishFailed(ctx context.Context, entryID string, reason string) error
}

// MetricsRepository persists metrics runs and serves the cached summary.
type MetricsRepository interface {
	SaveRun(ctx context.Context, run *entities.MetricsRun) error
	// GetLatestRun returns the most recent run, or (nil, nil) when metrics
	// have never been computed.
	GetLatestRun(ctx context.Context) (*entities.MetricsRun, error)
	ListRuns(ctx context.Context, limit int) ([]*entities.MetricsRun, error)
}

// Connection is a live push subscriber registered by the websocket
// connect handler.
type Connection struct {
	ID          string
	Metadata    map[string]string
	ConnectedAt time.Time
}

// ConnectionRepository tracks websocket connections for event push.
type ConnectionRepository interface {
	Save(ctx context.Context, conn Connection) error
	Delete(ctx context.Context, connectionID string) error
	ListActive(ctx context.Context) ([]Connection, error)
}

// UnitOfWork groups writes into one atomic commit. Repositories obtained
// from the unit of work stage their writes until Commit.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback() error
	NodeRepository() NodeRepository
	EdgeRepository() EdgeRepository
	SnapshotRepository() SnapshotRepository
	AuditLogRepository() AuditLogRepository
}

// EventPublisher pushes domain events to the event bridge.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, batch []events.DomainEvent) error
}

// EventHandler consumes domain events from the bus.
type EventHandler interface {
	Handle(ctx context.Context, event events.DomainEvent) error
	CanHandle(eventType string) bool
}

// EventBus routes domain events to in-process subscribers as well as the
// external publisher.
type EventBus interface {
	EventPublisher
	Subscribe(eventType string, handler EventHandler) error
	Unsubscribe(eventType string, handler EventHandler) error
}

// Cache is a read-through cache for query results and computed summaries.
// TTL is in seconds; zero means the backend default.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl int) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// LockHandle is a held distributed lock.
type LockHandle interface {
	Release(ctx context.Context) error
	Resource() string
}

// DistributedLock serializes cross-entity operations such as merges.
// Acquire fails fast when the resource is already held.
type DistributedLock interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (LockHandle, error)
}

// PathExplanation is the narration produced for a found path.
type PathExplanation struct {
	Explanation string   `json:"explanation"`
	Reasoning   []string `json:"reasoning"`
	Confidence  float64  `json:"confidence"`
}

// ReasoningProvider narrates a path through the graph. Callers must
// tolerate unavailability and degrade to the bare path.
type ReasoningProvider interface {
	Explain(ctx context.Context, nodes []*entities.Node, edges []*entities.Edge) (*PathExplanation, error)
	IsAvailable(ctx context.Context) bool
}

// EmbeddingProvider turns text into embedding vectors for semantic search.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	IsAvailable(ctx context.Context) bool
}

// GraphStatsEmitter ships graph-level gauges to an external metrics sink
// after a metrics run. Implementations must not fail the run.
type GraphStatsEmitter interface {
	EmitGraphStats(ctx context.Context, stats map[string]float64)
}
