package events

import (
	"time"

	"atlas-graph/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Audit event type names. These are the values persisted in audit log
// entries and published on the event bus.
const (
	EventNodeCreated       = "node_created"
	EventNodeUpdated       = "node_updated"
	EventNodeDeleted       = "node_deleted"
	EventEdgeCreated       = "edge_created"
	EventEdgeUpdated       = "edge_updated"
	EventEdgeDeleted       = "edge_deleted"
	EventNodesMerged          = "nodes_merged"
	EventSnapshotCreated      = "snapshot_created"
	EventSnapshotCompleted    = "snapshot_completed"
	EventSnapshotFailed       = "snapshot_failed"
	EventMetricsComputed      = "metrics_computed"
	EventEmbeddingsBackfilled = "embeddings_backfilled"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Node Events

// NodeCreated is raised when a new node is registered
type NodeCreated struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	NodeType valueobjects.NodeType `json:"node_type"`
	Label    string                `json:"label"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID valueobjects.NodeID, nodeType valueobjects.NodeType, label string, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   EventNodeCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		NodeType: nodeType,
		Label:    label,
	}
}

// NodeUpdated is raised when mutable node fields change
type NodeUpdated struct {
	BaseEvent
	NodeID        valueobjects.NodeID `json:"node_id"`
	ChangedFields []string            `json:"changed_fields"`
}

// NewNodeUpdated creates a NodeUpdated event
func NewNodeUpdated(nodeID valueobjects.NodeID, changedFields []string, timestamp time.Time) NodeUpdated {
	return NodeUpdated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   EventNodeUpdated,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:        nodeID,
		ChangedFields: changedFields,
	}
}

// NodeDeleted is raised when a node is soft-deleted
type NodeDeleted struct {
	BaseEvent
	NodeID   valueobjects.NodeID   `json:"node_id"`
	NodeType valueobjects.NodeType `json:"node_type"`
	Label    string                `json:"label"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(nodeID valueobjects.NodeID, nodeType valueobjects.NodeType, label string, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   EventNodeDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		NodeType: nodeType,
		Label:    label,
	}
}

// Edge Events

// EdgeCreated is raised when two nodes are connected
type EdgeCreated struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID   `json:"edge_id"`
	SourceID valueobjects.NodeID   `json:"source_id"`
	TargetID valueobjects.NodeID   `json:"target_id"`
	EdgeType valueobjects.EdgeType `json:"edge_type"`
	Weight   float64               `json:"weight"`
}

// NewEdgeCreated creates an EdgeCreated event
func NewEdgeCreated(edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, edgeType valueobjects.EdgeType, weight float64, timestamp time.Time) EdgeCreated {
	return EdgeCreated{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   EventEdgeCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		EdgeID:   edgeID,
		SourceID: sourceID,
		TargetID: targetID,
		EdgeType: edgeType,
		Weight:   weight,
	}
}

// EdgeUpdated is raised when mutable edge fields change
type EdgeUpdated struct {
	BaseEvent
	EdgeID        valueobjects.EdgeID `json:"edge_id"`
	ChangedFields []string            `json:"changed_fields"`
}

// NewEdgeUpdated creates an EdgeUpdated event
func NewEdgeUpdated(edgeID valueobjects.EdgeID, changedFields []string, timestamp time.Time) EdgeUpdated {
	return EdgeUpdated{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   EventEdgeUpdated,
			Timestamp:   timestamp,
			Version:     1,
		},
		EdgeID:        edgeID,
		ChangedFields: changedFields,
	}
}

// EdgeDeleted is raised when an edge is soft-deleted
type EdgeDeleted struct {
	BaseEvent
	EdgeID   valueobjects.EdgeID `json:"edge_id"`
	SourceID valueobjects.NodeID `json:"source_id"`
	TargetID valueobjects.NodeID `json:"target_id"`
}

// NewEdgeDeleted creates an EdgeDeleted event
func NewEdgeDeleted(edgeID valueobjects.EdgeID, sourceID, targetID valueobjects.NodeID, timestamp time.Time) EdgeDeleted {
	return EdgeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: edgeID.String(),
			EventType:   EventEdgeDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		EdgeID:   edgeID,
		SourceID: sourceID,
		TargetID: targetID,
	}
}

// Merge Events

// NodesMerged is raised when source nodes are merged into a surviving node
type NodesMerged struct {
	BaseEvent
	SurvivorID      valueobjects.NodeID   `json:"survivor_id"`
	SourceIDs       []valueobjects.NodeID `json:"source_ids"`
	RedirectedEdges int                   `json:"redirected_edges"`
	DroppedEdges    int                   `json:"dropped_edges"`
}

// NewNodesMerged creates a NodesMerged event
func NewNodesMerged(survivorID valueobjects.NodeID, sourceIDs []valueobjects.NodeID, redirected, dropped int, timestamp time.Time) NodesMerged {
	return NodesMerged{
		BaseEvent: BaseEvent{
			AggregateID: survivorID.String(),
			EventType:   EventNodesMerged,
			Timestamp:   timestamp,
			Version:     1,
		},
		SurvivorID:      survivorID,
		SourceIDs:       sourceIDs,
		RedirectedEdges: redirected,
		DroppedEdges:    dropped,
	}
}

// Snapshot Events

// SnapshotCreated is raised when a snapshot is registered for capture
type SnapshotCreated struct {
	BaseEvent
	SnapshotID   valueobjects.SnapshotID `json:"snapshot_id"`
	SnapshotType string                  `json:"snapshot_type"`
}

// NewSnapshotCreated creates a SnapshotCreated event
func NewSnapshotCreated(snapshotID valueobjects.SnapshotID, snapshotType string, timestamp time.Time) SnapshotCreated {
	return SnapshotCreated{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID.String(),
			EventType:   EventSnapshotCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		SnapshotID:   snapshotID,
		SnapshotType: snapshotType,
	}
}

// SnapshotCompleted is raised when a snapshot capture finishes
type SnapshotCompleted struct {
	BaseEvent
	SnapshotID valueobjects.SnapshotID `json:"snapshot_id"`
	NodeCount  int                     `json:"node_count"`
	EdgeCount  int                     `json:"edge_count"`
}

// NewSnapshotCompleted creates a SnapshotCompleted event
func NewSnapshotCompleted(snapshotID valueobjects.SnapshotID, nodeCount, edgeCount int, timestamp time.Time) SnapshotCompleted {
	return SnapshotCompleted{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID.String(),
			EventType:   EventSnapshotCompleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		SnapshotID: snapshotID,
		NodeCount:  nodeCount,
		EdgeCount:  edgeCount,
	}
}

// SnapshotFailed is raised when a snapshot capture fails
type SnapshotFailed struct {
	BaseEvent
	SnapshotID valueobjects.SnapshotID `json:"snapshot_id"`
	Reason     string                  `json:"reason"`
}

// NewSnapshotFailed creates a SnapshotFailed event
func NewSnapshotFailed(snapshotID valueobjects.SnapshotID, reason string, timestamp time.Time) SnapshotFailed {
	return SnapshotFailed{
		BaseEvent: BaseEvent{
			AggregateID: snapshotID.String(),
			EventType:   EventSnapshotFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		SnapshotID: snapshotID,
		Reason:     reason,
	}
}

// Metrics Events

// MetricsComputed is raised when a metrics computation run finishes
type MetricsComputed struct {
	BaseEvent
	RunID        string `json:"run_id"`
	NodesScored  int    `json:"nodes_scored"`
	ClusterCount int    `json:"cluster_count"`
}

// NewMetricsComputed creates a MetricsComputed event
func NewMetricsComputed(runID string, nodesScored, clusterCount int, timestamp time.Time) MetricsComputed {
	return MetricsComputed{
		BaseEvent: BaseEvent{
			AggregateID: runID,
			EventType:   EventMetricsComputed,
			Timestamp:   timestamp,
			Version:     1,
		},
		RunID:        runID,
		NodesScored:  nodesScored,
		ClusterCount: clusterCount,
	}
}
