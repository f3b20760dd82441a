package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind names the kind of record an audit entry is about.
type EntityKind string

const (
	EntityKindNode        EntityKind = "node"
	EntityKindEdge        EntityKind = "edge"
	EntityKindSnapshot    EntityKind = "snapshot"
	EntityKindMetrics     EntityKind = "metrics"
	EntityKindMaintenance EntityKind = "maintenance"
)

// AuditEntry is an append-only record of a graph mutation. Entries are
// written alongside the mutation and published to the event bus by the
// outbox processor; a publish failure never fails the primary write.
// NodeID and EdgeID are set when the mutation concerns a node or edge so
// the log can be filtered by either; EntityID always carries the id of
// the record the entry is primarily about.
type AuditEntry struct {
	ID         string                 `json:"id"`
	EventType  string                 `json:"eventType"`
	EntityKind EntityKind             `json:"entityKind"`
	EntityID   string                 `json:"entityId"`
	NodeID     string                 `json:"nodeId,omitempty"`
	EdgeID     string                 `json:"edgeId,omitempty"`
	Actor      string                 `json:"actorContext"`
	Before     map[string]interface{} `json:"beforeState,omitempty"`
	After      map[string]interface{} `json:"afterState,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewAuditEntry creates an audit entry for a mutation
func NewAuditEntry(eventType string, kind EntityKind, entityID, actor string, before, after map[string]interface{}) *AuditEntry {
	entry := &AuditEntry{
		ID:         uuid.New().String(),
		EventType:  eventType,
		EntityKind: kind,
		EntityID:   entityID,
		Actor:      actor,
		Before:     before,
		After:      after,
		Timestamp:  time.Now(),
	}
	switch kind {
	case EntityKindNode:
		entry.NodeID = entityID
	case EntityKindEdge:
		entry.EdgeID = entityID
	}
	return entry
}

// WithMetadata attaches free-form context to the entry
func (a *AuditEntry) WithMetadata(metadata map[string]interface{}) *AuditEntry {
	a.Metadata = metadata
	return a
}

// WithNodeID links the entry to a node it affects beyond the primary
// entity, such as the surviving node of a merge.
func (a *AuditEntry) WithNodeID(nodeID string) *AuditEntry {
	a.NodeID = nodeID
	return a
}

// WithEdgeID links the entry to an affected edge.
func (a *AuditEntry) WithEdgeID(edgeID string) *AuditEntry {
	a.EdgeID = edgeID
	return a
}

// StateMap flattens an arbitrary serializable value into the map form
// used for before/after payloads. Returns nil for nil input.
func StateMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// NodeStateMap captures a node's current state for audit payloads
func NodeStateMap(node *Node) map[string]interface{} {
	if node == nil {
		return nil
	}
	return StateMap(CaptureNode(node))
}

// EdgeStateMap captures an edge's current state for audit payloads
func EdgeStateMap(edge *Edge) map[string]interface{} {
	if edge == nil {
		return nil
	}
	return StateMap(CaptureEdge(edge))
}
