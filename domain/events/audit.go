package events

import "time"

// AuditRecorded wraps a persisted audit entry for publication. The outbox
// processor converts each drained entry into one of these so downstream
// consumers see the same before/after payload the log stores.
type AuditRecorded struct {
	BaseEvent
	EntryID    string                 `json:"entry_id"`
	EntityKind string                 `json:"entity_kind"`
	NodeID     string                 `json:"node_id,omitempty"`
	EdgeID     string                 `json:"edge_id,omitempty"`
	Actor      string                 `json:"actor"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewAuditRecorded creates an AuditRecorded event
func NewAuditRecorded(entryID, eventType, entityKind, entityID, nodeID, edgeID, actor string, before, after, metadata map[string]interface{}, timestamp time.Time) AuditRecorded {
	return AuditRecorded{
		BaseEvent: BaseEvent{
			AggregateID: entityID,
			EventType:   eventType,
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:    entryID,
		EntityKind: entityKind,
		NodeID:     nodeID,
		EdgeID:     edgeID,
		Actor:      actor,
		Before:     before,
		After:      after,
		Metadata:   metadata,
	}
}
