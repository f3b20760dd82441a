package entities

import (
	"time"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

// Edge is a directed, weighted relationship between two nodes. Endpoints
// are fixed at creation; the only operation allowed to rewrite them is
// a merge redirect, which moves an endpoint from an absorbed node to the
// surviving one.
type Edge struct {
	id              valueobjects.EdgeID
	sourceID        valueobjects.NodeID
	targetID        valueobjects.NodeID
	edgeType        valueobjects.EdgeType
	label           valueobjects.Label
	description     string
	weight          valueobjects.Weight
	isBidirectional bool
	properties      map[string]interface{}
	confidence      valueobjects.Confidence
	isActive        bool
	createdAt       time.Time
	updatedAt       time.Time

	version     int
	baseVersion int

	events []events.DomainEvent
}

// EdgeAttributes carries the optional fields accepted at creation time.
type EdgeAttributes struct {
	Label           string
	Description     string
	Weight          *float64
	IsBidirectional bool
	Properties      map[string]interface{}
	Confidence      *float64
}

// NewEdge creates a new edge with full business rule validation. Endpoint
// existence and activity are checked by the caller against the registry;
// the entity validates everything knowable from its own state.
func NewEdge(sourceID, targetID valueobjects.NodeID, edgeType valueobjects.EdgeType, attrs EdgeAttributes) (*Edge, error) {
	return NewEdgeWithConfig(sourceID, targetID, edgeType, attrs, config.DefaultDomainConfig())
}

// NewEdgeWithConfig creates a new edge using explicit domain limits
func NewEdgeWithConfig(sourceID, targetID valueobjects.NodeID, edgeType valueobjects.EdgeType, attrs EdgeAttributes, cfg *config.DomainConfig) (*Edge, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if sourceID.IsZero() {
		return nil, pkgerrors.EndpointInvalid("", "source node id is required")
	}
	if targetID.IsZero() {
		return nil, pkgerrors.EndpointInvalid("", "target node id is required")
	}
	if !cfg.AllowSelfEdges && sourceID.Equals(targetID) {
		return nil, pkgerrors.EndpointInvalid(sourceID.String(), "self-edges are not allowed")
	}
	if !edgeType.IsValid() {
		return nil, pkgerrors.UnknownEdgeType(string(edgeType))
	}

	label, err := valueobjects.NewOptionalLabel(attrs.Label)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	description, err := valueobjects.ValidateDescription(attrs.Description)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	weight := valueobjects.DefaultWeight()
	if attrs.Weight != nil {
		weight, err = valueobjects.NewWeight(*attrs.Weight)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
	}

	confidence := valueobjects.DefaultConfidence()
	if attrs.Confidence != nil {
		confidence, err = valueobjects.NewConfidence(*attrs.Confidence)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
	}

	props, err := normalizeProperties(attrs.Properties, cfg.MaxPropertyKeys)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	edge := &Edge{
		id:              valueobjects.NewEdgeID(),
		sourceID:        sourceID,
		targetID:        targetID,
		edgeType:        edgeType,
		label:           label,
		description:     description,
		weight:          weight,
		isBidirectional: attrs.IsBidirectional,
		properties:      props,
		confidence:      confidence,
		isActive:        true,
		createdAt:       now,
		updatedAt:       now,
		version:         1,
		baseVersion:     0,
		events:          []events.DomainEvent{},
	}

	edge.addEvent(events.NewEdgeCreated(edge.id, sourceID, targetID, edgeType, weight.Value(), now))

	return edge, nil
}

// ReconstructEdge reconstructs an edge from repository data with preserved
// timestamps and version. No domain events are recorded.
func ReconstructEdge(
	id valueobjects.EdgeID,
	sourceID, targetID valueobjects.NodeID,
	edgeType valueobjects.EdgeType,
	label valueobjects.Label,
	description string,
	weight valueobjects.Weight,
	isBidirectional bool,
	properties map[string]interface{},
	confidence valueobjects.Confidence,
	isActive bool,
	createdAt, updatedAt time.Time,
	version int,
) (*Edge, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("edge id is required")
	}
	if !edgeType.IsValid() {
		return nil, pkgerrors.UnknownEdgeType(string(edgeType))
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}

	return &Edge{
		id:              id,
		sourceID:        sourceID,
		targetID:        targetID,
		edgeType:        edgeType,
		label:           label,
		description:     description,
		weight:          weight,
		isBidirectional: isBidirectional,
		properties:      properties,
		confidence:      confidence,
		isActive:        isActive,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
		version:         version,
		baseVersion:     version,
		events:          []events.DomainEvent{},
	}, nil
}

// ID returns the edge's unique identifier
func (e *Edge) ID() valueobjects.EdgeID {
	return e.id
}

// SourceID returns the source endpoint
func (e *Edge) SourceID() valueobjects.NodeID {
	return e.sourceID
}

// TargetID returns the target endpoint
func (e *Edge) TargetID() valueobjects.NodeID {
	return e.targetID
}

// Type returns the edge's relationship type
func (e *Edge) Type() valueobjects.EdgeType {
	return e.edgeType
}

// Label returns the edge's optional display name
func (e *Edge) Label() valueobjects.Label {
	return e.label
}

// Description returns the edge's optional free-text description
func (e *Edge) Description() string {
	return e.description
}

// Weight returns the edge's traversal weight
func (e *Edge) Weight() valueobjects.Weight {
	return e.weight
}

// IsBidirectional reports whether the edge is traversable both ways
func (e *Edge) IsBidirectional() bool {
	return e.isBidirectional
}

// Properties returns a shallow copy of the edge's property map
func (e *Edge) Properties() map[string]interface{} {
	props := make(map[string]interface{}, len(e.properties))
	for k, v := range e.properties {
		props[k] = v
	}
	return props
}

// Confidence returns the edge's confidence score
func (e *Edge) Confidence() valueobjects.Confidence {
	return e.confidence
}

// IsActive reports whether the edge is live (not soft-deleted)
func (e *Edge) IsActive() bool {
	return e.isActive
}

// CreatedAt returns when the edge was created
func (e *Edge) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt returns when the edge was last updated
func (e *Edge) UpdatedAt() time.Time {
	return e.updatedAt
}

// Version returns the edge's version for optimistic locking
func (e *Edge) Version() int {
	return e.version
}

// BaseVersion returns the version the edge was loaded with
func (e *Edge) BaseVersion() int {
	return e.baseVersion
}

// Touches reports whether the edge has the given node as either endpoint
func (e *Edge) Touches(nodeID valueobjects.NodeID) bool {
	return e.sourceID.Equals(nodeID) || e.targetID.Equals(nodeID)
}

// OtherEnd returns the opposite endpoint from the given node. Falls back
// to the source when the node matches neither endpoint.
func (e *Edge) OtherEnd(nodeID valueobjects.NodeID) valueobjects.NodeID {
	if e.sourceID.Equals(nodeID) {
		return e.targetID
	}
	return e.sourceID
}

// IsSelfLoop reports whether both endpoints are the same node
func (e *Edge) IsSelfLoop() bool {
	return e.sourceID.Equals(e.targetID)
}

// DuplicateKey identifies edges that carry the same relationship: same
// type between the same endpoints. Bidirectional edges canonicalize the
// endpoint order so A->B and B->A collide.
func (e *Edge) DuplicateKey() string {
	a, b := e.sourceID.String(), e.targetID.String()
	if e.isBidirectional && b < a {
		a, b = b, a
	}
	return string(e.edgeType) + "|" + a + "|" + b
}

// EdgeUpdate carries a partial update. Nil fields are left unchanged.
type EdgeUpdate struct {
	Label       *string
	Description *string
	Weight      *float64
	Properties  map[string]interface{}
	Confidence  *float64
}

// Update applies a partial update to the edge's mutable fields. Endpoints
// and type are immutable; only weight, properties and confidence change.
func (e *Edge) Update(update EdgeUpdate) error {
	return e.UpdateWithConfig(update, config.DefaultDomainConfig())
}

// UpdateWithConfig applies a partial update using explicit domain limits
func (e *Edge) UpdateWithConfig(update EdgeUpdate, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if !e.isActive {
		return pkgerrors.EdgeNotFound(e.id.String())
	}

	changed := []string{}

	if update.Label != nil {
		label, err := valueobjects.NewOptionalLabel(*update.Label)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if !label.Equals(e.label) {
			e.label = label
			changed = append(changed, "label")
		}
	}

	if update.Description != nil {
		description, err := valueobjects.ValidateDescription(*update.Description)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if description != e.description {
			e.description = description
			changed = append(changed, "description")
		}
	}

	if update.Weight != nil {
		weight, err := valueobjects.NewWeight(*update.Weight)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if !weight.Equals(e.weight) {
			e.weight = weight
			changed = append(changed, "weight")
		}
	}

	if update.Properties != nil {
		props, err := normalizeProperties(update.Properties, cfg.MaxPropertyKeys)
		if err != nil {
			return err
		}
		e.properties = props
		changed = append(changed, "properties")
	}

	if update.Confidence != nil {
		confidence, err := valueobjects.NewConfidence(*update.Confidence)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if !confidence.Equals(e.confidence) {
			e.confidence = confidence
			changed = append(changed, "confidenceScore")
		}
	}

	if len(changed) == 0 {
		return nil
	}

	e.touch()
	e.addEvent(events.NewEdgeUpdated(e.id, changed, e.updatedAt))

	return nil
}

// Deactivate soft-deletes the edge. Idempotent; returns true when the
// state actually changed.
func (e *Edge) Deactivate() bool {
	if !e.isActive {
		return false
	}

	e.isActive = false
	e.touch()
	e.addEvent(events.NewEdgeDeleted(e.id, e.sourceID, e.targetID, e.updatedAt))

	return true
}

// Reactivate restores a soft-deleted edge. Used by merge compensation.
func (e *Edge) Reactivate() bool {
	if e.isActive {
		return false
	}

	e.isActive = true
	e.touch()
	e.addEvent(events.NewEdgeUpdated(e.id, []string{"isActive"}, e.updatedAt))

	return true
}

// RedirectEndpoint rewrites one endpoint from an absorbed node to the
// surviving node during a merge. This is the only operation that may
// change endpoints after creation.
func (e *Edge) RedirectEndpoint(from, to valueobjects.NodeID) error {
	if to.IsZero() {
		return pkgerrors.EndpointInvalid("", "redirect target is required")
	}
	if !e.Touches(from) {
		return pkgerrors.EndpointInvalid(from.String(), "edge does not touch the node being redirected")
	}

	changed := []string{}
	if e.sourceID.Equals(from) {
		e.sourceID = to
		changed = append(changed, "sourceNodeId")
	}
	if e.targetID.Equals(from) {
		e.targetID = to
		changed = append(changed, "targetNodeId")
	}

	e.touch()
	e.addEvent(events.NewEdgeUpdated(e.id, changed, e.updatedAt))

	return nil
}

// RestoreEndpoints rewrites both endpoints back to the given nodes. Merge
// compensation uses it to undo a redirect; no event is recorded because
// the edge returns to its previously published state.
func (e *Edge) RestoreEndpoints(sourceID, targetID valueobjects.NodeID) {
	e.sourceID = sourceID
	e.targetID = targetID
	e.touch()
}

// GetUncommittedEvents returns all uncommitted domain events
func (e *Edge) GetUncommittedEvents() []events.DomainEvent {
	return e.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (e *Edge) MarkEventsAsCommitted() {
	e.events = []events.DomainEvent{}
}

// MarkPersisted records that the current version has been written
func (e *Edge) MarkPersisted() {
	e.baseVersion = e.version
}

func (e *Edge) touch() {
	e.updatedAt = time.Now()
	e.version++
}

func (e *Edge) addEvent(event events.DomainEvent) {
	e.events = append(e.events, event)
}
