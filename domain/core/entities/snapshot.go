package entities

import (
	"time"

	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

// SnapshotStatus is the lifecycle state of a snapshot capture.
type SnapshotStatus string

const (
	SnapshotPending   SnapshotStatus = "pending"
	SnapshotComputing SnapshotStatus = "computing"
	SnapshotComplete  SnapshotStatus = "complete"
	SnapshotFailed    SnapshotStatus = "failed"
)

// IsTerminal reports whether the status is an end state
func (s SnapshotStatus) IsTerminal() bool {
	return s == SnapshotComplete || s == SnapshotFailed
}

// SnapshotType selects how much of the graph a capture covers.
type SnapshotType string

const (
	// SnapshotFull captures every active node and edge.
	SnapshotFull SnapshotType = "full"
	// SnapshotIncremental captures records changed since the most recent
	// complete snapshot.
	SnapshotIncremental SnapshotType = "incremental"
)

// IsValid reports whether the snapshot type is known
func (t SnapshotType) IsValid() bool {
	return t == SnapshotFull || t == SnapshotIncremental
}

// CapturedNode is the value-only record of a node at capture time.
// Embedding vectors are deliberately excluded from the payload.
type CapturedNode struct {
	ID              string                 `json:"id"`
	NodeType        string                 `json:"nodeType"`
	Label           string                 `json:"label"`
	Description     string                 `json:"description,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Categories      []string               `json:"categories,omitempty"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
	ConfidenceScore float64                `json:"confidenceScore"`
	CentralityScore *float64               `json:"centralityScore,omitempty"`
	ClusterID       string                 `json:"clusterId,omitempty"`
	HasEmbedding    bool                   `json:"hasEmbedding"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Version         int                    `json:"version"`
}

// CapturedEdge is the value-only record of an edge at capture time.
type CapturedEdge struct {
	ID              string                 `json:"id"`
	SourceNodeID    string                 `json:"sourceNodeId"`
	TargetNodeID    string                 `json:"targetNodeId"`
	EdgeType        string                 `json:"edgeType"`
	Label           string                 `json:"label,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Weight          float64                `json:"weight"`
	IsBidirectional bool                   `json:"isBidirectional"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
	ConfidenceScore float64                `json:"confidenceScore"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Version         int                    `json:"version"`
}

// CaptureNode flattens a node entity into its captured record
func CaptureNode(node *Node) CapturedNode {
	return CapturedNode{
		ID:              node.ID().String(),
		NodeType:        node.Type().String(),
		Label:           node.Label().String(),
		Description:     node.Description(),
		Tags:            node.Tags(),
		Categories:      node.Categories(),
		Properties:      node.Properties(),
		ConfidenceScore: node.Confidence().Value(),
		CentralityScore: node.CentralityScore(),
		ClusterID:       node.ClusterID(),
		HasEmbedding:    node.HasEmbedding(),
		CreatedAt:       node.CreatedAt(),
		UpdatedAt:       node.UpdatedAt(),
		Version:         node.Version(),
	}
}

// CaptureEdge flattens an edge entity into its captured record
func CaptureEdge(edge *Edge) CapturedEdge {
	return CapturedEdge{
		ID:              edge.ID().String(),
		SourceNodeID:    edge.SourceID().String(),
		TargetNodeID:    edge.TargetID().String(),
		EdgeType:        edge.Type().String(),
		Label:           edge.Label().String(),
		Description:     edge.Description(),
		Weight:          edge.Weight().Value(),
		IsBidirectional: edge.IsBidirectional(),
		Properties:      edge.Properties(),
		ConfidenceScore: edge.Confidence().Value(),
		CreatedAt:       edge.CreatedAt(),
		UpdatedAt:       edge.UpdatedAt(),
		Version:         edge.Version(),
	}
}

// FieldChange records a single field-level difference between captures.
type FieldChange struct {
	Field  string      `json:"field"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

// NodeChange records all field changes on one node between two captures.
type NodeChange struct {
	NodeID string        `json:"nodeId"`
	Fields []FieldChange `json:"fields"`
}

// EdgeChange records all field changes on one edge between two captures.
type EdgeChange struct {
	EdgeID string        `json:"edgeId"`
	Fields []FieldChange `json:"fields"`
}

// SnapshotDiff summarizes the delta between this snapshot and the most
// recent complete snapshot that preceded it.
type SnapshotDiff struct {
	BaseSnapshotID string       `json:"baseSnapshotId,omitempty"`
	AddedNodes     []string     `json:"addedNodes,omitempty"`
	RemovedNodes   []string     `json:"removedNodes,omitempty"`
	ModifiedNodes  []NodeChange `json:"modifiedNodes,omitempty"`
	AddedEdges     []string     `json:"addedEdges,omitempty"`
	RemovedEdges   []string     `json:"removedEdges,omitempty"`
	ModifiedEdges  []EdgeChange `json:"modifiedEdges,omitempty"`
}

// IsEmpty reports whether the diff carries no changes
func (d *SnapshotDiff) IsEmpty() bool {
	if d == nil {
		return true
	}
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0 && len(d.ModifiedEdges) == 0
}

// Snapshot is a point-in-time capture of the graph. Captures run in the
// background: a snapshot is registered as pending, a worker moves it to
// computing, and it lands in complete or failed. Regeneration resets a
// terminal snapshot back to pending.
type Snapshot struct {
	id           valueobjects.SnapshotID
	name         string
	description  string
	snapshotType SnapshotType
	status       SnapshotStatus
	computeDiff  bool
	errorMessage string
	nodeCount    int
	edgeCount    int
	nodes        []CapturedNode
	edges        []CapturedEdge
	diff         *SnapshotDiff
	checksum     string
	createdAt    time.Time
	updatedAt    time.Time
	completedAt  *time.Time

	version     int
	baseVersion int

	events []events.DomainEvent
}

// NewSnapshot registers a snapshot for background capture. The computeDiff
// choice is stored on the snapshot so regeneration repeats it.
func NewSnapshot(name, description string, snapshotType SnapshotType, computeDiff bool) (*Snapshot, error) {
	if name == "" {
		return nil, pkgerrors.NewValidationError("snapshot name is required")
	}
	if !snapshotType.IsValid() {
		return nil, pkgerrors.NewValidationError("snapshot type must be full or incremental").
			WithDetail("snapshotType", string(snapshotType))
	}

	now := time.Now()
	snapshot := &Snapshot{
		id:           valueobjects.NewSnapshotID(),
		name:         name,
		description:  description,
		snapshotType: snapshotType,
		status:       SnapshotPending,
		computeDiff:  computeDiff,
		createdAt:    now,
		updatedAt:    now,
		version:      1,
		baseVersion:  0,
		events:       []events.DomainEvent{},
	}

	snapshot.addEvent(events.NewSnapshotCreated(snapshot.id, string(snapshotType), now))

	return snapshot, nil
}

// ReconstructSnapshot reconstructs a snapshot from repository data
func ReconstructSnapshot(
	id valueobjects.SnapshotID,
	name, description string,
	snapshotType SnapshotType,
	status SnapshotStatus,
	computeDiff bool,
	errorMessage string,
	nodeCount, edgeCount int,
	nodes []CapturedNode,
	edges []CapturedEdge,
	diff *SnapshotDiff,
	checksum string,
	createdAt, updatedAt time.Time,
	completedAt *time.Time,
	version int,
) (*Snapshot, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("snapshot id is required")
	}

	return &Snapshot{
		id:           id,
		name:         name,
		description:  description,
		snapshotType: snapshotType,
		status:       status,
		computeDiff:  computeDiff,
		errorMessage: errorMessage,
		nodeCount:    nodeCount,
		edgeCount:    edgeCount,
		nodes:        nodes,
		edges:        edges,
		diff:         diff,
		checksum:     checksum,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		completedAt:  completedAt,
		version:      version,
		baseVersion:  version,
		events:       []events.DomainEvent{},
	}, nil
}

// ID returns the snapshot's unique identifier
func (s *Snapshot) ID() valueobjects.SnapshotID {
	return s.id
}

// Name returns the snapshot's display name
func (s *Snapshot) Name() string {
	return s.name
}

// Description returns the snapshot's free-text description
func (s *Snapshot) Description() string {
	return s.description
}

// Type returns whether the capture is full or incremental
func (s *Snapshot) Type() SnapshotType {
	return s.snapshotType
}

// Status returns the snapshot's lifecycle state
func (s *Snapshot) Status() SnapshotStatus {
	return s.status
}

// ComputeDiff reports whether captures of this snapshot diff against the
// previous complete capture
func (s *Snapshot) ComputeDiff() bool {
	return s.computeDiff
}

// ErrorMessage returns the failure reason for failed snapshots
func (s *Snapshot) ErrorMessage() string {
	return s.errorMessage
}

// NodeCount returns the number of captured nodes
func (s *Snapshot) NodeCount() int {
	return s.nodeCount
}

// EdgeCount returns the number of captured edges
func (s *Snapshot) EdgeCount() int {
	return s.edgeCount
}

// Nodes returns the captured node records
func (s *Snapshot) Nodes() []CapturedNode {
	nodes := make([]CapturedNode, len(s.nodes))
	copy(nodes, s.nodes)
	return nodes
}

// Edges returns the captured edge records
func (s *Snapshot) Edges() []CapturedEdge {
	edges := make([]CapturedEdge, len(s.edges))
	copy(edges, s.edges)
	return edges
}

// Diff returns the delta against the previous complete snapshot, or nil
func (s *Snapshot) Diff() *SnapshotDiff {
	return s.diff
}

// Checksum returns the content checksum of the captured payload
func (s *Snapshot) Checksum() string {
	return s.checksum
}

// CreatedAt returns when the snapshot was registered
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the snapshot last changed state
func (s *Snapshot) UpdatedAt() time.Time {
	return s.updatedAt
}

// CompletedAt returns when the capture finished, or nil
func (s *Snapshot) CompletedAt() *time.Time {
	if s.completedAt == nil {
		return nil
	}
	t := *s.completedAt
	return &t
}

// Version returns the snapshot's version for optimistic locking
func (s *Snapshot) Version() int {
	return s.version
}

// BaseVersion returns the version the snapshot was loaded with
func (s *Snapshot) BaseVersion() int {
	return s.baseVersion
}

// StartComputing transitions pending -> computing. Any other starting
// state is a conflict: the capture either already ran or is running.
func (s *Snapshot) StartComputing() error {
	if s.status != SnapshotPending {
		return pkgerrors.SnapshotBusy(s.id.String()).
			WithDetail("status", string(s.status))
	}

	s.status = SnapshotComputing
	s.touch()

	return nil
}

// Complete transitions computing -> complete and stores the captured
// payload, counts, diff and checksum.
func (s *Snapshot) Complete(nodes []CapturedNode, edges []CapturedEdge, diff *SnapshotDiff, checksum string) error {
	if s.status != SnapshotComputing {
		return pkgerrors.SnapshotBusy(s.id.String()).
			WithDetail("status", string(s.status))
	}

	now := time.Now()
	s.status = SnapshotComplete
	s.nodes = nodes
	s.edges = edges
	s.nodeCount = len(nodes)
	s.edgeCount = len(edges)
	s.diff = diff
	s.checksum = checksum
	s.errorMessage = ""
	s.completedAt = &now
	s.touch()

	s.addEvent(events.NewSnapshotCompleted(s.id, s.nodeCount, s.edgeCount, now))

	return nil
}

// Fail transitions computing -> failed and records the reason
func (s *Snapshot) Fail(reason string) error {
	if s.status != SnapshotComputing {
		return pkgerrors.SnapshotBusy(s.id.String()).
			WithDetail("status", string(s.status))
	}

	now := time.Now()
	s.status = SnapshotFailed
	s.errorMessage = reason
	s.completedAt = &now
	s.touch()

	s.addEvent(events.NewSnapshotFailed(s.id, reason, now))

	return nil
}

// ResetForRegeneration moves a terminal snapshot back to pending so the
// worker captures it again. Requests against a pending or computing
// snapshot are conflicts.
func (s *Snapshot) ResetForRegeneration() error {
	if !s.status.IsTerminal() {
		return pkgerrors.SnapshotBusy(s.id.String()).
			WithDetail("status", string(s.status))
	}

	s.status = SnapshotPending
	s.errorMessage = ""
	s.nodes = nil
	s.edges = nil
	s.nodeCount = 0
	s.edgeCount = 0
	s.diff = nil
	s.checksum = ""
	s.completedAt = nil
	s.touch()

	s.addEvent(events.NewSnapshotCreated(s.id, string(s.snapshotType), s.updatedAt))

	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (s *Snapshot) GetUncommittedEvents() []events.DomainEvent {
	return s.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (s *Snapshot) MarkEventsAsCommitted() {
	s.events = []events.DomainEvent{}
}

// MarkPersisted records that the current version has been written
func (s *Snapshot) MarkPersisted() {
	s.baseVersion = s.version
}

func (s *Snapshot) touch() {
	s.updatedAt = time.Now()
	s.version++
}

func (s *Snapshot) addEvent(event events.DomainEvent) {
	s.events = append(s.events, event)
}
