package entities

import (
	"fmt"
	"strings"
	"time"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

// Node is the main entity representing a vertex in the knowledge graph.
// This is a rich domain model with encapsulated business logic: all
// mutations go through methods that validate, bump the version and
// record domain events.
type Node struct {
	// Private fields ensure encapsulation
	id              valueobjects.NodeID
	nodeType        valueobjects.NodeType
	label           valueobjects.Label
	description     string
	tags            []string
	categories      []string
	properties      map[string]interface{}
	confidence      valueobjects.Confidence
	isActive        bool
	centralityScore *float64
	clusterID       string
	embedding       []float32
	createdAt       time.Time
	updatedAt       time.Time

	// version is bumped on every mutation; baseVersion is the version
	// the node was loaded with and is what conditional writes check.
	version     int
	baseVersion int

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NodeAttributes carries the optional fields accepted at creation time.
type NodeAttributes struct {
	Description string
	Tags        []string
	Categories  []string
	Properties  map[string]interface{}
	Confidence  *float64
}

// NewNode creates a new node with full business rule validation
func NewNode(nodeType valueobjects.NodeType, label valueobjects.Label, attrs NodeAttributes) (*Node, error) {
	return NewNodeWithConfig(nodeType, label, attrs, config.DefaultDomainConfig())
}

// NewNodeWithConfig creates a new node using explicit domain limits
func NewNodeWithConfig(nodeType valueobjects.NodeType, label valueobjects.Label, attrs NodeAttributes, cfg *config.DomainConfig) (*Node, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if !nodeType.IsValid() {
		return nil, pkgerrors.UnknownNodeType(string(nodeType))
	}
	if label.IsEmpty() {
		return nil, pkgerrors.NewValidationError("label is required").WithCode(pkgerrors.CodeLabelRequired)
	}
	description, err := valueobjects.ValidateDescription(attrs.Description)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	tags, err := normalizeStringSet(attrs.Tags, cfg.MaxTagsPerNode, "tags")
	if err != nil {
		return nil, err
	}
	categories, err := normalizeStringSet(attrs.Categories, cfg.MaxCategoriesPerNode, "categories")
	if err != nil {
		return nil, err
	}

	props, err := normalizeProperties(attrs.Properties, cfg.MaxPropertyKeys)
	if err != nil {
		return nil, err
	}
	if err := ValidateNodeProperties(nodeType, props); err != nil {
		return nil, err
	}

	confidence := valueobjects.DefaultConfidence()
	if attrs.Confidence != nil {
		confidence, err = valueobjects.NewConfidence(*attrs.Confidence)
		if err != nil {
			return nil, pkgerrors.NewValidationError(err.Error())
		}
	}

	now := time.Now()
	node := &Node{
		id:          valueobjects.NewNodeID(),
		nodeType:    nodeType,
		label:       label,
		description: description,
		tags:        tags,
		categories:  categories,
		properties:  props,
		confidence:  confidence,
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
		baseVersion: 0,
		events:      []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(node.id, nodeType, label.String(), now))

	return node, nil
}

// ReconstructNode reconstructs a node from repository data with preserved
// timestamps and version. No domain events are recorded.
func ReconstructNode(
	id valueobjects.NodeID,
	nodeType valueobjects.NodeType,
	label valueobjects.Label,
	description string,
	tags, categories []string,
	properties map[string]interface{},
	confidence valueobjects.Confidence,
	isActive bool,
	centralityScore *float64,
	clusterID string,
	embedding []float32,
	createdAt, updatedAt time.Time,
	version int,
) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node id is required")
	}
	if !nodeType.IsValid() {
		return nil, pkgerrors.UnknownNodeType(string(nodeType))
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	if tags == nil {
		tags = []string{}
	}
	if categories == nil {
		categories = []string{}
	}

	return &Node{
		id:              id,
		nodeType:        nodeType,
		label:           label,
		description:     description,
		tags:            tags,
		categories:      categories,
		properties:      properties,
		confidence:      confidence,
		isActive:        isActive,
		centralityScore: centralityScore,
		clusterID:       clusterID,
		embedding:       embedding,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
		version:         version,
		baseVersion:     version,
		events:          []events.DomainEvent{},
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Type returns the node's type
func (n *Node) Type() valueobjects.NodeType {
	return n.nodeType
}

// Label returns the node's display label
func (n *Node) Label() valueobjects.Label {
	return n.label
}

// Description returns the node's free-text description
func (n *Node) Description() string {
	return n.description
}

// Tags returns a copy of the node's tags
func (n *Node) Tags() []string {
	tags := make([]string, len(n.tags))
	copy(tags, n.tags)
	return tags
}

// Categories returns a copy of the node's categories
func (n *Node) Categories() []string {
	categories := make([]string, len(n.categories))
	copy(categories, n.categories)
	return categories
}

// Properties returns a shallow copy of the node's property map
func (n *Node) Properties() map[string]interface{} {
	props := make(map[string]interface{}, len(n.properties))
	for k, v := range n.properties {
		props[k] = v
	}
	return props
}

// Confidence returns the node's confidence score
func (n *Node) Confidence() valueobjects.Confidence {
	return n.confidence
}

// IsActive reports whether the node is live (not soft-deleted)
func (n *Node) IsActive() bool {
	return n.isActive
}

// CentralityScore returns the last computed centrality, or nil if no
// metrics run has touched this node yet
func (n *Node) CentralityScore() *float64 {
	if n.centralityScore == nil {
		return nil
	}
	score := *n.centralityScore
	return &score
}

// ClusterID returns the cluster assignment from the last metrics run
func (n *Node) ClusterID() string {
	return n.clusterID
}

// Embedding returns a copy of the node's embedding vector, or nil
func (n *Node) Embedding() []float32 {
	if n.embedding == nil {
		return nil
	}
	vec := make([]float32, len(n.embedding))
	copy(vec, n.embedding)
	return vec
}

// HasEmbedding reports whether an embedding vector is attached
func (n *Node) HasEmbedding() bool {
	return len(n.embedding) > 0
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// Version returns the node's version for optimistic locking
func (n *Node) Version() int {
	return n.version
}

// BaseVersion returns the version the node was loaded with. Conditional
// writes check this value to detect concurrent modification.
func (n *Node) BaseVersion() int {
	return n.baseVersion
}

// NodeUpdate carries a partial update. Nil fields are left unchanged.
type NodeUpdate struct {
	Label       *valueobjects.Label
	Description *string
	Tags        []string
	Categories  []string
	Properties  map[string]interface{}
	Confidence  *float64
}

// Update applies a partial update to the node's mutable fields. The
// version is bumped only when at least one field actually changed.
func (n *Node) Update(update NodeUpdate) error {
	return n.UpdateWithConfig(update, config.DefaultDomainConfig())
}

// UpdateWithConfig applies a partial update using explicit domain limits
func (n *Node) UpdateWithConfig(update NodeUpdate, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if !n.isActive {
		return pkgerrors.NodeInactive(n.id.String())
	}

	changed := []string{}

	if update.Label != nil && !update.Label.Equals(n.label) {
		if update.Label.IsEmpty() {
			return pkgerrors.NewValidationError("label is required").WithCode(pkgerrors.CodeLabelRequired)
		}
		n.label = *update.Label
		changed = append(changed, "label")
	}

	if update.Description != nil {
		description, err := valueobjects.ValidateDescription(*update.Description)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if description != n.description {
			n.description = description
			changed = append(changed, "description")
		}
	}

	if update.Tags != nil {
		tags, err := normalizeStringSet(update.Tags, cfg.MaxTagsPerNode, "tags")
		if err != nil {
			return err
		}
		if !equalStringSets(tags, n.tags) {
			n.tags = tags
			changed = append(changed, "tags")
		}
	}

	if update.Categories != nil {
		categories, err := normalizeStringSet(update.Categories, cfg.MaxCategoriesPerNode, "categories")
		if err != nil {
			return err
		}
		if !equalStringSets(categories, n.categories) {
			n.categories = categories
			changed = append(changed, "categories")
		}
	}

	if update.Properties != nil {
		props, err := normalizeProperties(update.Properties, cfg.MaxPropertyKeys)
		if err != nil {
			return err
		}
		if err := ValidateNodeProperties(n.nodeType, props); err != nil {
			return err
		}
		n.properties = props
		changed = append(changed, "properties")
	}

	if update.Confidence != nil {
		confidence, err := valueobjects.NewConfidence(*update.Confidence)
		if err != nil {
			return pkgerrors.NewValidationError(err.Error())
		}
		if !confidence.Equals(n.confidence) {
			n.confidence = confidence
			changed = append(changed, "confidenceScore")
		}
	}

	if len(changed) == 0 {
		return nil
	}

	n.touch()
	n.addEvent(events.NewNodeUpdated(n.id, changed, n.updatedAt))

	return nil
}

// Deactivate soft-deletes the node. Deactivating an already inactive
// node is a no-op, which keeps deletion idempotent under retries.
// Returns true when the state actually changed.
func (n *Node) Deactivate() bool {
	if !n.isActive {
		return false
	}

	n.isActive = false
	n.touch()
	n.addEvent(events.NewNodeDeleted(n.id, n.nodeType, n.label.String(), n.updatedAt))

	return true
}

// Reactivate restores a soft-deleted node. Used by merge compensation
// to undo source deactivation when a later step fails.
func (n *Node) Reactivate() bool {
	if n.isActive {
		return false
	}

	n.isActive = true
	n.touch()
	n.addEvent(events.NewNodeUpdated(n.id, []string{"isActive"}, n.updatedAt))

	return true
}

// SetMetricScores records the results of a metrics computation run. A nil
// argument leaves that field untouched, so a centrality-only run does not
// clear cluster assignments and vice versa. Returns whether anything
// changed; unchanged nodes are not re-versioned.
func (n *Node) SetMetricScores(centrality *float64, clusterID *string) bool {
	changed := false

	if centrality != nil && (n.centralityScore == nil || *n.centralityScore != *centrality) {
		score := *centrality
		n.centralityScore = &score
		changed = true
	}
	if clusterID != nil && n.clusterID != *clusterID {
		n.clusterID = *clusterID
		changed = true
	}

	if changed {
		n.touch()
	}

	return changed
}

// AttachEmbedding stores the embedding vector for semantic search
func (n *Node) AttachEmbedding(vector []float32) error {
	if len(vector) == 0 {
		return pkgerrors.NewValidationError("embedding vector cannot be empty")
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	n.embedding = vec
	n.touch()

	return nil
}

// AbsorbMergeSource folds a source node's descriptive fields into this
// node: tags and categories are unioned, properties merge with the later
// source's value winning on key conflicts (callers absorb sources in
// input order), and confidence keeps the maximum across the merged set.
func (n *Node) AbsorbMergeSource(source *Node) error {
	if source == nil {
		return pkgerrors.NewValidationError("merge source cannot be nil")
	}
	if source.id.Equals(n.id) {
		return pkgerrors.MergeSourcesInvalid("node cannot be merged into itself")
	}

	for _, tag := range source.tags {
		if !containsString(n.tags, tag) {
			n.tags = append(n.tags, tag)
		}
	}
	for _, category := range source.categories {
		if !containsString(n.categories, category) {
			n.categories = append(n.categories, category)
		}
	}
	for k, v := range source.properties {
		n.properties[k] = v
	}
	if source.confidence.Value() > n.confidence.Value() {
		n.confidence = source.confidence
	}
	if n.description == "" && source.description != "" {
		n.description = source.description
	}

	n.touch()

	return nil
}

// MatchesQuery reports whether the node matches a case-insensitive
// substring query over its label, description and tags
func (n *Node) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	if n.label.MatchesQuery(query) {
		return true
	}
	lowered := strings.ToLower(query)
	if strings.Contains(strings.ToLower(n.description), lowered) {
		return true
	}
	for _, tag := range n.tags {
		if strings.Contains(strings.ToLower(tag), lowered) {
			return true
		}
	}
	return false
}

// HasTag reports whether the node carries the given tag
func (n *Node) HasTag(tag string) bool {
	return containsString(n.tags, tag)
}

// HasCategory reports whether the node carries the given category
func (n *Node) HasCategory(category string) bool {
	return containsString(n.categories, category)
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

// MarkPersisted records that the current version has been written, so
// a follow-up mutation in the same process conditions on the new value.
func (n *Node) MarkPersisted() {
	n.baseVersion = n.version
}

// touch bumps the version and update timestamp together
func (n *Node) touch() {
	n.updatedAt = time.Now()
	n.version++
}

// addEvent adds a domain event to the uncommitted list
func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}

// normalizeStringSet trims entries, drops empties and duplicates, and
// enforces the cap for the named collection. Order of first appearance
// is preserved.
func normalizeStringSet(values []string, max int, what string) ([]string, error) {
	out := []string{}
	seen := make(map[string]bool, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}

	if len(out) > max {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("too many %s: %d exceeds limit of %d", what, len(out), max))
	}

	return out, nil
}

// normalizeProperties copies the property map and enforces the key cap
func normalizeProperties(props map[string]interface{}, maxKeys int) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, pkgerrors.NewValidationError("property keys cannot be empty")
		}
		out[k] = v
	}

	if len(out) > maxKeys {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("too many property keys: %d exceeds limit of %d", len(out), maxKeys))
	}

	return out, nil
}

func equalStringSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
