package valueobjects

import "fmt"

// NodeType is the fixed enumeration of entity kinds the graph tracks. Each
// vertical contributes one or more of these; the engine treats them uniformly
// apart from per-type property validation at the API boundary.
type NodeType string

const (
	NodeTypeContentPiece  NodeType = "content_piece"
	NodeTypeJournalist    NodeType = "journalist"
	NodeTypeMediaOutlet   NodeType = "media_outlet"
	NodeTypeRiskIndicator NodeType = "risk_indicator"
	NodeTypeCampaign      NodeType = "campaign"
	NodeTypeTopic         NodeType = "topic"
)

// AllNodeTypes lists every valid node type in declaration order.
func AllNodeTypes() []NodeType {
	return []NodeType{
		NodeTypeContentPiece,
		NodeTypeJournalist,
		NodeTypeMediaOutlet,
		NodeTypeRiskIndicator,
		NodeTypeCampaign,
		NodeTypeTopic,
	}
}

// ParseNodeType validates a raw string against the enumeration.
func ParseNodeType(raw string) (NodeType, error) {
	nt := NodeType(raw)
	if !nt.IsValid() {
		return "", fmt.Errorf("unknown node type %q", raw)
	}
	return nt, nil
}

// IsValid reports whether the node type is part of the enumeration.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeContentPiece, NodeTypeJournalist, NodeTypeMediaOutlet,
		NodeTypeRiskIndicator, NodeTypeCampaign, NodeTypeTopic:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (t NodeType) String() string {
	return string(t)
}

// EdgeType is the fixed enumeration of relationship kinds.
type EdgeType string

const (
	EdgeTypeAuthoredBy  EdgeType = "authored_by"
	EdgeTypePublishedBy EdgeType = "published_by"
	EdgeTypeRelatedTo   EdgeType = "related_to"
	EdgeTypeTriggers    EdgeType = "triggers"
	EdgeTypePartOf      EdgeType = "part_of"
	EdgeTypeMentions    EdgeType = "mentions"
)

// AllEdgeTypes lists every valid edge type in declaration order.
func AllEdgeTypes() []EdgeType {
	return []EdgeType{
		EdgeTypeAuthoredBy,
		EdgeTypePublishedBy,
		EdgeTypeRelatedTo,
		EdgeTypeTriggers,
		EdgeTypePartOf,
		EdgeTypeMentions,
	}
}

// ParseEdgeType validates a raw string against the enumeration.
func ParseEdgeType(raw string) (EdgeType, error) {
	et := EdgeType(raw)
	if !et.IsValid() {
		return "", fmt.Errorf("unknown edge type %q", raw)
	}
	return et, nil
}

// IsValid reports whether the edge type is part of the enumeration.
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeTypeAuthoredBy, EdgeTypePublishedBy, EdgeTypeRelatedTo,
		EdgeTypeTriggers, EdgeTypePartOf, EdgeTypeMentions:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (t EdgeType) String() string {
	return string(t)
}

// Direction selects which incident edges a traversal follows.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionBoth     Direction = "both"
)

// ParseDirection validates a raw string against the enumeration.
func ParseDirection(raw string) (Direction, error) {
	d := Direction(raw)
	switch d {
	case DirectionIncoming, DirectionOutgoing, DirectionBoth:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", raw)
	}
}

// String returns the wire representation.
func (d Direction) String() string {
	return string(d)
}
