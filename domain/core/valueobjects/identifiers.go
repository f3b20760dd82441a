// Package valueobjects holds the immutable value types of the graph domain.
package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// NodeID uniquely identifies a node. Value objects are immutable and have no
// identity beyond their value.
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID.
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string.
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	if !isValidUUID(id) {
		return NodeID{}, errors.New("node ID must be a valid UUID")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID.
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal.
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value.
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// EdgeID uniquely identifies an edge.
type EdgeID struct {
	value string
}

// NewEdgeID creates a new random EdgeID.
func NewEdgeID() EdgeID {
	return EdgeID{value: uuid.New().String()}
}

// NewEdgeIDFromString creates an EdgeID from an existing string.
func NewEdgeIDFromString(id string) (EdgeID, error) {
	if id == "" {
		return EdgeID{}, errors.New("edge ID cannot be empty")
	}
	if !isValidUUID(id) {
		return EdgeID{}, errors.New("edge ID must be a valid UUID")
	}
	return EdgeID{value: id}, nil
}

// String returns the string representation of the EdgeID.
func (id EdgeID) String() string {
	return id.value
}

// Equals checks if two EdgeIDs are equal.
func (id EdgeID) Equals(other EdgeID) bool {
	return id.value == other.value
}

// IsZero checks if the EdgeID is the zero value.
func (id EdgeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id EdgeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *EdgeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("EdgeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// SnapshotID uniquely identifies a snapshot.
type SnapshotID struct {
	value string
}

// NewSnapshotID creates a new random SnapshotID.
func NewSnapshotID() SnapshotID {
	return SnapshotID{value: uuid.New().String()}
}

// NewSnapshotIDFromString creates a SnapshotID from an existing string.
func NewSnapshotIDFromString(id string) (SnapshotID, error) {
	if id == "" {
		return SnapshotID{}, errors.New("snapshot ID cannot be empty")
	}
	if !isValidUUID(id) {
		return SnapshotID{}, errors.New("snapshot ID must be a valid UUID")
	}
	return SnapshotID{value: id}, nil
}

// String returns the string representation of the SnapshotID.
func (id SnapshotID) String() string {
	return id.value
}

// Equals checks if two SnapshotIDs are equal.
func (id SnapshotID) Equals(other SnapshotID) bool {
	return id.value == other.value
}

// IsZero checks if the SnapshotID is the zero value.
func (id SnapshotID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id SnapshotID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *SnapshotID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("SnapshotID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// isValidUUID validates if a string is a valid UUID.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
