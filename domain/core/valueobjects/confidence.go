package valueobjects

import "fmt"

// Confidence scores how certain the originating vertical is about a node or
// edge, in [0,1]. Defaults to 1.0 when the vertical supplies none.
type Confidence struct {
	value float64
}

// DefaultConfidence is full confidence.
func DefaultConfidence() Confidence {
	return Confidence{value: 1.0}
}

// NewConfidence validates a confidence score.
func NewConfidence(value float64) (Confidence, error) {
	if value < 0 || value > 1 {
		return Confidence{}, fmt.Errorf("confidence score must be within [0,1], got %v", value)
	}
	return Confidence{value: value}, nil
}

// Value returns the raw score.
func (c Confidence) Value() float64 {
	return c.value
}

// Equals checks if two confidence scores are equal.
func (c Confidence) Equals(other Confidence) bool {
	return c.value == other.value
}

// Weight is an edge's traversal cost, used by weighted shortest-path and
// centrality. Must be strictly positive so Dijkstra expansion terminates.
type Weight struct {
	value float64
}

// DefaultWeight is the unit weight.
func DefaultWeight() Weight {
	return Weight{value: 1.0}
}

// NewWeight validates an edge weight.
func NewWeight(value float64) (Weight, error) {
	if value <= 0 {
		return Weight{}, fmt.Errorf("edge weight must be positive, got %v", value)
	}
	return Weight{value: value}, nil
}

// Value returns the raw weight.
func (w Weight) Value() float64 {
	return w.value
}

// Equals checks if two weights are equal.
func (w Weight) Equals(other Weight) bool {
	return w.value == other.value
}
