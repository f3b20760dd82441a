package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxLabelLength       = 255
	maxDescriptionLength = 10000
)

// Label is the display name of a node or edge. Labels are trimmed and must
// be non-empty for nodes; edges may omit them.
type Label struct {
	value string
}

// NewLabel creates a validated, trimmed label.
func NewLabel(raw string) (Label, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Label{}, fmt.Errorf("label cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxLabelLength {
		return Label{}, fmt.Errorf("label exceeds maximum length of %d characters", maxLabelLength)
	}
	return Label{value: trimmed}, nil
}

// NewOptionalLabel creates a label that may be empty.
func NewOptionalLabel(raw string) (Label, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Label{}, nil
	}
	return NewLabel(trimmed)
}

// String returns the label text.
func (l Label) String() string {
	return l.value
}

// IsEmpty reports whether the label carries no text.
func (l Label) IsEmpty() bool {
	return l.value == ""
}

// Equals checks if two labels are equal.
func (l Label) Equals(other Label) bool {
	return l.value == other.value
}

// MatchesQuery reports whether the label contains the query,
// case-insensitively.
func (l Label) MatchesQuery(query string) bool {
	return strings.Contains(strings.ToLower(l.value), strings.ToLower(query))
}

// ValidateDescription bounds free-text descriptions.
func ValidateDescription(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) > maxDescriptionLength {
		return "", fmt.Errorf("description exceeds maximum length of %d characters", maxDescriptionLength)
	}
	return trimmed, nil
}
