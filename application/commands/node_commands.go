package commands

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// CreateNodeCommand creates a new node in the graph.
type CreateNodeCommand struct {
	NodeType    string                 `json:"nodeType" validate:"required"`
	Label       string                 `json:"label" validate:"required,min=1,max=255"`
	Description string                 `json:"description,omitempty" validate:"max=10000"`
	Tags        []string               `json:"tags,omitempty" validate:"max=50,dive,min=1,max=100"`
	Categories  []string               `json:"categories,omitempty" validate:"max=20,dive,min=1,max=100"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Confidence  *float64               `json:"confidenceScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	Actor       string                 `json:"-"`
}

// Validate checks the command's own shape. Type-specific property rules
// are enforced by the domain when the entity is built.
func (cmd CreateNodeCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	if _, err := valueobjects.ParseNodeType(cmd.NodeType); err != nil {
		return pkgerrors.UnknownNodeType(cmd.NodeType)
	}
	return nil
}

// UpdateNodeCommand applies a partial update to an existing node. Nil
// fields are left unchanged; an empty non-nil slice clears the set.
type UpdateNodeCommand struct {
	NodeID      string                 `json:"-" validate:"required,uuid"`
	Label       *string                `json:"label,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string                `json:"description,omitempty" validate:"omitempty,max=10000"`
	Tags        []string               `json:"tags,omitempty" validate:"omitempty,max=50,dive,min=1,max=100"`
	Categories  []string               `json:"categories,omitempty" validate:"omitempty,max=20,dive,min=1,max=100"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Confidence  *float64               `json:"confidenceScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	// ExpectedVersion rejects the update when the node has moved on from
	// the version the caller read.
	ExpectedVersion *int   `json:"expectedVersion,omitempty" validate:"omitempty,gte=1"`
	Actor           string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd UpdateNodeCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	if cmd.Label == nil && cmd.Description == nil && cmd.Tags == nil &&
		cmd.Categories == nil && cmd.Properties == nil && cmd.Confidence == nil {
		return pkgerrors.NewValidationError("update must change at least one field")
	}
	return nil
}

// DeleteNodeCommand soft-deletes a node. Incident edges stay in place but
// drop out of default traversal once the node is inactive.
type DeleteNodeCommand struct {
	NodeID string `json:"-" validate:"required,uuid"`
	Actor  string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd DeleteNodeCommand) Validate() error {
	return validateStruct(cmd)
}
