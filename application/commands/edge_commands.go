package commands

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// CreateEdgeCommand creates a new edge between two active nodes.
type CreateEdgeCommand struct {
	SourceNodeID    string                 `json:"sourceNodeId" validate:"required,uuid"`
	TargetNodeID    string                 `json:"targetNodeId" validate:"required,uuid"`
	EdgeType        string                 `json:"edgeType" validate:"required"`
	Label           string                 `json:"label,omitempty" validate:"max=255"`
	Description     string                 `json:"description,omitempty" validate:"max=10000"`
	Weight          *float64               `json:"weight,omitempty" validate:"omitempty,gt=0"`
	IsBidirectional bool                   `json:"isBidirectional,omitempty"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
	Confidence      *float64               `json:"confidenceScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	Actor           string                 `json:"-"`
}

// Validate checks the command's own shape. Endpoint existence and
// activity are checked by the handler against the registry.
func (cmd CreateEdgeCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	if _, err := valueobjects.ParseEdgeType(cmd.EdgeType); err != nil {
		return pkgerrors.UnknownEdgeType(cmd.EdgeType)
	}
	return nil
}

// UpdateEdgeCommand applies a partial update to an edge. Endpoints and
// type are immutable; changing them is a delete plus recreate.
type UpdateEdgeCommand struct {
	EdgeID          string                 `json:"-" validate:"required,uuid"`
	Label           *string                `json:"label,omitempty" validate:"omitempty,max=255"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=10000"`
	Weight          *float64               `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
	Confidence      *float64               `json:"confidenceScore,omitempty" validate:"omitempty,gte=0,lte=1"`
	ExpectedVersion *int                   `json:"expectedVersion,omitempty" validate:"omitempty,gte=1"`
	Actor           string                 `json:"-"`
}

// Validate checks the command's own shape.
func (cmd UpdateEdgeCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	if cmd.Label == nil && cmd.Description == nil && cmd.Weight == nil &&
		cmd.Properties == nil && cmd.Confidence == nil {
		return pkgerrors.NewValidationError("update must change at least one field")
	}
	return nil
}

// DeleteEdgeCommand soft-deletes an edge.
type DeleteEdgeCommand struct {
	EdgeID string `json:"-" validate:"required,uuid"`
	Actor  string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd DeleteEdgeCommand) Validate() error {
	return validateStruct(cmd)
}
