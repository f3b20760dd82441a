package commands

import (
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// CreateSnapshotCommand registers a new snapshot and queues its capture.
// The returned snapshot starts in pending; callers poll for completion.
type CreateSnapshotCommand struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description,omitempty" validate:"max=10000"`
	SnapshotType string `json:"snapshotType" validate:"required,oneof=full incremental"`
	// ComputeDiff also diffs the capture against the most recent complete
	// snapshot when one exists.
	ComputeDiff bool   `json:"computeDiff"`
	Actor       string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd CreateSnapshotCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	if !entities.SnapshotType(cmd.SnapshotType).IsValid() {
		return pkgerrors.NewValidationError("snapshotType must be full or incremental")
	}
	return nil
}

// RegenerateSnapshotCommand re-runs capture for an existing snapshot,
// resetting it to pending. Rejected while the snapshot is computing.
type RegenerateSnapshotCommand struct {
	SnapshotID string `json:"-" validate:"required,uuid"`
	Actor      string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd RegenerateSnapshotCommand) Validate() error {
	return validateStruct(cmd)
}
