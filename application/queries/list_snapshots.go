package queries

import (
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// ListSnapshotsQuery lists snapshots newest first, optionally filtered by
// status or snapshot type. List responses carry summaries only; the
// captured payload is returned by GetSnapshotQuery.
type ListSnapshotsQuery struct {
	Status       string
	SnapshotType string
	Limit        int
	Offset       int
}

// Validate validates the ListSnapshotsQuery
func (q ListSnapshotsQuery) Validate() error {
	switch entities.SnapshotStatus(q.Status) {
	case "", entities.SnapshotPending, entities.SnapshotComputing, entities.SnapshotComplete, entities.SnapshotFailed:
	default:
		return pkgerrors.NewValidationError("status must be one of: pending, computing, complete, failed").
			WithDetail("status", q.Status)
	}
	if q.SnapshotType != "" && !entities.SnapshotType(q.SnapshotType).IsValid() {
		return pkgerrors.NewValidationError("snapshotType must be one of: full, incremental").
			WithDetail("snapshotType", q.SnapshotType)
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	if q.Offset < 0 {
		return pkgerrors.NewValidationError("offset cannot be negative")
	}
	return nil
}

// ListSnapshotsResult carries one page of snapshot summaries plus the
// total match count.
type ListSnapshotsResult struct {
	Snapshots []SnapshotView `json:"snapshots"`
	Total     int            `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

// GetSnapshotQuery fetches a single snapshot including its captured
// records and diff.
type GetSnapshotQuery struct {
	SnapshotID string
}

// Validate validates the GetSnapshotQuery
func (q GetSnapshotQuery) Validate() error {
	if q.SnapshotID == "" {
		return pkgerrors.NewValidationError("snapshot id is required")
	}
	return nil
}
