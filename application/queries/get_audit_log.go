package queries

import (
	"time"

	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// GetAuditLogQuery lists audit entries newest first. Filters compose; an
// entry must match every supplied filter to be returned.
type GetAuditLogQuery struct {
	EventTypes []string
	NodeID     string
	EdgeID     string
	EntityID   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// Validate validates the GetAuditLogQuery
func (q GetAuditLogQuery) Validate() error {
	if q.Since != nil && q.Until != nil && q.Until.Before(*q.Since) {
		return pkgerrors.NewValidationError("until cannot be before since")
	}
	if q.Limit < 0 {
		return pkgerrors.NewValidationError("limit cannot be negative")
	}
	if q.Offset < 0 {
		return pkgerrors.NewValidationError("offset cannot be negative")
	}
	return nil
}

// GetAuditLogResult carries one page of audit entries plus the total
// match count.
type GetAuditLogResult struct {
	Logs   []*entities.AuditEntry `json:"logs"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}
