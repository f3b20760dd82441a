package memory

import (
	"context"
	"sort"
	"sync"

	"atlas-graph/application/ports"
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// auditRecord pairs an entry with its outbox publish state.
type auditRecord struct {
	entry     *entities.AuditEntry
	published bool
	failure   string
}

// AuditLogRepository stores audit entries in append order.
type AuditLogRepository struct {
	mu      sync.RWMutex
	records []auditRecord
	byID    map[string]int
}

var _ ports.AuditLogRepository = (*AuditLogRepository)(nil)

// NewAuditLogRepository creates an empty in-memory audit log
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{byID: make(map[string]int)}
}

func copyEntry(entry *entities.AuditEntry) *entities.AuditEntry {
	clone := *entry
	return &clone
}

// Append adds one entry to the log.
func (r *AuditLogRepository) Append(ctx context.Context, entry *entities.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(entry)
}

// AppendBatch adds several entries to the log in order.
func (r *AuditLogRepository) AppendBatch(ctx context.Context, entries []*entities.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if err := r.appendLocked(entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *AuditLogRepository) appendLocked(entry *entities.AuditEntry) error {
	if _, exists := r.byID[entry.ID]; exists {
		return pkgerrors.NewConflictError("audit entry already exists").WithDetail("entryId", entry.ID)
	}
	r.byID[entry.ID] = len(r.records)
	r.records = append(r.records, auditRecord{entry: copyEntry(entry)})
	return nil
}

// List returns one page of matching entries, newest first, plus the total
// match count.
func (r *AuditLogRepository) List(ctx context.Context, filter ports.AuditFilter) ([]*entities.AuditEntry, int, error) {
	matches := make([]*entities.AuditEntry, 0)

	r.mu.RLock()
	for _, record := range r.records {
		if auditEntryMatches(record.entry, filter) {
			matches = append(matches, copyEntry(record.entry))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].ID < matches[j].ID
	})

	total := len(matches)
	return page(matches, filter.Offset, filter.Limit), total, nil
}

// ListPendingPublish returns unpublished entries in append order.
func (r *AuditLogRepository) ListPendingPublish(ctx context.Context, limit int) ([]*entities.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]*entities.AuditEntry, 0)
	for _, record := range r.records {
		if record.published {
			continue
		}
		pending = append(pending, copyEntry(record.entry))
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

// MarkPublished flags an entry as delivered to the event bridge.
func (r *AuditLogRepository) MarkPublished(ctx context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.byID[entryID]
	if !exists {
		return pkgerrors.NewNotFoundError("audit entry").WithDetail("entryId", entryID)
	}
	r.records[idx].published = true
	r.records[idx].failure = ""
	return nil
}

// MarkPublishFailed records a delivery failure; the entry stays pending
// so the outbox retries it.
func (r *AuditLogRepository) MarkPublishFailed(ctx context.Context, entryID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, exists := r.byID[entryID]
	if !exists {
		return pkgerrors.NewNotFoundError("audit entry").WithDetail("entryId", entryID)
	}
	r.records[idx].failure = reason
	return nil
}

func auditEntryMatches(entry *entities.AuditEntry, filter ports.AuditFilter) bool {
	if len(filter.EventTypes) > 0 {
		found := false
		for _, t := range filter.EventTypes {
			if entry.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.NodeID != "" && entry.NodeID != filter.NodeID {
		return false
	}
	if filter.EdgeID != "" && entry.EdgeID != filter.EdgeID {
		return false
	}
	if filter.EntityID != "" && entry.EntityID != filter.EntityID {
		return false
	}
	if filter.Since != nil && entry.Timestamp.Before(*filter.Since) {
		return false
	}
	if filter.Until != nil && entry.Timestamp.After(*filter.Until) {
		return false
	}
	return true
}
