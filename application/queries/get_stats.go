package queries

// GetStatsQuery reads the operational overview: entity totals, per-type
// breakdowns, and the most recent nodes and snapshots.
type GetStatsQuery struct{}

// Validate validates the GetStatsQuery
func (q GetStatsQuery) Validate() error {
	return nil
}

// StatsTotals is the headline entity counts.
type StatsTotals struct {
	TotalNodes  int `json:"totalNodes"`
	ActiveNodes int `json:"activeNodes"`
	TotalEdges  int `json:"totalEdges"`
	ActiveEdges int `json:"activeEdges"`
	Snapshots   int `json:"snapshots"`
	AuditEvents int `json:"auditEvents"`
}

// GetStatsResult is the overview payload.
type GetStatsResult struct {
	Totals          StatsTotals    `json:"totals"`
	NodesByType     map[string]int `json:"nodesByType"`
	EdgesByType     map[string]int `json:"edgesByType"`
	RecentNodes     []NodeView     `json:"recentNodes"`
	RecentSnapshots []SnapshotView `json:"recentSnapshots"`
}
