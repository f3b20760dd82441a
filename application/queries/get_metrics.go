package queries

// GetMetricsQuery reads the most recent graph metrics summary. The handler
// serves from cache when it can and falls back to live counts when metrics
// have never been computed.
type GetMetricsQuery struct{}

// Validate validates the GetMetricsQuery
func (q GetMetricsQuery) Validate() error {
	return nil
}
