package errors

// Machine-readable codes for the graph domain. Clients key retry and
// display behavior off these rather than parsing messages.
const (
	CodeNodeNotFound     = "NODE_NOT_FOUND"
	CodeEdgeNotFound     = "EDGE_NOT_FOUND"
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"
	CodeNodeInactive     = "NODE_INACTIVE"
	CodeUnknownNodeType  = "UNKNOWN_NODE_TYPE"
	CodeUnknownEdgeType  = "UNKNOWN_EDGE_TYPE"
	CodeLabelRequired    = "LABEL_REQUIRED"
	CodeEndpointInvalid  = "ENDPOINT_INVALID"
	CodeVersionMismatch  = "VERSION_MISMATCH"
	CodeMergeSources     = "MERGE_SOURCES_INVALID"
	CodeSnapshotBusy     = "SNAPSHOT_IN_PROGRESS"
	CodeLockNotAcquired  = "LOCK_NOT_ACQUIRED"
	CodeProviderDown     = "PROVIDER_UNAVAILABLE"
)

// NodeNotFound reports an unknown node id.
func NodeNotFound(id string) *AppError {
	return NewNotFoundError("node").WithCode(CodeNodeNotFound).WithDetail("nodeId", id)
}

// EdgeNotFound reports an unknown edge id.
func EdgeNotFound(id string) *AppError {
	return NewNotFoundError("edge").WithCode(CodeEdgeNotFound).WithDetail("edgeId", id)
}

// SnapshotNotFound reports an unknown snapshot id.
func SnapshotNotFound(id string) *AppError {
	return NewNotFoundError("snapshot").WithCode(CodeSnapshotNotFound).WithDetail("snapshotId", id)
}

// NodeInactive reports an operation that requires an active node.
func NodeInactive(id string) *AppError {
	return NewValidationError("node is inactive").
		WithCode(CodeNodeInactive).
		WithDetail("nodeId", id)
}

// UnknownNodeType reports a nodeType outside the fixed enumeration.
func UnknownNodeType(nodeType string) *AppError {
	return NewValidationError("unknown node type").
		WithCode(CodeUnknownNodeType).
		WithDetail("nodeType", nodeType)
}

// UnknownEdgeType reports an edgeType outside the fixed enumeration.
func UnknownEdgeType(edgeType string) *AppError {
	return NewValidationError("unknown edge type").
		WithCode(CodeUnknownEdgeType).
		WithDetail("edgeType", edgeType)
}

// EndpointInvalid reports an edge endpoint that is missing or inactive.
func EndpointInvalid(nodeID, reason string) *AppError {
	return NewValidationError("edge endpoint must reference an active node").
		WithCode(CodeEndpointInvalid).
		WithDetails(map[string]interface{}{"nodeId": nodeID, "reason": reason})
}

// VersionMismatch reports a failed conditional write against a stale version.
func VersionMismatch(resource, id string, expected int) *AppError {
	return NewConflictError("resource was modified concurrently").
		WithCode(CodeVersionMismatch).
		WithDetails(map[string]interface{}{
			"resource":        resource,
			"id":              id,
			"expectedVersion": expected,
		})
}

// MergeSourcesInvalid reports a merge request with bad sources: fewer than
// two ids, duplicates, or ids resolving to missing/inactive nodes.
func MergeSourcesInvalid(reason string) *AppError {
	return NewValidationError(reason).WithCode(CodeMergeSources)
}

// SnapshotBusy reports a capture requested while one is already running.
func SnapshotBusy(id string) *AppError {
	return NewConflictError("snapshot capture already in progress").
		WithCode(CodeSnapshotBusy).
		WithDetail("snapshotId", id).
		WithRetryable(false)
}

// LockNotAcquired reports that the merge advisory lock was held elsewhere.
func LockNotAcquired(resource string) *AppError {
	return NewConflictError("could not acquire lock").
		WithCode(CodeLockNotAcquired).
		WithDetail("resource", resource)
}

// ProviderUnavailable reports a degraded-path collaborator failure.
func ProviderUnavailable(provider string, cause error) *AppError {
	return NewUnavailableError(provider).
		WithCode(CodeProviderDown).
		WithCause(cause)
}
