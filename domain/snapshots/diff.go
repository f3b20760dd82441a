package snapshots

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"

	"atlas-graph/domain/core/entities"
)

// Differ computes the field-level delta between two snapshot captures.
// Diffs compare the semantic fields only; timestamps and record versions
// are bookkeeping and would mark every touched record as modified.
type Differ struct{}

// NewDiffer creates a differ
func NewDiffer() *Differ {
	return &Differ{}
}

// Compare diffs the current capture against a base capture. Output
// ordering is deterministic: ids sort lexicographically and field
// changes sort by field name.
func (d *Differ) Compare(
	baseNodes []entities.CapturedNode,
	baseEdges []entities.CapturedEdge,
	currentNodes []entities.CapturedNode,
	currentEdges []entities.CapturedEdge,
) *entities.SnapshotDiff {
	diff := &entities.SnapshotDiff{}

	baseNodeByID := make(map[string]entities.CapturedNode, len(baseNodes))
	for _, n := range baseNodes {
		baseNodeByID[n.ID] = n
	}
	currentNodeByID := make(map[string]entities.CapturedNode, len(currentNodes))
	for _, n := range currentNodes {
		currentNodeByID[n.ID] = n
	}

	for id, current := range currentNodeByID {
		base, existed := baseNodeByID[id]
		if !existed {
			diff.AddedNodes = append(diff.AddedNodes, id)
			continue
		}
		if fields := diffNodeFields(base, current); len(fields) > 0 {
			diff.ModifiedNodes = append(diff.ModifiedNodes, entities.NodeChange{
				NodeID: id,
				Fields: fields,
			})
		}
	}
	for id := range baseNodeByID {
		if _, exists := currentNodeByID[id]; !exists {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	baseEdgeByID := make(map[string]entities.CapturedEdge, len(baseEdges))
	for _, e := range baseEdges {
		baseEdgeByID[e.ID] = e
	}
	currentEdgeByID := make(map[string]entities.CapturedEdge, len(currentEdges))
	for _, e := range currentEdges {
		currentEdgeByID[e.ID] = e
	}

	for id, current := range currentEdgeByID {
		base, existed := baseEdgeByID[id]
		if !existed {
			diff.AddedEdges = append(diff.AddedEdges, id)
			continue
		}
		if fields := diffEdgeFields(base, current); len(fields) > 0 {
			diff.ModifiedEdges = append(diff.ModifiedEdges, entities.EdgeChange{
				EdgeID: id,
				Fields: fields,
			})
		}
	}
	for id := range baseEdgeByID {
		if _, exists := currentEdgeByID[id]; !exists {
			diff.RemovedEdges = append(diff.RemovedEdges, id)
		}
	}

	sort.Strings(diff.AddedNodes)
	sort.Strings(diff.RemovedNodes)
	sort.Strings(diff.AddedEdges)
	sort.Strings(diff.RemovedEdges)
	sort.Slice(diff.ModifiedNodes, func(i, j int) bool {
		return diff.ModifiedNodes[i].NodeID < diff.ModifiedNodes[j].NodeID
	})
	sort.Slice(diff.ModifiedEdges, func(i, j int) bool {
		return diff.ModifiedEdges[i].EdgeID < diff.ModifiedEdges[j].EdgeID
	})

	return diff
}

// diffNodeFields compares the semantic fields of two node captures
func diffNodeFields(base, current entities.CapturedNode) []entities.FieldChange {
	changes := []entities.FieldChange{}

	if base.Label != current.Label {
		changes = append(changes, entities.FieldChange{Field: "label", Before: base.Label, After: current.Label})
	}
	if base.Description != current.Description {
		changes = append(changes, entities.FieldChange{Field: "description", Before: base.Description, After: current.Description})
	}
	if !stringSetsEqual(base.Tags, current.Tags) {
		changes = append(changes, entities.FieldChange{Field: "tags", Before: base.Tags, After: current.Tags})
	}
	if !stringSetsEqual(base.Categories, current.Categories) {
		changes = append(changes, entities.FieldChange{Field: "categories", Before: base.Categories, After: current.Categories})
	}
	if !valuesEqual(base.Properties, current.Properties) {
		changes = append(changes, entities.FieldChange{Field: "properties", Before: base.Properties, After: current.Properties})
	}
	if base.ConfidenceScore != current.ConfidenceScore {
		changes = append(changes, entities.FieldChange{Field: "confidenceScore", Before: base.ConfidenceScore, After: current.ConfidenceScore})
	}
	if !floatPointersEqual(base.CentralityScore, current.CentralityScore) {
		changes = append(changes, entities.FieldChange{Field: "centralityScore", Before: base.CentralityScore, After: current.CentralityScore})
	}
	if base.ClusterID != current.ClusterID {
		changes = append(changes, entities.FieldChange{Field: "clusterId", Before: base.ClusterID, After: current.ClusterID})
	}
	if base.HasEmbedding != current.HasEmbedding {
		changes = append(changes, entities.FieldChange{Field: "hasEmbedding", Before: base.HasEmbedding, After: current.HasEmbedding})
	}

	sortFieldChanges(changes)
	return changes
}

// diffEdgeFields compares the semantic fields of two edge captures.
// Endpoint changes surface merge redirects.
func diffEdgeFields(base, current entities.CapturedEdge) []entities.FieldChange {
	changes := []entities.FieldChange{}

	if base.SourceNodeID != current.SourceNodeID {
		changes = append(changes, entities.FieldChange{Field: "sourceNodeId", Before: base.SourceNodeID, After: current.SourceNodeID})
	}
	if base.TargetNodeID != current.TargetNodeID {
		changes = append(changes, entities.FieldChange{Field: "targetNodeId", Before: base.TargetNodeID, After: current.TargetNodeID})
	}
	if base.EdgeType != current.EdgeType {
		changes = append(changes, entities.FieldChange{Field: "edgeType", Before: base.EdgeType, After: current.EdgeType})
	}
	if base.Label != current.Label {
		changes = append(changes, entities.FieldChange{Field: "label", Before: base.Label, After: current.Label})
	}
	if base.Description != current.Description {
		changes = append(changes, entities.FieldChange{Field: "description", Before: base.Description, After: current.Description})
	}
	if base.Weight != current.Weight {
		changes = append(changes, entities.FieldChange{Field: "weight", Before: base.Weight, After: current.Weight})
	}
	if base.IsBidirectional != current.IsBidirectional {
		changes = append(changes, entities.FieldChange{Field: "isBidirectional", Before: base.IsBidirectional, After: current.IsBidirectional})
	}
	if !valuesEqual(base.Properties, current.Properties) {
		changes = append(changes, entities.FieldChange{Field: "properties", Before: base.Properties, After: current.Properties})
	}
	if base.ConfidenceScore != current.ConfidenceScore {
		changes = append(changes, entities.FieldChange{Field: "confidenceScore", Before: base.ConfidenceScore, After: current.ConfidenceScore})
	}

	sortFieldChanges(changes)
	return changes
}

func sortFieldChanges(changes []entities.FieldChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})
}

// Checksum computes a content hash over a capture. Records are sorted
// by id before hashing so the same graph state always hashes the same.
func Checksum(nodes []entities.CapturedNode, edges []entities.CapturedEdge) (string, error) {
	sortedNodes := make([]entities.CapturedNode, len(nodes))
	copy(sortedNodes, nodes)
	sort.Slice(sortedNodes, func(i, j int) bool { return sortedNodes[i].ID < sortedNodes[j].ID })

	sortedEdges := make([]entities.CapturedEdge, len(edges))
	copy(sortedEdges, edges)
	sort.Slice(sortedEdges, func(i, j int) bool { return sortedEdges[i].ID < sortedEdges[j].ID })

	payload := struct {
		Nodes []entities.CapturedNode `json:"nodes"`
		Edges []entities.CapturedEdge `json:"edges"`
	}{
		Nodes: sortedNodes,
		Edges: sortedEdges,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// stringSetsEqual compares two string slices as sets
func stringSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after JSON normalization, so a map
// freshly built from an entity compares equal to the same map round-
// tripped through storage (where integers come back as float64).
func valuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	na, err := jsonNormalize(a)
	if err != nil {
		return false
	}
	nb, err := jsonNormalize(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func jsonNormalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func floatPointersEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
