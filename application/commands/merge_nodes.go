package commands

import (
	"atlas-graph/domain/core/entities"
	pkgerrors "atlas-graph/pkg/errors"
)

// MergeStrategy selects how the surviving node is chosen.
type MergeStrategy string

const (
	// MergeStrategyCreateNew creates a fresh node that absorbs every source.
	MergeStrategyCreateNew MergeStrategy = "create_new"
	// MergeStrategyMergeIntoFirst keeps the first source as the survivor.
	MergeStrategyMergeIntoFirst MergeStrategy = "merge_into_first"
)

// IsValid reports whether the strategy is a known value.
func (s MergeStrategy) IsValid() bool {
	return s == MergeStrategyCreateNew || s == MergeStrategyMergeIntoFirst
}

// MergeNodesCommand consolidates several nodes that represent the same
// real-world entity into one. Field unions follow input order with later
// sources overriding on property key collisions; every edge touching a
// non-surviving source is redirected onto the survivor.
type MergeNodesCommand struct {
	SourceNodeIDs []string `json:"sourceNodeIds" validate:"required,min=2,dive,uuid"`
	Strategy      string   `json:"strategy" validate:"required,oneof=create_new merge_into_first"`
	// NewLabel names the survivor under create_new; a label is generated
	// from the first source when omitted.
	NewLabel string `json:"newLabel,omitempty" validate:"max=255"`
	// PreserveEdges keeps redirected edges that duplicate an existing
	// relationship instead of dropping them.
	PreserveEdges bool   `json:"preserveEdges"`
	Actor         string `json:"-"`
}

// Validate checks the command's own shape. Source existence, activity and
// the configured source-count ceiling are checked by the handler.
func (cmd MergeNodesCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cmd.SourceNodeIDs))
	for _, id := range cmd.SourceNodeIDs {
		if _, dup := seen[id]; dup {
			return pkgerrors.MergeSourcesInvalid("source node ids must be distinct")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	MergedNode     *entities.Node `json:"mergedNode"`
	MergedNodeIDs  []string       `json:"mergedNodeIds"`
	EdgesPreserved int            `json:"edgesPreserved"`
	EdgesRemoved   int            `json:"edgesRemoved"`
}
