package commands

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// ComputeMetricsCommand recomputes centrality scores and cluster
// assignments over the active subgraph, optionally restricted to a set
// of node types. Results are written back onto the affected nodes.
type ComputeMetricsCommand struct {
	NodeTypes         []string `json:"nodeTypes,omitempty"`
	ComputeCentrality bool     `json:"computeCentrality"`
	ComputeClusters   bool     `json:"computeClusters"`
	Actor             string   `json:"-"`
}

// Validate checks the command's own shape.
func (cmd ComputeMetricsCommand) Validate() error {
	if err := validateStruct(cmd); err != nil {
		return err
	}
	for _, raw := range cmd.NodeTypes {
		if _, err := valueobjects.ParseNodeType(raw); err != nil {
			return pkgerrors.UnknownNodeType(raw)
		}
	}
	return nil
}
