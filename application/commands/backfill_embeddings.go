package commands

import (
	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// BackfillEmbeddingsCommand generates embeddings for active nodes that do
// not have one yet, so older records become visible to semantic search.
// Runs as a maintenance job, not on the request path.
type BackfillEmbeddingsCommand struct {
	NodeTypes []string `json:"nodeTypes,omitempty"`
	BatchSize int      `json:"batchSize,omitempty" validate:"omitempty,gte=1,lte=100"`
	// DryRun reports how many nodes would be embedded without writing.
	DryRun bool   `json:"dryRun"`
	Actor  string `json:"-"`
}

// Validate checks the command's own shape.
func (cmd BackfillEmbeddingsCommand) Validate() error {
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

// BackfillEmbeddingsResult reports what the backfill touched.
type BackfillEmbeddingsResult struct {
	NodesScanned  int `json:"nodesScanned"`
	NodesEmbedded int `json:"nodesEmbedded"`
	NodesSkipped  int `json:"nodesSkipped"`
	NodesFailed   int `json:"nodesFailed"`
}
