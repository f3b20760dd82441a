package handlers

import (
	"io"
	"net/http"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/queries"
	querybus "atlas-graph/application/queries/bus"
	"atlas-graph/pkg/common"
	pkgerrors "atlas-graph/pkg/errors"

	"go.uber.org/zap"
)

// GraphHandler handles whole-graph operations: traversal, path finding,
// filtered queries, semantic search, merges, stats and metrics runs.
type GraphHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// Traverse handles POST /graph/traverse.
func (h *GraphHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	var query queries.TraverseQuery
	if err := common.ParseJSONBody(r, &query, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// FindPath handles POST /graph/path.
func (h *GraphHandler) FindPath(w http.ResponseWriter, r *http.Request) {
	var query queries.FindPathQuery
	if err := common.ParseJSONBody(r, &query, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ExplainPath handles POST /graph/path/explain. The response degrades to
// the bare path when the reasoning provider is unavailable.
func (h *GraphHandler) ExplainPath(w http.ResponseWriter, r *http.Request) {
	var query queries.ExplainPathQuery
	if err := common.ParseJSONBody(r, &query, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Query handles POST /graph/query.
func (h *GraphHandler) Query(w http.ResponseWriter, r *http.Request) {
	var query queries.QueryGraphQuery
	if err := common.ParseJSONBody(r, &query, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Search handles POST /graph/search.
func (h *GraphHandler) Search(w http.ResponseWriter, r *http.Request) {
	var query queries.SemanticSearchQuery
	if err := common.ParseJSONBody(r, &query, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// MergeNodes handles POST /graph/merge.
func (h *GraphHandler) MergeNodes(w http.ResponseWriter, r *http.Request) {
	var cmd commands.MergeNodesCommand
	if err := common.ParseJSONBody(r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	cmd.Actor = actorFrom(r)

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	merged, ok := result.(*commands.MergeResult)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected merge result"))
		return
	}
	common.RespondJSON(w, http.StatusOK, mergeResponse{
		MergedNode:     queries.NodeViewFrom(merged.MergedNode),
		MergedNodeIDs:  merged.MergedNodeIDs,
		EdgesPreserved: merged.EdgesPreserved,
		EdgesRemoved:   merged.EdgesRemoved,
	})
}

// mergeResponse is the wire shape of a merge outcome.
type mergeResponse struct {
	MergedNode     queries.NodeView `json:"mergedNode"`
	MergedNodeIDs  []string         `json:"mergedNodeIds"`
	EdgesPreserved int              `json:"edgesPreserved"`
	EdgesRemoved   int              `json:"edgesRemoved"`
}

// Stats handles GET /graph/stats.
func (h *GraphHandler) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetStatsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetMetrics handles GET /graph/metrics, returning the latest stored run.
func (h *GraphHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetMetricsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ComputeMetrics handles POST /graph/metrics, running a fresh computation.
// An empty body requests a run with default options.
func (h *GraphHandler) ComputeMetrics(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ComputeMetricsCommand
	if err := common.ParseJSONBody(r, &cmd, maxBodyBytes); err != nil && err != io.EOF {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	cmd.Actor = actorFrom(r)

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
