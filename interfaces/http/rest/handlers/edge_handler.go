package handlers

import (
	"net/http"
	"strconv"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/queries"
	querybus "atlas-graph/application/queries/bus"
	"atlas-graph/domain/core/entities"
	"atlas-graph/pkg/common"
	pkgerrors "atlas-graph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// EdgeHandler handles edge CRUD and listing requests.
type EdgeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewEdgeHandler creates a new edge handler.
func NewEdgeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *EdgeHandler {
	return &EdgeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateEdge handles POST /edges.
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateEdgeCommand
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
	edge, ok := result.(*entities.Edge)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected create edge result"))
		return
	}
	common.RespondJSON(w, http.StatusCreated, queries.EdgeViewFrom(edge))
}

// GetEdge handles GET /edges/{edgeID}, resolving both endpoints.
func (h *EdgeHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetEdgeWithNodesQuery{
		EdgeID: chi.URLParam(r, "edgeID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// UpdateEdge handles PUT /edges/{edgeID}.
func (h *EdgeHandler) UpdateEdge(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateEdgeCommand
	if err := common.ParseJSONBody(r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	cmd.EdgeID = chi.URLParam(r, "edgeID")
	cmd.Actor = actorFrom(r)

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	edge, ok := result.(*entities.Edge)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected update edge result"))
		return
	}
	common.RespondJSON(w, http.StatusOK, queries.EdgeViewFrom(edge))
}

// DeleteEdge handles DELETE /edges/{edgeID}.
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	cmd := commands.DeleteEdgeCommand{
		EdgeID: chi.URLParam(r, "edgeID"),
		Actor:  actorFrom(r),
	}

	if _, err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEdges handles GET /edges with filter query parameters.
func (h *EdgeHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	page := common.ExtractPaginationParams(r)
	query := queries.ListEdgesQuery{
		EdgeTypes: splitParam(r, "edgeType"),
		NodeID:    r.URL.Query().Get("nodeId"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("isActive must be true or false"))
			return
		}
		query.IsActive = &v
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}
