package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/queries"
	querybus "atlas-graph/application/queries/bus"
	"atlas-graph/domain/core/entities"
	"atlas-graph/pkg/auth"
	"atlas-graph/pkg/common"
	pkgerrors "atlas-graph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node CRUD and listing requests.
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler.
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateNode handles POST /nodes.
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateNodeCommand
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
	node, ok := result.(*entities.Node)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected create node result"))
		return
	}
	common.RespondJSON(w, http.StatusCreated, queries.NodeViewFrom(node))
}

// GetNode handles GET /nodes/{nodeID}.
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// UpdateNode handles PUT /nodes/{nodeID}.
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateNodeCommand
	if err := common.ParseJSONBody(r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}
	cmd.NodeID = chi.URLParam(r, "nodeID")
	cmd.Actor = actorFrom(r)

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	node, ok := result.(*entities.Node)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected update node result"))
		return
	}
	common.RespondJSON(w, http.StatusOK, queries.NodeViewFrom(node))
}

// DeleteNode handles DELETE /nodes/{nodeID}. Deletes are soft; the node
// is deactivated along with its incident edges.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	cmd := commands.DeleteNodeCommand{
		NodeID: chi.URLParam(r, "nodeID"),
		Actor:  actorFrom(r),
	}

	if _, err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNodes handles GET /nodes with filter query parameters.
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	page := common.ExtractPaginationParams(r)
	query := queries.ListNodesQuery{
		NodeTypes:  splitParam(r, "nodeType"),
		Tags:       splitParam(r, "tag"),
		Categories: splitParam(r, "category"),
		Search:     r.URL.Query().Get("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if raw := r.URL.Query().Get("minConfidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("minConfidence must be a number"))
			return
		}
		query.MinConfidence = &v
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

// GetNodeConnections handles GET /nodes/{nodeID}/connections.
func (h *NodeHandler) GetNodeConnections(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeConnectionsQuery{
		NodeID: chi.URLParam(r, "nodeID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

const maxBodyBytes = 1 << 20

// actorFrom resolves the audit actor for a request. The auth middleware
// guarantees a user is present on protected routes.
func actorFrom(r *http.Request) string {
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		return user.UserID
	}
	return "anonymous"
}

// splitParam reads a repeatable query parameter that also accepts a
// comma-separated form.
func splitParam(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
