package handlers

import (
	"io"
	"net/http"
	"time"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/queries"
	querybus "atlas-graph/application/queries/bus"
	"atlas-graph/pkg/common"
	pkgerrors "atlas-graph/pkg/errors"

	"go.uber.org/zap"
)

// AuditHandler serves the audit log and admin maintenance operations.
type AuditHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *AuditHandler {
	return &AuditHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// ListAuditLog handles GET /audit with filter query parameters.
func (h *AuditHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	page := common.ExtractPaginationParams(r)
	query := queries.GetAuditLogQuery{
		EventTypes: splitParam(r, "eventType"),
		NodeID:     r.URL.Query().Get("nodeId"),
		EdgeID:     r.URL.Query().Get("edgeId"),
		EntityID:   r.URL.Query().Get("entityId"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("since must be RFC 3339"))
			return
		}
		query.Since = &t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("until must be RFC 3339"))
			return
		}
		query.Until = &t
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// BackfillEmbeddings handles POST /admin/embeddings/backfill. An empty
// body runs with default options.
func (h *AuditHandler) BackfillEmbeddings(w http.ResponseWriter, r *http.Request) {
	var cmd commands.BackfillEmbeddingsCommand
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
