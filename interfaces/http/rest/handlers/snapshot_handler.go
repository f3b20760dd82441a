package handlers

import (
	"net/http"

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

// SnapshotHandler handles snapshot capture, listing and regeneration.
type SnapshotHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errors *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SnapshotHandler {
	return &SnapshotHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// CreateSnapshot handles POST /snapshots. The returned snapshot is
// pending; the capture runs on the background worker.
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateSnapshotCommand
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
	snapshot, ok := result.(*entities.Snapshot)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected create snapshot result"))
		return
	}
	common.RespondJSON(w, http.StatusCreated, queries.SnapshotViewFrom(snapshot, false))
}

// ListSnapshots handles GET /snapshots.
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	page := common.ExtractPaginationParams(r)
	query := queries.ListSnapshotsQuery{
		Status:       r.URL.Query().Get("status"),
		SnapshotType: r.URL.Query().Get("snapshotType"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// GetSnapshot handles GET /snapshots/{snapshotID}, including the captured
// payload and any stored diff.
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetSnapshotQuery{
		SnapshotID: chi.URLParam(r, "snapshotID"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// RegenerateSnapshot handles POST /snapshots/{snapshotID}/regenerate,
// recapturing the graph under the existing snapshot's identity.
func (h *SnapshotHandler) RegenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	cmd := commands.RegenerateSnapshotCommand{
		SnapshotID: chi.URLParam(r, "snapshotID"),
		Actor:      actorFrom(r),
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	snapshot, ok := result.(*entities.Snapshot)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("unexpected regenerate snapshot result"))
		return
	}
	common.RespondJSON(w, http.StatusOK, queries.SnapshotViewFrom(snapshot, false))
}
