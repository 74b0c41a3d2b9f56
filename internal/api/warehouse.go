package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/adurand/parcops/internal/engine"
	"github.com/adurand/parcops/internal/metrics"
	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/store"
)

// WarehouseHandler handles batch intake and stock transfers.
type WarehouseHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

// Reception handles POST /api/warehouse/reception.
func (h *WarehouseHandler) Reception(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req engine.ReceptionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.Reception(r.Context(), h.DB, user, req)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(model.ActionReception)).Add(float64(len(result.Created)))
	slog.Info("batch received", "batch", req.BatchRef, "units", len(result.Created), "by", user.Email)
	jsonResponse(w, http.StatusCreated, result)
}

// Transfer handles POST /api/warehouse/transfer.
func (h *WarehouseHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req engine.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.Transfer(r.Context(), h.DB, user, req)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(model.ActionTransfer)).Add(float64(len(result.Transferred)))
	slog.Info("stock transferred", "destination", req.Destination,
		"ok", len(result.Transferred), "failed", len(result.Errors), "by", user.Email)
	jsonResponse(w, http.StatusOK, result)
}

// ListBatches handles GET /api/warehouse/batches.
func (h *WarehouseHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := store.ListBatches(r.Context(), h.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	jsonResponse(w, http.StatusOK, batches)
}

// GetBatch handles GET /api/warehouse/batches/{ref}.
func (h *WarehouseHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := store.GetBatch(r.Context(), h.DB, r.PathValue("ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	if batch == nil {
		jsonError(w, http.StatusNotFound, "batch not found")
		return
	}
	jsonResponse(w, http.StatusOK, batch)
}
