package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adurand/parcops/internal/engine"
	"github.com/adurand/parcops/internal/imaging"
	"github.com/adurand/parcops/internal/metrics"
	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
	"github.com/adurand/parcops/internal/store"
)

// ConcentratorsHandler handles concentrator endpoints.
type ConcentratorsHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

// List handles GET /api/concentrators.
func (h *ConcentratorsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	q := r.URL.Query()

	state := model.State(q.Get("state"))
	if state != "" && !model.ValidState(state) {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", state))
		return
	}

	filter := store.ConcentratorFilter{
		Search:   q.Get("search"),
		State:    state,
		Location: q.Get("location"),
		Operator: q.Get("operator"),
		Base:     policy.Filter(user),
	}

	page, limit := pagination(r)
	items, total, err := store.QueryConcentrators(r.Context(), h.DB, filter, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Concentrator{}
	}
	jsonResponse(w, http.StatusOK, paged(items, total, page, limit))
}

// Verify handles GET /api/concentrators/{serial}/verify, a lightweight
// existence probe for QR scans.
func (h *ConcentratorsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	c, err := store.GetConcentrator(r.Context(), h.DB, r.PathValue("serial"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"exists":       c != nil,
		"concentrator": c,
	})
}

// Get handles GET /api/concentrators/{serial}: the record plus its full
// audit history, newest first.
func (h *ConcentratorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	serial := r.PathValue("serial")

	c, err := store.GetConcentrator(r.Context(), h.DB, serial)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("concentrator %s not found", serial))
		return
	}
	if !policy.CanView(user, c) {
		jsonError(w, http.StatusForbidden, "concentrator belongs to another base")
		return
	}

	history, err := store.ListAuditBySerial(r.Context(), h.DB, serial, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []model.AuditEvent{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"concentrator": c,
		"history":      history,
	})
}

// Create handles POST /api/concentrators.
func (h *ConcentratorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req engine.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.Create(r.Context(), h.DB, user, req)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(model.ActionReception)).Inc()
	slog.Info("concentrator registered", "serial", req.Serial, "by", user.Email)
	jsonResponse(w, http.StatusCreated, result)
}

// Update handles PUT /api/concentrators/{serial}: an explicit partial update.
func (h *ConcentratorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	serial := r.PathValue("serial")

	var req engine.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.ManualUpdate(r.Context(), h.DB, user, serial, req)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(model.ActionManualUpdate)).Inc()
	jsonResponse(w, http.StatusOK, result)
}

// UploadPhoto handles PUT /api/concentrators/{serial}/photo.
func (h *ConcentratorsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	c, err := store.GetConcentrator(r.Context(), h.DB, serial)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("concentrator %s not found", serial))
		return
	}

	processed, err := imaging.Process(http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetConcentratorPhoto(r.Context(), h.DB, serial, processed.Data, processed.MIME); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo stored"})
}

// GetPhoto handles GET /api/concentrators/{serial}/photo.
func (h *ConcentratorsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, mime, err := store.GetConcentratorPhoto(r.Context(), h.DB, r.PathValue("serial"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(photo) == 0 {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	w.Write(photo)
}
