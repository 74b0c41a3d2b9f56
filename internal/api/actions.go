package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/adurand/parcops/internal/engine"
	"github.com/adurand/parcops/internal/metrics"
	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/store"
)

// ActionsHandler handles single-unit action submission and audit listings.
type ActionsHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

// Create handles POST /api/actions.
func (h *ActionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req engine.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.Apply(r.Context(), h.DB, user, req)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(result.Event.Action)).Inc()
	jsonResponse(w, http.StatusCreated, result)
}

// List handles GET /api/actions with serial/user/action filters.
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	action := model.Action(q.Get("action"))
	if action != "" && !model.ValidAction(action) {
		jsonError(w, http.StatusBadRequest, "unknown action kind")
		return
	}

	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	filter := store.AuditFilter{
		Serial: q.Get("serial"),
		UserID: userID,
		Action: action,
	}

	h.list(w, r, filter)
}

// ListMine handles GET /api/actions/me: the caller's own audit trail.
func (h *ActionsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	h.list(w, r, store.AuditFilter{UserID: user.ID})
}

func (h *ActionsHandler) list(w http.ResponseWriter, r *http.Request, filter store.AuditFilter) {
	page, limit := pagination(r)
	events, total, err := store.QueryAuditEvents(r.Context(), h.DB, filter, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	jsonResponse(w, http.StatusOK, paged(events, total, page, limit))
}
