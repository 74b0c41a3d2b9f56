package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/adurand/parcops/internal/engine"
	"github.com/adurand/parcops/internal/metrics"
)

// LabHandler handles lab test endpoints.
type LabHandler struct {
	DB      *sql.DB
	Metrics *metrics.Metrics
}

type labTestRequest struct {
	Serial  string `json:"serial"`
	Result  string `json:"result"`
	Comment string `json:"comment,omitempty"`
}

// Test handles POST /api/lab/test.
func (h *LabHandler) Test(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())

	var req labTestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := engine.LabTest(r.Context(), h.DB, user, req.Serial, req.Result, req.Comment)
	if err != nil {
		h.Metrics.ActionFailures.WithLabelValues(errReason(err)).Inc()
		writeError(w, err)
		return
	}

	h.Metrics.Actions.WithLabelValues(string(result.Event.Action)).Inc()
	slog.Info("lab test recorded", "serial", req.Serial, "result", req.Result, "by", user.Email)
	jsonResponse(w, http.StatusOK, result)
}
