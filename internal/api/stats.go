package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/stats"
)

// StatsHandler handles dashboard rollup endpoints. All aggregates are scoped
// to the caller's base by the stats package before counting.
type StatsHandler struct {
	DB *sql.DB
}

// Overview handles GET /api/stats/overview.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := stats.GetOverview(r.Context(), h.DB, CurrentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, overview)
}

// Bases handles GET /api/stats/bases.
func (h *StatsHandler) Bases(w http.ResponseWriter, r *http.Request) {
	stocks, err := stats.StocksByBase(r.Context(), h.DB, CurrentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if stocks == nil {
		stocks = []stats.BaseStock{}
	}
	jsonResponse(w, http.StatusOK, stocks)
}

// Operators handles GET /api/stats/operators.
func (h *StatsHandler) Operators(w http.ResponseWriter, r *http.Request) {
	operators, err := stats.ByOperator(r.Context(), h.DB, CurrentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if operators == nil {
		operators = []stats.OperatorStock{}
	}
	jsonResponse(w, http.StatusOK, operators)
}

// Recent handles GET /api/stats/recent.
func (h *StatsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > maxPageSize {
		limit = 10
	}

	events, err := stats.RecentActions(r.Context(), h.DB, CurrentUser(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}
