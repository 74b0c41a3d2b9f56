package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
	"github.com/adurand/parcops/internal/store"
)

// SitesHandler handles installation site endpoints.
type SitesHandler struct {
	DB *sql.DB
}

type createSiteRequest struct {
	Code      string   `json:"code"`
	Name      string   `json:"name,omitempty"`
	Location  string   `json:"location,omitempty"`
	Base      string   `json:"base,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// List handles GET /api/sites. Non-admin callers only see sites attached to
// their own base.
func (h *SitesHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := policy.ScopeFor(CurrentUser(r.Context()))

	sites, err := store.ListSites(r.Context(), h.DB, scope.Base)
	if err != nil {
		writeError(w, err)
		return
	}
	if sites == nil {
		sites = []model.Site{}
	}
	jsonResponse(w, http.StatusOK, sites)
}

// Create handles POST /api/sites.
func (h *SitesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		jsonError(w, http.StatusBadRequest, "site code required")
		return
	}

	site, err := store.CreateSite(r.Context(), h.DB, &model.Site{
		Code:      req.Code,
		Name:      req.Name,
		Location:  req.Location,
		Base:      req.Base,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		jsonError(w, http.StatusConflict, "site code already in use")
		return
	}
	jsonResponse(w, http.StatusCreated, site)
}

// Get handles GET /api/sites/{id}.
func (h *SitesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	site, err := store.GetSite(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if site == nil {
		jsonError(w, http.StatusNotFound, "site not found")
		return
	}
	jsonResponse(w, http.StatusOK, site)
}

// Counts handles GET /api/sites/counts, site totals grouped by base.
func (h *SitesHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := store.CountSitesByBase(r.Context(), h.DB)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}
