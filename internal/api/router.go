package api

import (
	"database/sql"
	"net/http"

	"github.com/adurand/parcops/internal/metrics"
	"github.com/adurand/parcops/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	concentratorsHandler := &ConcentratorsHandler{DB: db, Metrics: m}
	actionsHandler := &ActionsHandler{DB: db, Metrics: m}
	warehouseHandler := &WarehouseHandler{DB: db, Metrics: m}
	labHandler := &LabHandler{DB: db, Metrics: m}
	sitesHandler := &SitesHandler{DB: db}
	statsHandler := &StatsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRoles(model.RoleAdmin)
	requireManager := RequireRoles(model.RoleAdmin, model.RoleManager)
	requireWarehouse := RequireRoles(model.RoleAdmin, model.RoleWarehouse)
	requireLab := RequireRoles(model.RoleAdmin, model.RoleLab)

	// Public endpoints.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", healthHandler)
	mux.Handle("GET /metrics", m.Handler())

	// Session management.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// User management (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Deactivate))))

	// Concentrators.
	mux.Handle("GET /api/concentrators", authMW(http.HandlerFunc(concentratorsHandler.List)))
	mux.Handle("POST /api/concentrators", authMW(requireManager(http.HandlerFunc(concentratorsHandler.Create))))
	mux.Handle("GET /api/concentrators/{serial}", authMW(http.HandlerFunc(concentratorsHandler.Get)))
	mux.Handle("GET /api/concentrators/{serial}/verify", authMW(http.HandlerFunc(concentratorsHandler.Verify)))
	mux.Handle("PUT /api/concentrators/{serial}", authMW(requireManager(http.HandlerFunc(concentratorsHandler.Update))))
	mux.Handle("PUT /api/concentrators/{serial}/photo", authMW(http.HandlerFunc(concentratorsHandler.UploadPhoto)))
	mux.Handle("GET /api/concentrators/{serial}/photo", authMW(http.HandlerFunc(concentratorsHandler.GetPhoto)))

	// Field actions and history.
	mux.Handle("POST /api/actions", authMW(http.HandlerFunc(actionsHandler.Create)))
	mux.Handle("GET /api/actions", authMW(http.HandlerFunc(actionsHandler.List)))
	mux.Handle("GET /api/actions/me", authMW(http.HandlerFunc(actionsHandler.ListMine)))

	// Warehouse flows.
	mux.Handle("POST /api/warehouse/reception", authMW(requireWarehouse(http.HandlerFunc(warehouseHandler.Reception))))
	mux.Handle("POST /api/warehouse/transfer", authMW(requireWarehouse(http.HandlerFunc(warehouseHandler.Transfer))))
	mux.Handle("GET /api/warehouse/batches", authMW(http.HandlerFunc(warehouseHandler.ListBatches)))
	mux.Handle("GET /api/warehouse/batches/{ref}", authMW(http.HandlerFunc(warehouseHandler.GetBatch)))

	// Lab.
	mux.Handle("POST /api/lab/test", authMW(requireLab(http.HandlerFunc(labHandler.Test))))

	// Sites.
	mux.Handle("GET /api/sites", authMW(http.HandlerFunc(sitesHandler.List)))
	mux.Handle("POST /api/sites", authMW(requireManager(http.HandlerFunc(sitesHandler.Create))))
	mux.Handle("GET /api/sites/counts", authMW(http.HandlerFunc(sitesHandler.Counts)))
	mux.Handle("GET /api/sites/{id}", authMW(http.HandlerFunc(sitesHandler.Get)))

	// Dashboard rollups.
	mux.Handle("GET /api/stats/overview", authMW(http.HandlerFunc(statsHandler.Overview)))
	mux.Handle("GET /api/stats/bases", authMW(http.HandlerFunc(statsHandler.Bases)))
	mux.Handle("GET /api/stats/operators", authMW(http.HandlerFunc(statsHandler.Operators)))
	mux.Handle("GET /api/stats/recent", authMW(http.HandlerFunc(statsHandler.Recent)))

	return MetricsMiddleware(m)(LoggingMiddleware(mux))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
