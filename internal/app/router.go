package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/platform/httpx"
	projectshttp "github.com/crewdeck-hr/crewdeck-hr/internal/projects/http"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Registry        *tenant.Registry
	ProjectsHandler *projectshttp.Handler
}

// NewRouter constructs the chi.Router with Crewdeck defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/tenants", func(r chi.Router) {
		r.Use(requireCompanyAdmin)
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			httpx.JSON(w, http.StatusOK, params.Registry.ConnectionStatus())
		})
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			httpx.JSON(w, http.StatusOK, params.Registry.HealthCheck(req.Context()))
		})
	})

	r.Route("/projects", params.ProjectsHandler.MountRoutes)

	return r
}

// requireCompanyAdmin restricts registry introspection to admins.
func requireCompanyAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if actor == nil || !authz.IsCompanyAdmin(authz.RoleOf(actor)) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
