// Package projectshttp exposes the project endpoints guarded by the
// authorization middleware.
package projectshttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/platform/httpx"
	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// Handler serves the project HTTP surface.
type Handler struct {
	registry *tenant.Registry
	resolver *authz.AccessResolver
	teams    *authz.TeamResolver
	filter   *authz.ScopeFilter
	guard    *authz.Guard
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(registry *tenant.Registry, resolver *authz.AccessResolver, teams *authz.TeamResolver, filter *authz.ScopeFilter, guard *authz.Guard, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		resolver: resolver,
		teams:    teams,
		filter:   filter,
		guard:    guard,
		logger:   logger,
	}
}

// MountRoutes registers the project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(authz.PermProjectCreate), h.guard.ValidateProjectAssignments()).
		Post("/", h.create)
	r.Get("/", h.list)
	r.With(h.guard.RequirePermission(authz.PermDataViewProject)).
		Get("/assignments", h.listAssignments)

	r.Route("/{projectID}", func(r chi.Router) {
		r.With(h.guard.RequireProjectAccess()).Get("/", h.get)
		r.With(h.guard.RequireProjectAccess()).Put("/", h.update)
		r.With(
			h.guard.RequirePermission(authz.PermUserAssignProject),
			h.guard.RequireProjectAccess(),
			h.guard.ValidateProjectAssignments(),
		).Post("/assignments", h.assign)
		r.With(
			h.guard.RequirePermission(authz.PermTeamView),
			h.guard.RequireProjectAccess(),
		).Get("/team", h.team)
	})
}

func (h *Handler) service(handle *tenant.Handle) *projects.Service {
	return projects.NewService(projects.NewRepository(handle), h.logger)
}

func (h *Handler) handleFor(w http.ResponseWriter, r *http.Request) (*tenant.Handle, *shared.Actor, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
		return nil, nil, false
	}
	if access := authz.ProjectAccessFromContext(r.Context()); access != nil {
		return access.Handle, actor, true
	}
	handle, err := h.registry.GetConnection(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, nil, false
	}
	return handle, actor, true
}

type createRequest struct {
	Name        string                  `json:"name"`
	Status      string                  `json:"status"`
	Priority    string                  `json:"priority"`
	Assignments []authz.AssignmentEntry `json:"assignments"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	handle, actor, ok := h.handleFor(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	if req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name is required")
		return
	}

	in := projects.CreateInput{
		Name:      req.Name,
		Status:    req.Status,
		Priority:  req.Priority,
		CreatedBy: actor.ID,
	}
	for _, a := range req.Assignments {
		in.Assignments = append(in.Assignments, projects.AssignmentInput{UserID: a.UserID, Role: a.Role})
	}

	p, err := h.service(handle).Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	for _, a := range in.Assignments {
		h.filter.InvalidateActor(r.Context(), actor.TenantID, a.UserID)
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	handle, actor, ok := h.handleFor(w, r)
	if !ok {
		return
	}

	role := authz.RoleOf(actor)
	if authz.IsCompanyAdmin(role) {
		all, err := projects.NewRepository(handle).ListProjects(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, all)
		return
	}
	httpx.JSON(w, http.StatusOK, h.resolver.UserProjects(r.Context(), actor.ID, handle))
}

// listAssignments returns the tenant's assignment records narrowed to
// the actor's authorized projects, the explicit post-retrieval step
// replacing response wrapping.
func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	handle, actor, ok := h.handleFor(w, r)
	if !ok {
		return
	}
	docs, err := projects.NewRepository(handle).AssignmentDocs(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scoped := h.filter.FilterByProjectAccess(r.Context(), actor.ID, authz.RoleOf(actor), docs, handle)
	httpx.JSON(w, http.StatusOK, scoped)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	access := authz.ProjectAccessFromContext(r.Context())
	p, err := projects.NewRepository(access.Handle).ProjectByID(r.Context(), access.ProjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type updateRequest struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	access := authz.ProjectAccessFromContext(r.Context())
	actor := shared.ActorFromContext(r.Context())

	if !h.resolver.CanPerformProjectAction(r.Context(), actor.ID, authz.RoleOf(actor), authz.PermProjectEdit, access.ProjectID, access.Handle) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "project edit not allowed")
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	p, err := h.service(access.Handle).Update(r.Context(), access.ProjectID, projects.UpdateInput{
		Name:     req.Name,
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	access := authz.ProjectAccessFromContext(r.Context())
	actor := shared.ActorFromContext(r.Context())

	var payload authz.AssignmentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed body")
		return
	}
	if len(payload.Assignments) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "at least one assignment is required")
		return
	}
	inputs := make([]projects.AssignmentInput, 0, len(payload.Assignments))
	for _, a := range payload.Assignments {
		inputs = append(inputs, projects.AssignmentInput{UserID: a.UserID, Role: a.Role})
	}

	assignments, err := h.service(access.Handle).Assign(r.Context(), access.ProjectID, actor.ID, inputs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	for _, a := range assignments {
		h.filter.InvalidateActor(r.Context(), actor.TenantID, a.UserID)
	}
	httpx.JSON(w, http.StatusCreated, assignments)
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	access := authz.ProjectAccessFromContext(r.Context())
	actor := shared.ActorFromContext(r.Context())
	members := h.teams.TeamMembers(r.Context(), actor.ID, authz.RoleOf(actor), access.ProjectID, access.Handle)
	if members == nil {
		members = []projects.Member{}
	}
	httpx.JSON(w, http.StatusOK, members)
}
