package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crewdeck-hr/crewdeck-hr/internal/platform/httpx"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

type projectAccessKey struct{}

// ProjectAccess carries the resolved tenant handle and project id
// downstream of the guards.
type ProjectAccess struct {
	Handle    *tenant.Handle
	ProjectID string
}

// ContextWithProjectAccess stores the resolved access in context.
func ContextWithProjectAccess(ctx context.Context, access *ProjectAccess) context.Context {
	return context.WithValue(ctx, projectAccessKey{}, access)
}

// ProjectAccessFromContext extracts the resolved access from context.
func ProjectAccessFromContext(ctx context.Context) *ProjectAccess {
	access, _ := ctx.Value(projectAccessKey{}).(*ProjectAccess)
	return access
}

// Guard composes the registry and resolvers into request-time checks.
type Guard struct {
	Registry *tenant.Registry
	Resolver *AccessResolver
	Stores   StoreFactory
	Logger   *slog.Logger

	validate *validator.Validate
}

// NewGuard constructs the middleware set.
func NewGuard(registry *tenant.Registry, resolver *AccessResolver, stores StoreFactory, logger *slog.Logger) *Guard {
	return &Guard{
		Registry: registry,
		Resolver: resolver,
		Stores:   stores,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RequirePermission rejects requests whose role lacks the token.
func (g *Guard) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil || !HasPermission(RoleOf(actor), perm) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden",
					fmt.Sprintf("missing permission %s", perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireProjectAccess rejects requests without a project id (400) or
// without access to it (403); on success it attaches the tenant
// handle and project id to the request context.
func (g *Guard) RequireProjectAccess() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
				return
			}

			projectID := chi.URLParam(r, "projectID")
			if projectID == "" {
				projectID = r.URL.Query().Get("projectId")
			}
			if projectID == "" {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "project id is required")
				return
			}

			handle, err := g.Registry.GetConnection(r.Context(), actor.TenantID)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}

			if !g.Resolver.CanAccessProject(r.Context(), actor.ID, projectID, RoleOf(actor), handle) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "not authorized for this project")
				return
			}

			ctx := ContextWithProjectAccess(r.Context(), &ProjectAccess{
				Handle:    handle,
				ProjectID: projectID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTeamManagementAccess allows only company_admin or manager
// actors who also hold access to the project.
func (g *Guard) RequireTeamManagementAccess() func(http.Handler) http.Handler {
	projectAccess := g.RequireProjectAccess()
	return func(next http.Handler) http.Handler {
		return projectAccess(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			role := RoleOf(actor)
			if !IsCompanyAdmin(role) && role != RoleManager {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "team management requires a manager or admin role")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// AssignmentPayload is the bulk-assignment request shape.
type AssignmentPayload struct {
	Assignments []AssignmentEntry `json:"assignments" validate:"omitempty,dive"`
}

// AssignmentEntry references one user to assign with an expected role.
type AssignmentEntry struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=manager hr employee"`
}

// ValidateProjectAssignments verifies every referenced user actually
// holds the expected role before the assignment proceeds, answering
// 400 with one reason per offending entry otherwise. The request body
// is restored for the downstream handler.
func (g *Guard) ValidateProjectAssignments() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "no authenticated actor")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var payload AssignmentPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed assignment payload")
				return
			}
			if err := g.validate.Struct(payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
			// Nothing referenced, nothing to verify.
			if len(payload.Assignments) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			handle := handleFromRequest(r)
			if handle == nil {
				h, err := g.Registry.GetConnection(r.Context(), actor.TenantID)
				if err != nil {
					httpx.RespondError(w, err)
					return
				}
				handle = h
			}

			store := g.Stores(handle)
			var reasons []string
			for _, entry := range payload.Assignments {
				role, err := store.UserRole(r.Context(), entry.UserID)
				if err != nil {
					reasons = append(reasons, fmt.Sprintf("user %s: not found", entry.UserID))
					continue
				}
				if role != entry.Role {
					reasons = append(reasons, fmt.Sprintf("user %s: has role %s, expected %s", entry.UserID, role, entry.Role))
				}
			}
			if len(reasons) > 0 {
				g.Logger.Warn("assignment validation rejected",
					slog.String("tenant", actor.TenantID),
					slog.Int("mismatches", len(reasons)))
				httpx.ProblemWithReasons(w, http.StatusBadRequest, "Validation Failed", reasons)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleFromRequest(r *http.Request) *tenant.Handle {
	if access := ProjectAccessFromContext(r.Context()); access != nil {
		return access.Handle
	}
	return nil
}
