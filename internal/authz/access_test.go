package authz_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// nopTenantStore satisfies tenant.Store so tests can mint handles
// without a database.
type nopTenantStore struct{}

func (nopTenantStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (nopTenantStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("nopTenantStore: query not supported")
}

func (nopTenantStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (nopTenantStore) Ping(ctx context.Context) error { return nil }
func (nopTenantStore) Close()                         {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry() *tenant.Registry {
	return tenant.NewRegistry(
		"postgres://u:p@localhost:5432/base",
		testLogger(),
		tenant.WithDialer(func(ctx context.Context, dsn string) (tenant.Store, error) {
			return nopTenantStore{}, nil
		}),
	)
}

func testHandle(t *testing.T) *tenant.Handle {
	t.Helper()
	h, err := testRegistry().GetConnection(context.Background(), "t1")
	require.NoError(t, err)
	return h
}

// memStore is an in-memory authz.Store.
type memStore struct {
	assignments []projects.Assignment
	projects    map[string]projects.Project
	teams       []projects.TeamAssignment
	roles       map[string]string
	failWith    error
}

func (m *memStore) ActiveAssignmentsForUser(ctx context.Context, userID string) ([]projects.Assignment, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []projects.Assignment
	for _, a := range m.assignments {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ActiveAssignment(ctx context.Context, userID, projectID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, a := range m.assignments {
		if a.UserID == userID && a.ProjectID == projectID && a.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ProjectsByIDs(ctx context.Context, ids []string) ([]projects.Project, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []projects.Project
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ProjectByID(ctx context.Context, id string) (projects.Project, error) {
	if m.failWith != nil {
		return projects.Project{}, m.failWith
	}
	p, ok := m.projects[id]
	if !ok {
		return projects.Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ProjectsForUser(ctx context.Context, userID string) ([]projects.Project, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []projects.Project
	for _, p := range m.projects {
		if slices.Contains(p.AssignedManagers, userID) ||
			slices.Contains(p.AssignedHRs, userID) ||
			p.CreatedBy == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ActiveTeamAssignments(ctx context.Context, projectID string) ([]projects.TeamAssignment, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []projects.TeamAssignment
	for _, ta := range m.teams {
		if ta.ProjectID == projectID && ta.IsActive {
			out = append(out, ta)
		}
	}
	return out, nil
}

func (m *memStore) UserRole(ctx context.Context, userID string) (string, error) {
	role, ok := m.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func resolverOver(store *memStore) *authz.AccessResolver {
	return authz.NewAccessResolver(func(h *tenant.Handle) authz.Store { return store }, testLogger())
}

func TestCanAccessProjectAdminBypass(t *testing.T) {
	h := testHandle(t)
	resolver := resolverOver(&memStore{projects: map[string]projects.Project{}})

	require.True(t, resolver.CanAccessProject(context.Background(), "anyone", "missing", authz.RoleCompanyAdmin, h))
	require.True(t, resolver.CanAccessProject(context.Background(), "anyone", "missing", authz.RoleAdmin, h))
}

func TestCanAccessProjectAssignmentTier(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "u1", Role: "manager", IsActive: true},
		},
		projects: map[string]projects.Project{
			"p1": {ID: "p1"}, // no embedded arrays at all
		},
	}
	resolver := resolverOver(store)

	require.True(t, resolver.CanAccessProject(context.Background(), "u1", "p1", authz.RoleManager, h))
	require.False(t, resolver.CanAccessProject(context.Background(), "u2", "p1", authz.RoleManager, h))
}

func TestCanAccessProjectInactiveAssignmentFallsThrough(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "u1", Role: "manager", IsActive: false},
		},
		projects: map[string]projects.Project{
			"p1": {ID: "p1"},
		},
	}
	resolver := resolverOver(store)

	require.False(t, resolver.CanAccessProject(context.Background(), "u1", "p1", authz.RoleManager, h))
}

func TestCanAccessProjectEmbeddedFallback(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		projects: map[string]projects.Project{
			"p1": {ID: "p1", AssignedManagers: []string{"u1"}},
			"p2": {ID: "p2", AssignedHRs: []string{"u2"}},
			"p3": {ID: "p3", CreatedBy: "u3"},
		},
	}
	resolver := resolverOver(store)

	require.True(t, resolver.CanAccessProject(context.Background(), "u1", "p1", authz.RoleManager, h))
	require.True(t, resolver.CanAccessProject(context.Background(), "u2", "p2", authz.RoleHR, h))
	require.True(t, resolver.CanAccessProject(context.Background(), "u3", "p3", authz.RoleManager, h))
	require.False(t, resolver.CanAccessProject(context.Background(), "u1", "p2", authz.RoleManager, h))
}

func TestCanAccessProjectAbsentProject(t *testing.T) {
	h := testHandle(t)
	resolver := resolverOver(&memStore{projects: map[string]projects.Project{}})

	require.False(t, resolver.CanAccessProject(context.Background(), "u1", "nope", authz.RoleManager, h))
}

func TestUserProjectsAssignmentTierWins(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "u1", Role: "manager", IsActive: true},
		},
		projects: map[string]projects.Project{
			"p1": {ID: "p1", Name: "Alpha"},
			// u1 also appears embedded on p2, but tier 1 already answered.
			"p2": {ID: "p2", AssignedManagers: []string{"u1"}},
		},
	}
	resolver := resolverOver(store)

	found := resolver.UserProjects(context.Background(), "u1", h)
	require.Len(t, found, 1)
	require.Equal(t, "p1", found[0].ID)
}

func TestUserProjectsEmbeddedFallback(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		projects: map[string]projects.Project{
			"p2": {ID: "p2", AssignedManagers: []string{"u1"}},
		},
	}
	resolver := resolverOver(store)

	found := resolver.UserProjects(context.Background(), "u1", h)
	require.Len(t, found, 1)
	require.Equal(t, "p2", found[0].ID)
}

func TestUserProjectsFailSoft(t *testing.T) {
	h := testHandle(t)
	resolver := resolverOver(&memStore{failWith: errors.New("store down")})

	require.Empty(t, resolver.UserProjects(context.Background(), "u1", h))
}

func TestCanPerformProjectActionRefinements(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "m1", Role: "manager", IsActive: true},
			{ID: "a2", ProjectID: "p1", UserID: "h1", Role: "hr", IsActive: true},
		},
		projects: map[string]projects.Project{"p1": {ID: "p1"}},
	}
	resolver := resolverOver(store)
	ctx := context.Background()

	// team_manage requires the manager role even with project access.
	require.True(t, resolver.CanPerformProjectAction(ctx, "m1", authz.RoleManager, authz.PermTeamManage, "p1", h))
	require.False(t, resolver.CanPerformProjectAction(ctx, "h1", authz.RoleHR, authz.PermTeamManage, "p1", h))

	// user_assign_project is admin-only.
	require.True(t, resolver.CanPerformProjectAction(ctx, "root", authz.RoleCompanyAdmin, authz.PermUserAssignProject, "p1", h))
	require.False(t, resolver.CanPerformProjectAction(ctx, "m1", authz.RoleManager, authz.PermUserAssignProject, "p1", h))

	// project_edit allows admins and managers.
	require.True(t, resolver.CanPerformProjectAction(ctx, "m1", authz.RoleManager, authz.PermProjectEdit, "p1", h))
	require.False(t, resolver.CanPerformProjectAction(ctx, "h1", authz.RoleHR, authz.PermProjectEdit, "p1", h))

	// Other permitted actions default to allow.
	require.True(t, resolver.CanPerformProjectAction(ctx, "h1", authz.RoleHR, authz.PermDataViewProject, "p1", h))

	// Missing permission token denies before any data access.
	require.False(t, resolver.CanPerformProjectAction(ctx, "e1", authz.RoleEmployee, authz.PermProjectCreate, "p1", h))
}
