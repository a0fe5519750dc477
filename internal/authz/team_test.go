package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

func teamResolverOver(store *memStore) *authz.TeamResolver {
	return authz.NewTeamResolver(func(h *tenant.Handle) authz.Store { return store }, testLogger())
}

func TestTeamMembersAssignmentTier(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		teams: []projects.TeamAssignment{
			{ID: "ta1", ProjectID: "p1", ManagerID: "m1", HRID: "h1", IsActive: true},
			{ID: "ta2", ProjectID: "p1", ManagerID: "m1", HRID: "h2", IsActive: true},
			{ID: "ta3", ProjectID: "p1", ManagerID: "m2", HRID: "h3", IsActive: false},
		},
		projects: map[string]projects.Project{"p1": {ID: "p1"}},
	}
	resolver := teamResolverOver(store)

	managers := resolver.TeamMembers(context.Background(), "h1", authz.RoleHR, "p1", h)
	require.Len(t, managers, 1)
	require.Equal(t, "m1", managers[0].UserID)

	hrs := resolver.TeamMembers(context.Background(), "m1", authz.RoleManager, "p1", h)
	require.Len(t, hrs, 2)
	require.Equal(t, "h1", hrs[0].UserID)
	require.Equal(t, "h2", hrs[1].UserID)
}

func TestTeamMembersEmbeddedFallback(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		projects: map[string]projects.Project{
			"p1": {ID: "p1", AssignedManagers: []string{"m1"}, AssignedHRs: []string{"h1"}},
		},
	}
	resolver := teamResolverOver(store)

	hrs := resolver.TeamMembers(context.Background(), "m1", authz.RoleManager, "p1", h)
	require.Len(t, hrs, 1)
	require.Equal(t, "h1", hrs[0].UserID)
	require.Equal(t, "hr", hrs[0].Role)

	managers := resolver.TeamMembers(context.Background(), "h1", authz.RoleHR, "p1", h)
	require.Len(t, managers, 1)
	require.Equal(t, "m1", managers[0].UserID)
}

func TestTeamMembersOtherRolesSeeNobody(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		projects: map[string]projects.Project{
			"p1": {ID: "p1", AssignedManagers: []string{"m1"}, AssignedHRs: []string{"h1"}},
		},
	}
	resolver := teamResolverOver(store)

	require.Empty(t, resolver.TeamMembers(context.Background(), "e1", authz.RoleEmployee, "p1", h))
	require.Empty(t, resolver.TeamMembers(context.Background(), "root", authz.RoleCompanyAdmin, "p1", h))
}
