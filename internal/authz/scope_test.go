package authz_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck-hr/crewdeck-hr/internal/authz"
	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// countingStore wraps memStore to count resolver hits.
type countingStore struct {
	*memStore
	calls atomic.Int64
}

func (c *countingStore) ActiveAssignmentsForUser(ctx context.Context, userID string) ([]projects.Assignment, error) {
	c.calls.Add(1)
	return c.memStore.ActiveAssignmentsForUser(ctx, userID)
}

func newScopeFilter(t *testing.T, store authz.Store, withCache bool) *authz.ScopeFilter {
	t.Helper()
	resolver := authz.NewAccessResolver(func(h *tenant.Handle) authz.Store { return store }, testLogger())
	var client *redis.Client
	if withCache {
		mr := miniredis.RunT(t)
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	return authz.NewScopeFilter(resolver, client, time.Minute, testLogger())
}

func TestFilterByProjectAccessAdminIdentity(t *testing.T) {
	h := testHandle(t)
	filter := newScopeFilter(t, &memStore{}, false)

	records := []tenant.Document{
		{"projectId": "p1"},
		{"projectId": "p2"},
		{"note": "no project"},
	}
	out := filter.FilterByProjectAccess(context.Background(), "root", authz.RoleCompanyAdmin, records, h)
	require.Equal(t, records, out)
}

func TestFilterByProjectAccessScopesRecords(t *testing.T) {
	h := testHandle(t)
	store := &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "m1", Role: "manager", IsActive: true},
		},
		projects: map[string]projects.Project{
			"p1": {ID: "p1"},
			"p2": {ID: "p2"},
		},
	}
	filter := newScopeFilter(t, store, false)

	records := []tenant.Document{
		{"projectId": "p1", "kind": "timesheet"},
		{"projectId": "p2", "kind": "timesheet"},
		{"kind": "orphan"},
	}
	out := filter.FilterByProjectAccess(context.Background(), "m1", authz.RoleManager, records, h)
	require.Len(t, out, 1)
	require.Equal(t, "p1", out[0]["projectId"])
}

func TestAuthorizedProjectIDsUsesCache(t *testing.T) {
	h := testHandle(t)
	store := &countingStore{memStore: &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "m1", Role: "manager", IsActive: true},
		},
		projects: map[string]projects.Project{"p1": {ID: "p1"}},
	}}
	filter := newScopeFilter(t, store, true)

	first := filter.AuthorizedProjectIDs(context.Background(), "m1", h)
	require.Contains(t, first, "p1")
	second := filter.AuthorizedProjectIDs(context.Background(), "m1", h)
	require.Contains(t, second, "p1")

	require.EqualValues(t, 1, store.calls.Load(), "second lookup must come from cache")
}

func TestInvalidateActorDropsCachedScope(t *testing.T) {
	h := testHandle(t)
	store := &countingStore{memStore: &memStore{
		assignments: []projects.Assignment{
			{ID: "a1", ProjectID: "p1", UserID: "m1", Role: "manager", IsActive: true},
		},
		projects: map[string]projects.Project{"p1": {ID: "p1"}},
	}}
	filter := newScopeFilter(t, store, true)

	filter.AuthorizedProjectIDs(context.Background(), "m1", h)
	filter.InvalidateActor(context.Background(), h.TenantID(), "m1")
	filter.AuthorizedProjectIDs(context.Background(), "m1", h)

	require.EqualValues(t, 2, store.calls.Load())
}

func TestEmptyScopeIsCachedToo(t *testing.T) {
	h := testHandle(t)
	store := &countingStore{memStore: &memStore{projects: map[string]projects.Project{}}}
	filter := newScopeFilter(t, store, true)

	require.Empty(t, filter.AuthorizedProjectIDs(context.Background(), "nobody", h))
	require.Empty(t, filter.AuthorizedProjectIDs(context.Background(), "nobody", h))
	require.EqualValues(t, 1, store.calls.Load())
}
