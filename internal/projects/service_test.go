package projects_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	_ "github.com/crewdeck-hr/crewdeck-hr/testing"
)

type memoryRepo struct {
	projects    map[string]projects.Project
	assignments map[string]projects.Assignment

	failAssignments bool
	deleted         []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		projects:    make(map[string]projects.Project),
		assignments: make(map[string]projects.Assignment),
	}
}

func (r *memoryRepo) InsertProject(ctx context.Context, p projects.Project) error {
	r.projects[p.ID] = p
	return nil
}

func (r *memoryRepo) UpdateProject(ctx context.Context, p projects.Project) error {
	if _, ok := r.projects[p.ID]; !ok {
		return shared.ErrNotFound
	}
	r.projects[p.ID] = p
	return nil
}

func (r *memoryRepo) DeleteProject(ctx context.Context, id string) error {
	if _, ok := r.projects[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.projects, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memoryRepo) InsertAssignments(ctx context.Context, assignments []projects.Assignment) error {
	if r.failAssignments {
		return errors.New("assignment write failed")
	}
	for _, a := range assignments {
		r.assignments[a.ID] = a
	}
	return nil
}

func (r *memoryRepo) ProjectByID(ctx context.Context, id string) (projects.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return projects.Project{}, shared.ErrNotFound
	}
	return p, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateProjectWithAssignments(t *testing.T) {
	repo := newMemoryRepo()
	svc := projects.NewService(repo, testLogger())

	p, err := svc.Create(context.Background(), projects.CreateInput{
		Name:      "Apollo",
		Priority:  "high",
		CreatedBy: "root",
		Assignments: []projects.AssignmentInput{
			{UserID: "m1", Role: "manager"},
			{UserID: "h1", Role: "hr"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "active", p.Status)
	require.Len(t, repo.projects, 1)
	require.Len(t, repo.assignments, 2)
	for _, a := range repo.assignments {
		require.Equal(t, p.ID, a.ProjectID)
		require.True(t, a.IsActive)
		require.Equal(t, "root", a.AssignedBy)
	}
}

func TestCreateProjectCompensatesOnAssignmentFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAssignments = true
	svc := projects.NewService(repo, testLogger())

	_, err := svc.Create(context.Background(), projects.CreateInput{
		Name:      "Apollo",
		CreatedBy: "root",
		Assignments: []projects.AssignmentInput{
			{UserID: "m1", Role: "manager"},
		},
	})
	require.Error(t, err)
	require.Empty(t, repo.projects, "orphaned project must be cleaned up")
	require.Len(t, repo.deleted, 1)
}

func TestCreateProjectWithoutAssignments(t *testing.T) {
	repo := newMemoryRepo()
	repo.failAssignments = true // must not matter
	svc := projects.NewService(repo, testLogger())

	p, err := svc.Create(context.Background(), projects.CreateInput{Name: "Solo", CreatedBy: "root"})
	require.NoError(t, err)
	require.Len(t, repo.projects, 1)
	require.Empty(t, repo.assignments)
	require.Equal(t, "root", p.CreatedBy)
}

func TestUpdateProjectAppliesFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := projects.NewService(repo, testLogger())

	p, err := svc.Create(context.Background(), projects.CreateInput{Name: "Apollo", CreatedBy: "root"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), p.ID, projects.UpdateInput{Status: "archived"})
	require.NoError(t, err)
	require.Equal(t, "Apollo", updated.Name)
	require.Equal(t, "archived", updated.Status)
}

func TestUpdateMissingProject(t *testing.T) {
	svc := projects.NewService(newMemoryRepo(), testLogger())

	_, err := svc.Update(context.Background(), "missing", projects.UpdateInput{Name: "X"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRequiresExistingProject(t *testing.T) {
	repo := newMemoryRepo()
	svc := projects.NewService(repo, testLogger())

	_, err := svc.Assign(context.Background(), "missing", "root", []projects.AssignmentInput{
		{UserID: "m1", Role: "manager"},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	p, err := svc.Create(context.Background(), projects.CreateInput{Name: "Apollo", CreatedBy: "root"})
	require.NoError(t, err)

	assignments, err := svc.Assign(context.Background(), p.ID, "root", []projects.AssignmentInput{
		{UserID: "m1", Role: "manager"},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, p.ID, assignments[0].ProjectID)
}
