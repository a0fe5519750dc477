package projects

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines the persistence methods the service needs.
type RepositoryPort interface {
	InsertProject(ctx context.Context, p Project) error
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error
	InsertAssignments(ctx context.Context, assignments []Assignment) error
	ProjectByID(ctx context.Context, id string) (Project, error)
}

// Service handles project mutations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateInput describes a new project plus its initial assignments.
type CreateInput struct {
	Name        string
	Status      string
	Priority    string
	CreatedBy   string
	Assignments []AssignmentInput
}

// AssignmentInput references one user to assign.
type AssignmentInput struct {
	UserID string
	Role   string
}

// Create writes the project, then its assignments. The two writes are
// not atomic; when the assignment batch fails the just-created project
// is deleted so no team-less orphan survives.
func (s *Service) Create(ctx context.Context, in CreateInput) (Project, error) {
	now := s.now()
	p := Project{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Status:    in.Status,
		Priority:  in.Priority,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Status == "" {
		p.Status = "active"
	}

	if err := s.repo.InsertProject(ctx, p); err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}

	if len(in.Assignments) == 0 {
		return p, nil
	}

	assignments := make([]Assignment, 0, len(in.Assignments))
	for _, a := range in.Assignments {
		assignments = append(assignments, Assignment{
			ID:         uuid.NewString(),
			ProjectID:  p.ID,
			UserID:     a.UserID,
			Role:       a.Role,
			IsActive:   true,
			AssignedBy: in.CreatedBy,
			AssignedAt: now,
		})
	}
	if err := s.repo.InsertAssignments(ctx, assignments); err != nil {
		if delErr := s.repo.DeleteProject(ctx, p.ID); delErr != nil {
			s.logger.Error("orphan project cleanup failed",
				slog.String("project", p.ID),
				slog.Any("error", delErr))
		}
		return Project{}, fmt.Errorf("create project assignments: %w", err)
	}
	return p, nil
}

// UpdateInput carries mutable project fields.
type UpdateInput struct {
	Name     string
	Status   string
	Priority string
}

// Update applies mutable fields to an existing project.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Project, error) {
	p, err := s.repo.ProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Status != "" {
		p.Status = in.Status
	}
	if in.Priority != "" {
		p.Priority = in.Priority
	}
	p.UpdatedAt = s.now()
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Assign adds active assignments to an existing project.
func (s *Service) Assign(ctx context.Context, projectID, assignedBy string, inputs []AssignmentInput) ([]Assignment, error) {
	if _, err := s.repo.ProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	now := s.now()
	assignments := make([]Assignment, 0, len(inputs))
	for _, a := range inputs {
		assignments = append(assignments, Assignment{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			UserID:     a.UserID,
			Role:       a.Role,
			IsActive:   true,
			AssignedBy: assignedBy,
			AssignedAt: now,
		})
	}
	if err := s.repo.InsertAssignments(ctx, assignments); err != nil {
		return nil, fmt.Errorf("assign users: %w", err)
	}
	return assignments, nil
}
