// Package projects holds the project, assignment, and team models the
// authorization resolvers read, plus the service mutating them.
package projects

import "time"

// Collection names inside a tenant store.
const (
	CollectionProjects        = "projects"
	CollectionAssignments     = "project_assignments"
	CollectionTeamAssignments = "team_assignments"
	CollectionUsers           = "users"
)

// Project is the legacy/embedded authorization source: the assigned
// arrays grant access when no dedicated assignment rows exist.
type Project struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	Priority          string    `json:"priority"`
	AssignedManagers  []string  `json:"assignedManagers"`
	AssignedHRs       []string  `json:"assignedHRs"`
	AssignedEmployees []string  `json:"assignedEmployees"`
	CreatedBy         string    `json:"createdBy"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Assignment is the canonical authorization source when present.
type Assignment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	UserID      string    `json:"userId"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	Permissions []string  `json:"permissions"`
	AssignedBy  string    `json:"assignedBy"`
	AssignedAt  time.Time `json:"assignedAt"`
}

// TeamAssignment is the canonical manager-HR pairing for a project.
type TeamAssignment struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectId"`
	ManagerID        string    `json:"managerId"`
	HRID             string    `json:"hrId"`
	RelationshipType string    `json:"relationshipType"`
	IsActive         bool      `json:"isActive"`
	Notes            string    `json:"notes"`
	AssignedAt       time.Time `json:"assignedAt"`
}

// Member is one actor visible through the team membership resolver.
type Member struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
