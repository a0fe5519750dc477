package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crewdeck-hr/crewdeck-hr/internal/projects"
	"github.com/crewdeck-hr/crewdeck-hr/internal/shared"
	"github.com/crewdeck-hr/crewdeck-hr/internal/tenant"
)

// teamTier is one ordered team-membership strategy, mirroring the
// project access tiers.
type teamTier interface {
	name() string
	members(ctx context.Context, actorID string, role Role, projectID string) ([]projects.Member, error)
}

// teamAssignmentTier pairs through dedicated TeamAssignment records: a
// manager sees the paired HR actors, an HR actor the paired managers.
type teamAssignmentTier struct {
	store Store
}

func (t teamAssignmentTier) name() string { return "assignment" }

func (t teamAssignmentTier) members(ctx context.Context, actorID string, role Role, projectID string) ([]projects.Member, error) {
	rows, err := t.store.ActiveTeamAssignments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var members []projects.Member
	for _, row := range rows {
		switch {
		case role == RoleManager && row.ManagerID == actorID:
			members = append(members, projects.Member{UserID: row.HRID, Role: string(RoleHR)})
		case role == RoleHR && row.HRID == actorID:
			members = append(members, projects.Member{UserID: row.ManagerID, Role: string(RoleManager)})
		}
	}
	return members, nil
}

// teamEmbeddedTier derives the pairing from the project's own arrays.
type teamEmbeddedTier struct {
	store Store
}

func (t teamEmbeddedTier) name() string { return "embedded" }

func (t teamEmbeddedTier) members(ctx context.Context, actorID string, role Role, projectID string) ([]projects.Member, error) {
	p, err := t.store.ProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var members []projects.Member
	switch role {
	case RoleManager:
		for _, id := range p.AssignedHRs {
			members = append(members, projects.Member{UserID: id, Role: string(RoleHR)})
		}
	case RoleHR:
		for _, id := range p.AssignedManagers {
			members = append(members, projects.Member{UserID: id, Role: string(RoleManager)})
		}
	}
	return members, nil
}

// TeamResolver derives the manager-HR pairing visible to an actor.
type TeamResolver struct {
	stores StoreFactory
	logger *slog.Logger
}

// NewTeamResolver constructs the resolver.
func NewTeamResolver(stores StoreFactory, logger *slog.Logger) *TeamResolver {
	return &TeamResolver{stores: stores, logger: logger}
}

// TeamMembers returns the actors paired with the actor on the project.
// Roles other than manager and hr see nobody. Fail-soft: errors are
// logged and yield an empty list.
func (r *TeamResolver) TeamMembers(ctx context.Context, actorID string, role Role, projectID string, h *tenant.Handle) []projects.Member {
	if role != RoleManager && role != RoleHR {
		return nil
	}
	store := r.stores(h)
	tiers := []teamTier{teamAssignmentTier{store}, teamEmbeddedTier{store}}
	for i, tier := range tiers {
		members, err := tier.members(ctx, actorID, role, projectID)
		if err != nil {
			r.logger.Error("resolve team members",
				slog.String("tier", tier.name()),
				slog.String("actor", actorID),
				slog.String("project", projectID),
				slog.Any("error", err))
			return nil
		}
		if len(members) > 0 {
			return members
		}
		if i == 0 {
			r.logger.Warn("team assignments empty, falling back to embedded project data",
				slog.String("tenant", h.TenantID()),
				slog.String("project", projectID))
		}
	}
	return nil
}
