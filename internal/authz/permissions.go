// Package authz implements the role permission matrix, the two-tier
// project and team access resolvers, the project scope filter, and the
// request guards composed from them.
package authz

import "github.com/crewdeck-hr/crewdeck-hr/internal/shared"

// Role is the closed actor role vocabulary.
type Role string

const (
	RoleCompanyAdmin Role = "company_admin"
	// RoleAdmin is an explicit alias of RoleCompanyAdmin.
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// Permission is one token from the closed operation vocabulary shared
// with controllers.
type Permission string

const (
	PermProjectCreate     Permission = "project_create"
	PermProjectViewAll    Permission = "project_view_all"
	PermProjectEdit       Permission = "project_edit"
	PermProjectDelete     Permission = "project_delete"
	PermTeamManage        Permission = "team_manage"
	PermTeamView          Permission = "team_view"
	PermUserAssignProject Permission = "user_assign_project"
	PermDataViewProject   Permission = "data_view_project"
	PermDataEditProject   Permission = "data_edit_project"
	PermReportsExport     Permission = "reports_export"
	PermAttendanceView    Permission = "attendance_view"
	PermLeaveApprove      Permission = "leave_approve"
)

type permissionSet map[Permission]struct{}

func permSet(perms ...Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

var companyAdminPerms = permSet(
	PermProjectCreate,
	PermProjectViewAll,
	PermProjectEdit,
	PermProjectDelete,
	PermTeamManage,
	PermTeamView,
	PermUserAssignProject,
	PermDataViewProject,
	PermDataEditProject,
	PermReportsExport,
	PermAttendanceView,
	PermLeaveApprove,
)

// rolePermissions is the static matrix. Immutable after init; unknown
// roles resolve to no permissions.
var rolePermissions = map[Role]permissionSet{
	RoleCompanyAdmin: companyAdminPerms,
	RoleAdmin:        companyAdminPerms,
	RoleManager: permSet(
		PermProjectEdit,
		PermTeamManage,
		PermTeamView,
		PermDataViewProject,
		PermDataEditProject,
		PermReportsExport,
		PermAttendanceView,
		PermLeaveApprove,
	),
	RoleHR: permSet(
		PermTeamView,
		PermDataViewProject,
		PermReportsExport,
		PermAttendanceView,
		PermLeaveApprove,
	),
	RoleEmployee: permSet(
		PermDataViewProject,
		PermAttendanceView,
	),
}

// roleRanks orders roles by authority for relative comparisons.
var roleRanks = map[Role]int{
	RoleCompanyAdmin: 1,
	RoleAdmin:        1,
	RoleManager:      2,
	RoleHR:           3,
	RoleEmployee:     4,
}

// HasPermission reports whether the role holds the permission token.
// Unknown roles hold nothing.
func HasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// Rank returns the role's authority rank (1 is highest). The second
// result is false for unknown roles.
func Rank(role Role) (int, bool) {
	rank, ok := roleRanks[role]
	return rank, ok
}

// IsCompanyAdmin reports whether the role is company_admin or its alias.
func IsCompanyAdmin(role Role) bool {
	return role == RoleCompanyAdmin || role == RoleAdmin
}

// RoleOf converts an actor's stored role string.
func RoleOf(actor *shared.Actor) Role {
	if actor == nil {
		return ""
	}
	return Role(actor.Role)
}
