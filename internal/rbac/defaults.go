package rbac

// Permission tokens gating classes of actions. The vocabulary is flat:
// membership is a set test, there is no hierarchy.
const (
	PermCreateInfra = "infrastructure:create"
	PermReadInfra   = "infrastructure:read"
	PermUpdateInfra = "infrastructure:update"
	PermDeleteInfra = "infrastructure:delete"

	PermApproveChanges = "approvals:approve"
	PermRejectChanges  = "approvals:reject"

	PermCreatePolicy = "policy:create"
	PermManagePolicy = "policy:manage"

	PermManageUsers = "users:manage"
	PermManageRoles = "roles:manage"

	PermViewAuditLogs = "system:view_audit_logs"
	PermAdminAccess   = "system:admin"
)

// Default role names.
const (
	RoleAdmin     = "Admin"
	RoleDeveloper = "Developer"
	RoleAuditor   = "Auditor"
	RoleApprover  = "Approver"
)

// DefaultRoles returns a fresh copy of the built-in role table. Each call
// allocates new permission sets so that engines never share role state.
func DefaultRoles() []Role {
	return []Role{
		NewRole(RoleAdmin, PermAdminAccess, PermManageUsers, PermManageRoles, PermViewAuditLogs),
		NewRole(RoleDeveloper, PermCreateInfra, PermReadInfra, PermUpdateInfra),
		NewRole(RoleAuditor, PermViewAuditLogs, PermReadInfra),
		NewRole(RoleApprover, PermApproveChanges, PermRejectChanges),
	}
}
