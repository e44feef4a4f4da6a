package auth

const (
	RoleSuperAdmin = "super_admin"
	RoleHR         = "hr"
	RoleManager    = "manager"
	RoleTeamLead   = "team_lead"
	RoleEmployee   = "employee"
)

const (
	PermUsersRead     = "directory.users.read"
	PermUsersWrite    = "directory.users.write"
	PermOrgRead       = "directory.org.read"
	PermOrgWrite      = "directory.org.write"
	PermLeaveRead     = "leave.read"
	PermLeaveWrite    = "leave.write"
	PermLeaveApprove  = "leave.approve"
	PermLeaveAdmin    = "leave.admin"
	PermWorkflowRead  = "workflow.read"
	PermWorkflowWrite = "workflow.write"
	PermReportsRead   = "reports.read"
	PermAuditRead     = "audit.read"
	PermSystemAdmin   = "admin.system"
)

var DefaultPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermOrgRead,
	PermOrgWrite,
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermLeaveAdmin,
	PermWorkflowRead,
	PermWorkflowWrite,
	PermReportsRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermUsersRead,
		PermOrgRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermReportsRead,
	},
	RoleTeamLead: {
		PermUsersRead,
		PermOrgRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermReportsRead,
	},
	RoleManager: {
		PermUsersRead,
		PermOrgRead,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermReportsRead,
	},
	RoleHR: {
		PermUsersRead,
		PermUsersWrite,
		PermOrgRead,
		PermOrgWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermWorkflowRead,
		PermWorkflowWrite,
		PermReportsRead,
		PermAuditRead,
	},
	RoleSuperAdmin: {
		PermUsersRead,
		PermUsersWrite,
		PermOrgRead,
		PermOrgWrite,
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermWorkflowRead,
		PermWorkflowWrite,
		PermReportsRead,
		PermAuditRead,
		PermSystemAdmin,
	},
}
