package authz

const (
	RoleOpsAdmin   = "ops-admin"
	RoleDispatcher = "dispatcher"
	RoleAnonymous  = "anonymous"
	RoleSuperadmin = "superadmin"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectCompliancePolicies  = "compliance.policies"
	ObjectComplianceOverrides = "compliance.overrides"
	ObjectComplianceDecisions = "compliance.decisions"
	ObjectComplianceRules     = "compliance.rules"
)
