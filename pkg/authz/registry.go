package authz

const (
	RoleComplianceOfficer = "compliance-officer"
	RoleControlOwner      = "control-owner"
	RoleAuditor           = "auditor"
	RoleTenantAdmin       = "tenant-admin"
	RoleAnonymous         = "anonymous"
)

const (
	ActionRead     = "read"
	ActionGenerate = "generate"
	ActionPublish  = "publish"
	ActionApprove  = "approve"
)

const (
	ObjectCatalogControls     = "catalog.controls"
	ObjectSuiteSuites         = "suite.suites"
	ObjectApplicabilityLedger = "applicability.ledger"
)
