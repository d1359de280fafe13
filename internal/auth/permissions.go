package auth

// Actions guarded by AccessGate.
const (
	ActionDashboard      = "dashboard"
	ActionUserMaster     = "userMaster"
	ActionMasters        = "masters"
	ActionAssetMaster    = "assetMaster"
	ActionLocationMaster = "locationMaster"
	ActionAssetReview    = "assetReview"
	ActionAuditLogs      = "auditLogs"
	ActionReports        = "reports"
	ActionBulkUpload     = "bulkUpload"
	ActionQRCode         = "qrCode"
)

// ActionCatalog is the ordered list of every action a rule may name.
var ActionCatalog = []string{
	ActionDashboard,
	ActionUserMaster,
	ActionMasters,
	ActionAssetMaster,
	ActionLocationMaster,
	ActionAssetReview,
	ActionAuditLogs,
	ActionReports,
	ActionBulkUpload,
	ActionQRCode,
}

// roleTable lists the effect of every action for every role. Rows must stay
// aligned with ActionCatalog; nothing is implied, superadmin included.
var roleTable = map[Role][]Effect{
	//                dashboard userMaster masters assetMaster locationMaster assetReview auditLogs reports bulkUpload qrCode
	RoleSuperAdmin: {Allow, Allow, Allow, Allow, Allow, Allow, Allow, Allow, Allow, Allow},
	RoleAdmin:      {Allow, Allow, Deny, Allow, Allow, Allow, Allow, Allow, Allow, Allow},
	RoleAuditor:    {Allow, Deny, Deny, Allow, Deny, Deny, Allow, Allow, Deny, Deny},
	RoleSupervisor: {Allow, Deny, Deny, Allow, Allow, Allow, Allow, Allow, Deny, Allow},
	RoleUser:       {Allow, Deny, Deny, Allow, Deny, Deny, Deny, Deny, Deny, Deny},
}

// RolePermissions returns one rule per catalog action for role. Unknown roles
// get every action denied.
func RolePermissions(role Role) []PermissionRule {
	effects, ok := roleTable[role]
	rules := make([]PermissionRule, len(ActionCatalog))
	for i, action := range ActionCatalog {
		effect := Deny
		if ok && i < len(effects) {
			effect = effects[i]
		}
		rules[i] = PermissionRule{Action: action, Effect: effect}
	}
	return rules
}
