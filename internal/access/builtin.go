package access

// Functional sections of the station-network application. Permission sections
// reference these; the HTTP layer gates its admin routes with them.
const (
	SectionNetworks      = "networks"
	SectionTradingPoints = "trading_points"
	SectionEquipment     = "equipment"
	SectionOperations    = "operations"
	SectionPrices        = "prices"
	SectionUsers         = "users"
	SectionRoles         = "roles"
	SectionReports       = "reports"
	SectionNotifications = "notifications"
)

// Builtin system role codes.
const (
	RoleSystemAdmin     = "system_admin"
	RoleNetworkAdmin    = "network_admin"
	RoleStationOperator = "station_operator"
	RoleBTOManager      = "bto_manager"
)

// BuiltinRoles are the system roles seeded into every tenant. System roles
// cannot be deleted and their code/is_system fields are immutable. Scoped
// builtins declare the wildcard target: any concrete network or trading point
// may be named when the role is assigned.
func BuiltinRoles(tenantID string) []Role {
	return []Role{
		{
			TenantID: tenantID,
			Code:     RoleSystemAdmin,
			Name:     "System administrator",
			Permissions: []Permission{
				{Section: Wildcard, Resource: Wildcard, Actions: []Action{ActionManage}},
			},
			Scope:    ScopeGlobal,
			IsSystem: true,
			IsActive: true,
		},
		{
			TenantID: tenantID,
			Code:     RoleNetworkAdmin,
			Name:     "Network administrator",
			Permissions: []Permission{
				{Section: SectionNetworks, Resource: Wildcard, Actions: []Action{ActionRead, ActionViewMenu}},
				{Section: SectionTradingPoints, Resource: Wildcard, Actions: []Action{ActionManage}},
				{Section: SectionEquipment, Resource: Wildcard, Actions: []Action{ActionManage}},
				{Section: SectionOperations, Resource: Wildcard, Actions: []Action{ActionRead, ActionWrite, ActionViewMenu}},
				{Section: SectionPrices, Resource: Wildcard, Actions: []Action{ActionManage}},
				{Section: SectionReports, Resource: Wildcard, Actions: []Action{ActionRead, ActionViewMenu}},
			},
			Scope:       ScopeNetwork,
			ScopeValues: []string{Wildcard},
			IsSystem:    true,
			IsActive:    true,
		},
		{
			TenantID: tenantID,
			Code:     RoleStationOperator,
			Name:     "Station operator",
			Permissions: []Permission{
				{Section: SectionTradingPoints, Resource: Wildcard, Actions: []Action{ActionRead, ActionViewMenu}},
				{Section: SectionEquipment, Resource: Wildcard, Actions: []Action{ActionRead, ActionWrite}},
				{Section: SectionOperations, Resource: Wildcard, Actions: []Action{ActionRead, ActionWrite, ActionViewMenu}},
			},
			Scope:       ScopeTradingPoint,
			ScopeValues: []string{Wildcard},
			IsSystem:    true,
			IsActive:    true,
		},
		{
			TenantID: tenantID,
			Code:     RoleBTOManager,
			Name:     "BTO manager",
			Permissions: []Permission{
				{Section: SectionEquipment, Resource: Wildcard, Actions: []Action{ActionRead, ActionWrite, ActionViewMenu}},
				{Section: SectionNotifications, Resource: Wildcard, Actions: []Action{ActionRead, ActionWrite}},
			},
			Scope:       ScopeAssigned,
			ScopeValues: []string{Wildcard},
			IsSystem:    true,
			IsActive:    true,
		},
	}
}
