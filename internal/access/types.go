package access

import "time"

// Action is a closed set of operations a permission may grant.
type Action string

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionDelete   Action = "delete"
	ActionManage   Action = "manage"
	ActionViewMenu Action = "view_menu"
)

// Wildcard matches any section or resource inside a permission.
const Wildcard = "*"

// Scope defines the breadth at which a role's permissions apply.
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeNetwork      Scope = "network"
	ScopeTradingPoint Scope = "trading_point"
	ScopeAssigned     Scope = "assigned"
)

// Status of a user account. Only active users pass permission checks.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Operator is a closed set of condition comparators. Unknown operators are
// rejected when a permission is created, never during an access check.
type Operator string

const (
	OpEq         Operator = "="
	OpNeq        Operator = "!="
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
)

// PermissionCondition restricts a permission to concrete resource instances.
// Value carries the operand for scalar operators, Values for in/not_in.
type PermissionCondition struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Permission is an atomic grant: a section plus resource plus allowed actions.
// All conditions must hold (AND) for the permission to apply to an instance.
type Permission struct {
	Section    string                `json:"section"`
	Resource   string                `json:"resource"`
	Actions    []Action              `json:"actions"`
	Conditions []PermissionCondition `json:"conditions,omitempty"`
}

// Role is a named, tenant-scoped bundle of permissions.
type Role struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	Scope       Scope        `json:"scope"`
	ScopeValues []string     `json:"scope_values,omitempty"`
	IsSystem    bool         `json:"is_system"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
}

// UserRole binds a user to a role instance. Permissions are snapshotted at
// assignment time and never follow later edits of the role; RoleActive mirrors
// the parent role's liveness (is_active and not soft-deleted) as of the moment
// the user aggregate was loaded from the store.
type UserRole struct {
	RoleID      string       `json:"role_id"`
	RoleCode    string       `json:"role_code"`
	RoleName    string       `json:"role_name"`
	Scope       Scope        `json:"scope"`
	ScopeValue  string       `json:"scope_value,omitempty"`
	Permissions []Permission `json:"permissions"`
	RoleActive  bool         `json:"role_active"`
	AssignedAt  time.Time    `json:"assigned_at"`
	AssignedBy  string       `json:"assigned_by,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// User is a tenant-scoped identity with role assignments and optional direct
// permission grants. Password material is bcrypt with a per-user random salt.
type User struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	Email             string            `json:"email"`
	Name              string            `json:"name"`
	Phone             string            `json:"phone,omitempty"`
	Status            Status            `json:"status"`
	Roles             []UserRole        `json:"roles"`
	DirectPermissions []Permission      `json:"direct_permissions,omitempty"`
	Preferences       map[string]string `json:"preferences,omitempty"`
	PwdSalt           string            `json:"-"`
	PwdHash           string            `json:"-"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	DeletedAt         *time.Time        `json:"deleted_at,omitempty"`
}

// Session is a bounded-lifetime credential. ExpiresAt bounds the access
// window, RefreshExpiresAt the absolute lifetime; the former never exceeds
// the latter.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	TenantID         string    `json:"tenant_id"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	IsActive         bool      `json:"is_active"`
}

// AuditRecord is an immutable entry in the append-only audit log.
type AuditRecord struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	OldValues  map[string]string `json:"old_values,omitempty"`
	NewValues  map[string]string `json:"new_values,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	NetworkID  string            `json:"network_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Check names a single (section, resource, action) request for HasAnyPermission.
type Check struct {
	Section  string `json:"section"`
	Resource string `json:"resource"`
	Action   Action `json:"action"`
}

// Context carries request attributes used for scope narrowing and condition
// matching. Well-known keys: "network_id", "trading_point_id", "scope_id".
type Context map[string]string

const (
	ContextNetworkID      = "network_id"
	ContextTradingPointID = "trading_point_id"
	ContextScopeID        = "scope_id"
)

// ClonePermissions deep-copies a permission set. Assignment snapshots use it
// so a UserRole never aliases the live role's slices.
func ClonePermissions(perms []Permission) []Permission {
	if len(perms) == 0 {
		return nil
	}
	out := make([]Permission, len(perms))
	for i, p := range perms {
		out[i] = p
		if len(p.Actions) > 0 {
			out[i].Actions = append([]Action(nil), p.Actions...)
		}
		if len(p.Conditions) > 0 {
			out[i].Conditions = make([]PermissionCondition, len(p.Conditions))
			for j, c := range p.Conditions {
				out[i].Conditions[j] = c
				if len(c.Values) > 0 {
					out[i].Conditions[j].Values = append([]string(nil), c.Values...)
				}
			}
		}
	}
	return out
}
