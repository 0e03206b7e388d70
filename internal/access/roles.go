package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelgrid.org/internal/ids"
)

// Roles manages the role lifecycle: creation, mutation, soft deletion and
// assignment to users. Every mutation is paired with an audit record; if the
// record cannot be written the mutation is rejected as a whole.
type Roles struct {
	store Store
	audit AuditSink
	now   func() time.Time
}

// RolesOption configures the manager.
type RolesOption func(*Roles)

// WithRolesClock overrides the time source, for tests.
func WithRolesClock(fn func() time.Time) RolesOption {
	return func(r *Roles) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRoles constructs the role lifecycle manager.
func NewRoles(store Store, sink AuditSink, opts ...RolesOption) (*Roles, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if sink == nil {
		return nil, errors.New("access: audit sink is required")
	}
	r := &Roles{store: store, audit: sink, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CreateRoleInput carries the fields an admin supplies when creating a role.
type CreateRoleInput struct {
	TenantID    string
	Code        string
	Name        string
	Description string
	Permissions []Permission
	Scope       Scope
	ScopeValues []string
	IsSystem    bool
}

// Create validates the input and stores a new active role. The code must be
// unique within the tenant; a non-global role must name at least one scope
// target.
func (r *Roles) Create(ctx context.Context, in CreateRoleInput) (*Role, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if in.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateScope(in.Scope, in.ScopeValues); err != nil {
		return nil, err
	}
	if err := ValidatePermissions(in.Permissions); err != nil {
		return nil, err
	}
	if existing, err := r.store.Roles(ctx).FindByCode(ctx, in.TenantID, in.Code); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: role code %q already exists", ErrInvalidInput, in.Code)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := r.now().UTC()
	role := &Role{
		ID:          ids.New(),
		TenantID:    in.TenantID,
		Code:        in.Code,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Permissions: ClonePermissions(in.Permissions),
		Scope:       in.Scope,
		ScopeValues: append([]string(nil), in.ScopeValues...),
		IsSystem:    in.IsSystem,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Roles(ctx).Create(ctx, role); err != nil {
		return nil, err
	}
	if err := r.record(ctx, "role.create", role, nil, map[string]string{
		"code": role.Code, "name": role.Name, "scope": string(role.Scope),
	}); err != nil {
		return nil, err
	}
	return role, nil
}

// RoleUpdate lists mutable role fields. Nil means "leave unchanged".
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []Permission
	Scope       *Scope
	ScopeValues []string
	IsActive    *bool

	// Code and IsSystem changes are only honored for non-system roles.
	Code     *string
	IsSystem *bool
}

// Update mutates a role. Attempts to change code or is_system on a system
// role fail with ErrImmutableField and nothing is applied. Soft-deleted roles
// are not found.
func (r *Roles) Update(ctx context.Context, roleID string, upd RoleUpdate) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := r.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.DeletedAt != nil {
		return nil, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	if role.IsSystem {
		if upd.Code != nil && *upd.Code != role.Code {
			return nil, fmt.Errorf("%w: code of system role %s", ErrImmutableField, role.Code)
		}
		if upd.IsSystem != nil && *upd.IsSystem != role.IsSystem {
			return nil, fmt.Errorf("%w: is_system of system role %s", ErrImmutableField, role.Code)
		}
	}

	old := map[string]string{"name": role.Name, "scope": string(role.Scope)}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Permissions != nil {
		if err := ValidatePermissions(upd.Permissions); err != nil {
			return nil, err
		}
		role.Permissions = ClonePermissions(upd.Permissions)
	}
	if upd.Scope != nil {
		role.Scope = *upd.Scope
	}
	if upd.ScopeValues != nil {
		role.ScopeValues = append([]string(nil), upd.ScopeValues...)
	}
	if err := validateScope(role.Scope, role.ScopeValues); err != nil {
		return nil, err
	}
	if upd.IsActive != nil {
		role.IsActive = *upd.IsActive
	}
	if !role.IsSystem {
		if upd.Code != nil {
			code := strings.TrimSpace(*upd.Code)
			if code == "" {
				return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
			}
			role.Code = code
		}
		if upd.IsSystem != nil {
			role.IsSystem = *upd.IsSystem
		}
	}
	role.UpdatedAt = r.now().UTC()

	if err := r.store.Roles(ctx).Update(ctx, role); err != nil {
		return nil, err
	}
	if err := r.record(ctx, "role.update", role, old, map[string]string{
		"name": role.Name, "scope": string(role.Scope),
	}); err != nil {
		return nil, err
	}
	return role, nil
}

// SoftDelete marks a role deleted. System roles are refused. Existing
// assignments are kept; the evaluator ignores them once RoleActive is false.
func (r *Roles) SoftDelete(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := r.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRole, role.Code)
	}
	if role.DeletedAt != nil {
		return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	now := r.now().UTC()
	role.DeletedAt = &now
	role.UpdatedAt = now
	if err := r.store.Roles(ctx).Update(ctx, role); err != nil {
		return err
	}
	return r.record(ctx, "role.delete", role, map[string]string{"code": role.Code}, nil)
}

// AssignInput describes one role assignment.
type AssignInput struct {
	UserID     string
	RoleID     string
	ScopeValue string
	ExpiresAt  *time.Time
	AssignedBy string
}

// Assign binds a role to a user, snapshotting the role's current permissions
// into the assignment. Later edits of the role do not flow into the snapshot;
// a fresh assignment is required to pick them up. For non-global roles the
// scope value must be one of the role's declared targets. An unexpired
// assignment of the same (role, scope value) pair is a duplicate; an expired
// one stays on the row as history and does not block re-assignment.
func (r *Roles) Assign(ctx context.Context, in AssignInput) (*UserRole, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.RoleID = strings.TrimSpace(in.RoleID)
	in.ScopeValue = strings.TrimSpace(in.ScopeValue)
	if in.UserID == "" || in.RoleID == "" {
		return nil, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	role, err := r.store.Roles(ctx).Find(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}
	if role.DeletedAt != nil || !role.IsActive {
		return nil, fmt.Errorf("%w: role %s is not active", ErrInvalidInput, in.RoleID)
	}
	switch {
	case role.Scope == ScopeGlobal && in.ScopeValue != "":
		return nil, fmt.Errorf("%w: global role takes no scope value", ErrInvalidInput)
	case role.Scope != ScopeGlobal && in.ScopeValue == "":
		return nil, fmt.Errorf("%w: scope value is required for %s role", ErrInvalidInput, role.Scope)
	case role.Scope != ScopeGlobal && !containsString(role.ScopeValues, in.ScopeValue) && !containsString(role.ScopeValues, Wildcard):
		return nil, fmt.Errorf("%w: %q is not a scope target of role %s", ErrInvalidInput, in.ScopeValue, role.Code)
	}

	now := r.now().UTC()
	existing, err := r.store.Roles(ctx).Assignments(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	for _, cur := range existing {
		if cur.RoleID != role.ID || cur.ScopeValue != in.ScopeValue {
			continue
		}
		if cur.ExpiresAt == nil || cur.ExpiresAt.After(now) {
			return nil, fmt.Errorf("%w: role %s", ErrDuplicateAssignment, role.ID)
		}
	}

	ur := &UserRole{
		RoleID:      role.ID,
		RoleCode:    role.Code,
		RoleName:    role.Name,
		Scope:       role.Scope,
		ScopeValue:  in.ScopeValue,
		Permissions: ClonePermissions(role.Permissions),
		RoleActive:  true,
		AssignedAt:  now,
		AssignedBy:  in.AssignedBy,
		ExpiresAt:   in.ExpiresAt,
	}
	if err := r.store.Roles(ctx).Assign(ctx, in.UserID, ur); err != nil {
		return nil, err
	}
	if err := r.record(ctx, "role.assign", role, nil, map[string]string{
		"user_id": in.UserID, "scope_value": in.ScopeValue,
	}); err != nil {
		return nil, err
	}
	return ur, nil
}

// Get returns a role that is not soft-deleted.
func (r *Roles) Get(ctx context.Context, roleID string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := r.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.DeletedAt != nil {
		return nil, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
	}
	return role, nil
}

// ListByTenant returns the tenant's non-deleted roles.
func (r *Roles) ListByTenant(ctx context.Context, tenantID string) ([]*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return r.store.Roles(ctx).ListByTenant(ctx, tenantID)
}

// EnsureBuiltins creates any missing system roles for the tenant.
func (r *Roles) EnsureBuiltins(ctx context.Context, tenantID string) error {
	for _, role := range BuiltinRoles(tenantID) {
		_, err := r.store.Roles(ctx).FindByCode(ctx, tenantID, role.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		in := CreateRoleInput{
			TenantID:    role.TenantID,
			Code:        role.Code,
			Name:        role.Name,
			Description: role.Description,
			Permissions: role.Permissions,
			Scope:       role.Scope,
			ScopeValues: role.ScopeValues,
			IsSystem:    true,
		}
		if _, err := r.Create(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (r *Roles) record(ctx context.Context, action string, role *Role, old, new_ map[string]string) error {
	rec := &AuditRecord{
		TenantID:   role.TenantID,
		Action:     action,
		EntityType: "role",
		EntityID:   role.ID,
		OldValues:  old,
		NewValues:  new_,
		OccurredAt: r.now().UTC(),
	}
	if p, ok := PrincipalFromContext(ctx); ok {
		rec.ActorID = p.User.ID
	}
	if err := r.audit.Record(ctx, rec); err != nil {
		return fmt.Errorf("audit append failed, operation aborted: %w", err)
	}
	return nil
}

func validateScope(scope Scope, values []string) error {
	switch scope {
	case ScopeGlobal:
		if len(values) != 0 {
			return fmt.Errorf("%w: global scope takes no scope values", ErrInvalidInput)
		}
	case ScopeNetwork, ScopeTradingPoint, ScopeAssigned:
		if len(values) == 0 {
			return fmt.Errorf("%w: %s scope requires at least one scope value", ErrInvalidInput, scope)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, scope)
	}
	return nil
}
