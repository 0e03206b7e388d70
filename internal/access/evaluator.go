package access

import "time"

// HasPermission reports whether the user may perform action on
// (section, resource), optionally narrowed by the request context. It is a
// pure decision over the in-memory user aggregate: no I/O, no mutation, and
// "no permission" is a plain false, never an error. Absence of any matching
// grant is a deny; there is no default-allow path.
func (u *User) HasPermission(section, resource string, action Action, ctx Context) bool {
	return u.hasPermissionAt(section, resource, action, ctx, time.Now().UTC())
}

// HasAnyPermission reports whether at least one of the checks would pass.
// UI layers use it to decide menu visibility.
func (u *User) HasAnyPermission(checks []Check, ctx Context) bool {
	if u == nil || len(checks) == 0 {
		return false
	}
	now := time.Now().UTC()
	for _, c := range checks {
		if u.hasPermissionAt(c.Section, c.Resource, c.Action, ctx, now) {
			return true
		}
	}
	return false
}

func (u *User) hasPermissionAt(section, resource string, action Action, ctx Context, now time.Time) bool {
	if u == nil || u.Status != StatusActive || u.DeletedAt != nil {
		return false
	}

	// Direct permissions apply tenant-wide, independent of any role scope.
	for _, p := range u.DirectPermissions {
		if permissionMatches(p, section, resource, action, ctx) {
			return true
		}
	}

	for i := range u.Roles {
		ur := &u.Roles[i]
		if !ur.activeAt(now) {
			continue
		}
		if !ur.scopeSatisfied(ctx) {
			continue
		}
		for _, p := range ur.Permissions {
			if permissionMatches(p, section, resource, action, ctx) {
				return true
			}
		}
	}
	return false
}

// activeAt reports whether the assignment contributes permissions: the parent
// role must still be live and the assignment itself unexpired. Expired
// assignments stay on the user for audit history but are inert here.
func (ur *UserRole) activeAt(now time.Time) bool {
	if !ur.RoleActive {
		return false
	}
	if ur.ExpiresAt != nil && !ur.ExpiresAt.After(now) {
		return false
	}
	return true
}

// scopeSatisfied applies scope narrowing: a non-global assignment only grants
// inside the single target it was assigned for, identified through the
// request context. A network admin confined to N1 gets nothing for N2.
func (ur *UserRole) scopeSatisfied(ctx Context) bool {
	if ur.Scope == ScopeGlobal {
		return true
	}
	if ur.ScopeValue == "" {
		return false
	}
	key := scopeContextKey(ur.Scope)
	if key == "" {
		return false
	}
	return ctx[key] == ur.ScopeValue
}

func scopeContextKey(s Scope) string {
	switch s {
	case ScopeNetwork:
		return ContextNetworkID
	case ScopeTradingPoint:
		return ContextTradingPointID
	case ScopeAssigned:
		return ContextScopeID
	default:
		return ""
	}
}

func permissionMatches(p Permission, section, resource string, action Action, ctx Context) bool {
	if p.Section != Wildcard && p.Section != section {
		return false
	}
	if p.Resource != Wildcard && p.Resource != resource {
		return false
	}
	if !actionSatisfied(p.Actions, action) {
		return false
	}
	for _, c := range p.Conditions {
		if !c.Match(ctx) {
			return false
		}
	}
	return true
}

// actionSatisfied treats manage as a superset of every other action.
func actionSatisfied(granted []Action, requested Action) bool {
	for _, a := range granted {
		if a == requested || a == ActionManage {
			return true
		}
	}
	return false
}
