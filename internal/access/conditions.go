package access

import (
	"fmt"
	"strings"
)

// ValidateActions checks that an action set is non-empty and contains only
// known actions.
func ValidateActions(actions []Action) error {
	if len(actions) == 0 {
		return fmt.Errorf("%w: actions must not be empty", ErrInvalidInput)
	}
	for _, a := range actions {
		switch a {
		case ActionRead, ActionWrite, ActionDelete, ActionManage, ActionViewMenu:
		default:
			return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, a)
		}
	}
	return nil
}

// ValidateConditions rejects unknown operators and malformed operands up
// front, so an access check never meets a condition it cannot interpret.
func ValidateConditions(conds []PermissionCondition) error {
	for _, c := range conds {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%w: condition field is required", ErrInvalidInput)
		}
		switch c.Op {
		case OpEq, OpNeq, OpContains, OpStartsWith:
			if c.Value == "" {
				return fmt.Errorf("%w: condition %q requires a value", ErrInvalidInput, c.Field)
			}
		case OpIn, OpNotIn:
			if len(c.Values) == 0 {
				return fmt.Errorf("%w: condition %q requires values", ErrInvalidInput, c.Field)
			}
		default:
			return fmt.Errorf("%w: unknown condition operator %q", ErrInvalidInput, c.Op)
		}
	}
	return nil
}

// ValidatePermissions checks a full permission set.
func ValidatePermissions(perms []Permission) error {
	if len(perms) == 0 {
		return fmt.Errorf("%w: permissions must not be empty", ErrInvalidInput)
	}
	for _, p := range perms {
		if strings.TrimSpace(p.Section) == "" {
			return fmt.Errorf("%w: permission section is required", ErrInvalidInput)
		}
		if strings.TrimSpace(p.Resource) == "" {
			return fmt.Errorf("%w: permission resource is required", ErrInvalidInput)
		}
		if err := ValidateActions(p.Actions); err != nil {
			return err
		}
		if err := ValidateConditions(p.Conditions); err != nil {
			return err
		}
	}
	return nil
}

// Match evaluates the condition against the request context. A field absent
// from the context fails the condition: conditions narrow, they never widen.
func (c PermissionCondition) Match(ctx Context) bool {
	v, ok := ctx[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpNeq:
		return v != c.Value
	case OpIn:
		return containsString(c.Values, v)
	case OpNotIn:
		return !containsString(c.Values, v)
	case OpContains:
		return strings.Contains(v, c.Value)
	case OpStartsWith:
		return strings.HasPrefix(v, c.Value)
	default:
		// Unknown operators are rejected at creation time; deny if one
		// slips through via a raw store write.
		return false
	}
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
