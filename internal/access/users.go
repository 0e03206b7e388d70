package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelgrid.org/internal/ids"
)

// Users manages the user account lifecycle: creation, status changes and
// soft deletion. Like the role manager, every mutation is paired with an
// audit record and rejected as a whole when the record cannot be written.
type Users struct {
	store Store
	audit AuditSink
	now   func() time.Time
}

// UsersOption configures the manager.
type UsersOption func(*Users)

// WithUsersClock overrides the time source, for tests.
func WithUsersClock(fn func() time.Time) UsersOption {
	return func(u *Users) {
		if fn != nil {
			u.now = fn
		}
	}
}

// NewUsers constructs the user lifecycle manager.
func NewUsers(store Store, sink AuditSink, opts ...UsersOption) (*Users, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if sink == nil {
		return nil, errors.New("access: audit sink is required")
	}
	u := &Users{store: store, audit: sink, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// CreateUserInput carries the fields an admin supplies when creating a user.
type CreateUserInput struct {
	TenantID          string
	Email             string
	Name              string
	Phone             string
	Password          string
	DirectPermissions []Permission
}

// Create validates the input, hashes the password and stores a new active
// user. The email must be unique within the tenant; the store's index
// enforces it.
func (m *Users) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(in.DirectPermissions) > 0 {
		if err := ValidatePermissions(in.DirectPermissions); err != nil {
			return nil, err
		}
	}
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	user := &User{
		ID:                ids.New(),
		TenantID:          in.TenantID,
		Email:             in.Email,
		Name:              in.Name,
		Phone:             strings.TrimSpace(in.Phone),
		Status:            StatusActive,
		DirectPermissions: ClonePermissions(in.DirectPermissions),
		PwdSalt:           salt,
		PwdHash:           hash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	if err := m.record(ctx, "user.create", user, nil, map[string]string{
		"email": user.Email, "status": string(user.Status),
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user that is not soft-deleted.
func (m *Users) Get(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := m.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return user, nil
}

// ListByTenant returns the tenant's non-deleted users.
func (m *Users) ListByTenant(ctx context.Context, tenantID string) ([]*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	return m.store.Users(ctx).ListByTenant(ctx, tenantID)
}

// UpdateStatus moves a user between active, inactive and blocked. Sessions
// are untouched; the authentication layer rejects non-active users on the
// next request.
func (m *Users) UpdateStatus(ctx context.Context, userID string, status Status) (*User, error) {
	switch status {
	case StatusActive, StatusInactive, StatusBlocked:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	user, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	old := user.Status
	if err := m.store.Users(ctx).UpdateStatus(ctx, user.ID, status); err != nil {
		return nil, err
	}
	user.Status = status
	if err := m.record(ctx, "user.status", user,
		map[string]string{"status": string(old)},
		map[string]string{"status": string(status)},
	); err != nil {
		return nil, err
	}
	return user, nil
}

// SoftDelete marks a user deleted. Role assignments stay on the rows; the
// evaluator ignores a deleted user entirely.
func (m *Users) SoftDelete(ctx context.Context, userID string) error {
	user, err := m.Get(ctx, userID)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	if err := m.store.Users(ctx).SoftDelete(ctx, user.ID, now); err != nil {
		return err
	}
	return m.record(ctx, "user.delete", user, map[string]string{"email": user.Email}, nil)
}

func (m *Users) record(ctx context.Context, action string, user *User, old, new_ map[string]string) error {
	rec := &AuditRecord{
		TenantID:   user.TenantID,
		Action:     action,
		EntityType: "user",
		EntityID:   user.ID,
		OldValues:  old,
		NewValues:  new_,
		OccurredAt: m.now().UTC(),
	}
	if p, ok := PrincipalFromContext(ctx); ok {
		rec.ActorID = p.User.ID
	}
	if err := m.audit.Record(ctx, rec); err != nil {
		return fmt.Errorf("audit append failed, operation aborted: %w", err)
	}
	return nil
}
