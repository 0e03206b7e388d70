package access

import (
	"context"
	"time"
)

// Store describes the persistence operations the access core requires. The
// physical schema lives behind it; the store must uphold the uniqueness and
// soft-delete invariants of the entities it returns.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Sessions(ctx context.Context) SessionStore
	Audit(ctx context.Context) AuditStore
}

// UserStore manages user aggregates. Find and FindByEmail return the user
// with role assignments attached and RoleActive resolved against the current
// role table.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	UpdateStatus(ctx context.Context, userID string, status Status) error
	SoftDelete(ctx context.Context, userID string, at time.Time) error
}

// RoleStore manages roles and assignments. Assign must enforce uniqueness of
// (user_id, role_id, scope_value) among permanent assignments and return
// ErrDuplicateAssignment on violation; a partial unique index over rows with
// no expiry is the expected mechanism. Timed assignments expire in place and
// may be superseded by a fresh row; the Roles manager rejects overlaps among
// unexpired ones before inserting.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByCode(ctx context.Context, tenantID, code string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Assign(ctx context.Context, userID string, ur *UserRole) error
	Assignments(ctx context.Context, userID string) ([]UserRole, error)
}

// SessionStore manages session records keyed by id.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
}

// AuditStore appends immutable records. Append failures must surface to the
// caller: no role or permission change is accepted without its audit record.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
}

// AuditSink is the write contract the lifecycle managers depend on. The
// audit package's Recorder implements it on top of AuditStore.
type AuditSink interface {
	Record(ctx context.Context, rec *AuditRecord) error
}
