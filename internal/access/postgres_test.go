package access

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewPGStore(db), mock, func() { db.Close() }
}

func TestPGUserFindWithAssignments(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()
	now := time.Now().UTC()

	perms, _ := json.Marshal([]Permission{
		{Section: SectionPrices, Resource: "prices", Actions: []Action{ActionRead}},
	})

	mock.ExpectQuery("select id, tenant_id, email, name, phone, status.*from users where id=\\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "name", "phone", "status",
			"preferences", "direct_permissions", "pwd_salt", "pwd_hash",
			"created_at", "updated_at", "deleted_at",
		}).AddRow("user-1", "tenant-1", "op@fuelgrid.kz", "Operator", nil, "active",
			[]byte(`{}`), []byte(`[]`), "salt", "hash", now, now, nil))

	mock.ExpectQuery("select ur.role_id, ur.role_code.*from user_roles ur.*join roles r").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"role_id", "role_code", "role_name", "scope", "scope_value",
			"permissions", "assigned_at", "assigned_by", "expires_at", "role_active",
		}).AddRow("role-1", "pricing", "Pricing", "global", nil, perms, now, "admin-1", nil, true))

	u, err := store.Users(ctx).Find(ctx, "user-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if u.Email != "op@fuelgrid.kz" || u.Status != StatusActive {
		t.Fatalf("unexpected user: %+v", u)
	}
	if len(u.Roles) != 1 || u.Roles[0].RoleCode != "pricing" || !u.Roles[0].RoleActive {
		t.Fatalf("unexpected assignments: %+v", u.Roles)
	}
	if len(u.Roles[0].Permissions) != 1 {
		t.Fatalf("permissions not decoded: %+v", u.Roles[0].Permissions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserFindNotFound(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()

	mock.ExpectQuery("select id, tenant_id, email.*from users where id=\\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "email", "name", "phone", "status",
			"preferences", "direct_permissions", "pwd_salt", "pwd_hash",
			"created_at", "updated_at", "deleted_at",
		}))

	if _, err := store.Users(ctx).Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRoleCreateUniqueViolation(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()

	mock.ExpectExec("insert into roles").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "roles_tenant_code_uq"})

	role := &Role{TenantID: "tenant-1", Code: "pricing", Name: "Pricing", Scope: ScopeGlobal}
	if err := store.Roles(ctx).Create(ctx, role); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput on duplicate code, got %v", err)
	}
}

func TestPGAssignDuplicate(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()

	mock.ExpectExec("insert into user_roles").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_roles_active_uq"})

	ur := &UserRole{RoleID: "role-1", RoleCode: "pricing", Scope: ScopeGlobal, AssignedAt: time.Now().UTC()}
	if err := store.Roles(ctx).Assign(ctx, "user-1", ur); !errors.Is(err, ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}
}

func TestPGRoleUpdateMissing(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()

	mock.ExpectExec("update roles set").
		WillReturnResult(sqlmock.NewResult(0, 0))

	role := &Role{ID: "missing", Code: "x", Name: "X", Scope: ScopeGlobal, UpdatedAt: time.Now().UTC()}
	if err := store.Roles(ctx).Update(ctx, role); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGSessionRoundTrip(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &Session{
		ID: "sess-1", UserID: "user-1", TenantID: "tenant-1",
		IssuedAt: now, ExpiresAt: now.Add(15 * time.Minute),
		RefreshExpiresAt: now.Add(14 * 24 * time.Hour), IsActive: true,
	}

	mock.ExpectExec("insert into sessions").
		WithArgs(sess.ID, sess.UserID, sess.TenantID, sess.IssuedAt, sess.ExpiresAt, sess.RefreshExpiresAt, sess.IsActive).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.Sessions(ctx).Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectQuery("select id, user_id, tenant_id.*from sessions where id=\\$1").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "tenant_id", "issued_at", "expires_at", "refresh_expires_at", "is_active",
		}).AddRow(sess.ID, sess.UserID, sess.TenantID, sess.IssuedAt, sess.ExpiresAt, sess.RefreshExpiresAt, true))
	got, err := store.Sessions(ctx).Find(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.UserID != "user-1" || !got.IsActive {
		t.Fatalf("unexpected session: %+v", got)
	}

	mock.ExpectExec("update sessions set expires_at").
		WithArgs(sess.ID, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sess.IsActive = false
	if err := store.Sessions(ctx).Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGAuditAppend(t *testing.T) {
	store, mock, closeDB := newMockStore(t)
	defer closeDB()
	ctx := context.Background()

	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "tenant-1", "role.create", "role", "role-1",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "admin-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &AuditRecord{
		TenantID:   "tenant-1",
		Action:     "role.create",
		EntityType: "role",
		EntityID:   "role-1",
		ActorID:    "admin-1",
		OccurredAt: time.Now().UTC(),
	}
	if err := store.Audit(ctx).Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated audit id")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
