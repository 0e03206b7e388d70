package access

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"fuelgrid.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

const pgUniqueViolation = "23505"

// PGStore implements Store using PostgreSQL. Uniqueness of (tenant_id, email),
// (tenant_id, code) and active (user_id, role_id, scope_value) triples is
// enforced by indexes, so concurrent duplicate writes lose at the database
// rather than in application code.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore       { return &userStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore       { return &roleStore{db: s.db} }
func (s *PGStore) Sessions(context.Context) SessionStore { return &sessionStore{db: s.db} }
func (s *PGStore) Audit(context.Context) AuditStore      { return &auditStore{db: s.db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	prefs, _ := json.Marshal(u.Preferences)
	direct, _ := json.Marshal(u.DirectPermissions)
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, tenant_id, email, name, phone, status, preferences, direct_permissions, pwd_salt, pwd_hash)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.TenantID, u.Email, u.Name, u.Phone, u.Status, prefs, direct, u.PwdSalt, u.PwdHash,
	)
	if isUniqueViolation(err) {
		return ErrInvalidInput
	}
	return err
}

const userColumns = `id, tenant_id, email, name, phone, status, preferences, direct_permissions, pwd_salt, pwd_hash, created_at, updated_at, deleted_at`

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := attachAssignments(ctx, s.db, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userStore) FindByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and email=$2`, tenantID, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := attachAssignments(ctx, s.db, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userStore) ListByTenant(ctx context.Context, tenantID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 and deleted_at is null order by created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) UpdateStatus(ctx context.Context, userID string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status=$2, updated_at=now() where id=$1 and deleted_at is null`, userID, status)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *userStore) SoftDelete(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set deleted_at=$2, updated_at=$2 where id=$1 and deleted_at is null`, userID, at)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u             User
		phone         sql.NullString
		prefs, direct []byte
		deletedAt     sql.NullTime
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &phone, &u.Status,
		&prefs, &direct, &u.PwdSalt, &u.PwdHash, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	_ = json.Unmarshal(prefs, &u.Preferences)
	_ = json.Unmarshal(direct, &u.DirectPermissions)
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

// attachAssignments loads the user's role assignments with RoleActive
// resolved against the live role row.
func attachAssignments(ctx context.Context, db *sql.DB, u *User) error {
	rows, err := db.QueryContext(ctx, `
		select ur.role_id, ur.role_code, ur.role_name, ur.scope, ur.scope_value,
		       ur.permissions, ur.assigned_at, ur.assigned_by, ur.expires_at,
		       (r.is_active and r.deleted_at is null) as role_active
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id=$1
		order by ur.assigned_at`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		ur, err := scanUserRole(rows)
		if err != nil {
			return err
		}
		u.Roles = append(u.Roles, *ur)
	}
	return rows.Err()
}

func scanUserRole(row rowScanner) (*UserRole, error) {
	var (
		ur         UserRole
		scopeValue sql.NullString
		assignedBy sql.NullString
		perms      []byte
		expiresAt  sql.NullTime
	)
	if err := row.Scan(&ur.RoleID, &ur.RoleCode, &ur.RoleName, &ur.Scope, &scopeValue,
		&perms, &ur.AssignedAt, &assignedBy, &expiresAt, &ur.RoleActive); err != nil {
		return nil, err
	}
	ur.ScopeValue = scopeValue.String
	ur.AssignedBy = assignedBy.String
	_ = json.Unmarshal(perms, &ur.Permissions)
	if expiresAt.Valid {
		t := expiresAt.Time
		ur.ExpiresAt = &t
	}
	return &ur, nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

const roleColumns = `id, tenant_id, code, name, description, permissions, scope, scope_values, is_system, is_active, created_at, updated_at, deleted_at`

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	perms, _ := json.Marshal(role.Permissions)
	scopeValues, _ := json.Marshal(role.ScopeValues)
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, tenant_id, code, name, description, permissions, scope, scope_values, is_system, is_active)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		role.ID, role.TenantID, role.Code, role.Name, role.Description, perms,
		role.Scope, scopeValues, role.IsSystem, role.IsActive,
	)
	if isUniqueViolation(err) {
		return ErrInvalidInput
	}
	return err
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id=$1`, id)
	return scanRole(row)
}

func (s *roleStore) FindByCode(ctx context.Context, tenantID, code string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where tenant_id=$1 and code=$2 and deleted_at is null`, tenantID, code)
	return scanRole(row)
}

func (s *roleStore) ListByTenant(ctx context.Context, tenantID string) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from roles where tenant_id=$1 and deleted_at is null order by created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Update(ctx context.Context, role *Role) error {
	perms, _ := json.Marshal(role.Permissions)
	scopeValues, _ := json.Marshal(role.ScopeValues)
	res, err := s.db.ExecContext(ctx,
		`update roles set code=$2, name=$3, description=$4, permissions=$5, scope=$6,
		        scope_values=$7, is_system=$8, is_active=$9, updated_at=$10, deleted_at=$11
		 where id=$1`,
		role.ID, role.Code, role.Name, role.Description, perms, role.Scope,
		scopeValues, role.IsSystem, role.IsActive, role.UpdatedAt, role.DeletedAt,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *roleStore) Assign(ctx context.Context, userID string, ur *UserRole) error {
	perms, _ := json.Marshal(ur.Permissions)
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id, role_code, role_name, scope, scope_value, permissions, assigned_at, assigned_by, expires_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		userID, ur.RoleID, ur.RoleCode, ur.RoleName, ur.Scope, ur.ScopeValue,
		perms, ur.AssignedAt, ur.AssignedBy, ur.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateAssignment
	}
	return err
}

func (s *roleStore) Assignments(ctx context.Context, userID string) ([]UserRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		select ur.role_id, ur.role_code, ur.role_name, ur.scope, ur.scope_value,
		       ur.permissions, ur.assigned_at, ur.assigned_by, ur.expires_at,
		       (r.is_active and r.deleted_at is null) as role_active
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id=$1
		order by ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UserRole
	for rows.Next() {
		ur, err := scanUserRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ur)
	}
	return result, rows.Err()
}

func scanRole(row rowScanner) (*Role, error) {
	var (
		role               Role
		description        sql.NullString
		perms, scopeValues []byte
		deletedAt          sql.NullTime
	)
	err := row.Scan(&role.ID, &role.TenantID, &role.Code, &role.Name, &description,
		&perms, &role.Scope, &scopeValues, &role.IsSystem, &role.IsActive,
		&role.CreatedAt, &role.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	role.Description = description.String
	_ = json.Unmarshal(perms, &role.Permissions)
	_ = json.Unmarshal(scopeValues, &role.ScopeValues)
	if deletedAt.Valid {
		t := deletedAt.Time
		role.DeletedAt = &t
	}
	return &role, nil
}

// Session store ------------------------------------------------------------

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, tenant_id, issued_at, expires_at, refresh_expires_at, is_active)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		sess.ID, sess.UserID, sess.TenantID, sess.IssuedAt, sess.ExpiresAt, sess.RefreshExpiresAt, sess.IsActive,
	)
	return err
}

func (s *sessionStore) Find(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, tenant_id, issued_at, expires_at, refresh_expires_at, is_active from sessions where id=$1`, id)
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TenantID, &sess.IssuedAt,
		&sess.ExpiresAt, &sess.RefreshExpiresAt, &sess.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Update(ctx context.Context, sess *Session) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set expires_at=$2, is_active=$3 where id=$1`,
		sess.ID, sess.ExpiresAt, sess.IsActive,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Audit store --------------------------------------------------------------

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	oldVals, _ := json.Marshal(rec.OldValues)
	newVals, _ := json.Marshal(rec.NewValues)
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, tenant_id, action, entity_type, entity_id, old_values, new_values, actor_id, network_id, occurred_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.TenantID, rec.Action, rec.EntityType, rec.EntityID,
		oldVals, newVals, rec.ActorID, rec.NetworkID, rec.OccurredAt,
	)
	return err
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
