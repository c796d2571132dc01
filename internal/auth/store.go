package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Store persists users, roles, and sessions — the tables AuthCore owns
// (spec §3: Role, User, Session). Grounded on the teacher's pkg/incident/store.go
// raw-SQL shape (see DESIGN.md).
type Store struct {
	db store.DBTX
}

// NewStore creates an auth Store backed by the given database connection or
// transaction.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

// --- Roles ---

// Role is a named permission bundle (spec §3).
type Role struct {
	ID           int64
	Name         string
	Description  string
	Capabilities Capabilities
}

const roleColumns = `id, name, description, capabilities`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	var raw []byte
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &raw); err != nil {
		return Role{}, err
	}
	r.Capabilities = make(Capabilities)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Capabilities); err != nil {
			return Role{}, fmt.Errorf("decoding role capabilities: %w", err)
		}
	}
	return r, nil
}

// GetRoleByName returns a role by its unique name.
func (s *Store) GetRoleByName(ctx context.Context, name string) (Role, error) {
	row := s.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

// GetRoleByID returns a role by id.
func (s *Store) GetRoleByID(ctx context.Context, id int64) (Role, error) {
	row := s.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// ListRoles returns every role, ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeedRolesIfEmpty inserts the closed set of seed roles (spec §3/§6) if the
// roles table is empty. It is idempotent and safe to call on every start.
func (s *Store) SeedRolesIfEmpty(ctx context.Context) error {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM roles`).Scan(&count); err != nil {
		return fmt.Errorf("counting roles: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, seed := range SeedRoles() {
		raw, err := json.Marshal(seed.Capabilities)
		if err != nil {
			return fmt.Errorf("encoding capabilities for role %s: %w", seed.Name, err)
		}
		_, err = s.db.Exec(ctx,
			`INSERT INTO roles (name, description, capabilities) VALUES ($1, $2, $3)`,
			seed.Name, seed.Description, raw,
		)
		if err != nil {
			return fmt.Errorf("inserting seed role %s: %w", seed.Name, err)
		}
	}
	return nil
}

// UpdateRoleCapabilities overwrites the capability vector for a role
// (requires capability manage_rights, enforced by the handler).
func (s *Store) UpdateRoleCapabilities(ctx context.Context, name string, caps Capabilities) (Role, error) {
	raw, err := json.Marshal(caps)
	if err != nil {
		return Role{}, fmt.Errorf("encoding capabilities: %w", err)
	}
	row := s.db.QueryRow(ctx,
		`UPDATE roles SET capabilities = $2 WHERE name = $1 RETURNING `+roleColumns,
		name, raw,
	)
	return scanRole(row)
}

// --- Users ---

// User mirrors spec §3's User entity. PasswordHash is never serialized.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	DisplayName        string     `json:"display_name"`
	Email              *string    `json:"email,omitempty"`
	PasswordHash       string     `json:"-"`
	MustChangePassword bool       `json:"must_change_password"`
	FailedAttempts     int        `json:"-"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
	IsActive           bool       `json:"is_active"`
	IsSystemAdmin      bool       `json:"is_system_admin"`
	RoleID             int64      `json:"role_id"`
	RoleName           string     `json:"role"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

const userColumns = `u.id, u.username, u.display_name, u.email, u.password_hash,
	u.must_change_password, u.failed_attempts, u.locked_until, u.is_active,
	u.is_system_admin, u.role_id, r.name, u.last_login, u.created_at, u.updated_at`

const userFromJoin = `FROM users u JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.PasswordHash,
		&u.MustChangePassword, &u.FailedAttempts, &u.LockedUntil, &u.IsActive,
		&u.IsSystemAdmin, &u.RoleID, &u.RoleName, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// NormalizeUsername upper-cases and strips any "DOMAIN\" prefix, matching
// the legacy client's username convention (spec §3 User.username).
func NormalizeUsername(raw string) string {
	u := strings.ToUpper(strings.TrimSpace(raw))
	if idx := strings.LastIndex(u, "\\"); idx >= 0 {
		u = u[idx+1:]
	}
	return u
}

// GetUserByUsername looks up a user by normalized username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` `+userFromJoin+` WHERE u.username = $1`, NormalizeUsername(username))
	return scanUser(row)
}

// GetUserByID looks up a user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` `+userFromJoin+` WHERE u.id = $1`, id)
	return scanUser(row)
}

// CountUsers returns the number of users (used to decide whether to bootstrap
// the first admin, spec §4.2).
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

// ListUsers returns every user, ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` `+userFromJoin+` ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUserParams holds fields for creating a new user.
type CreateUserParams struct {
	Username           string
	DisplayName        string
	Email               *string
	PasswordHash        string
	MustChangePassword  bool
	RoleID              int64
	IsSystemAdmin       bool
}

// CreateUser inserts a new user. Duplicate usernames return a pgx unique
// violation the handler maps to apperr.Conflict.
func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (username, display_name, email, password_hash, must_change_password, role_id, is_system_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id`,
		NormalizeUsername(p.Username), p.DisplayName, p.Email, p.PasswordHash,
		p.MustChangePassword, p.RoleID, p.IsSystemAdmin,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return User{}, err
	}
	return s.GetUserByID(ctx, id)
}

// UpdateUserParams holds fields for updating an existing user's profile.
type UpdateUserParams struct {
	DisplayName string
	Email       *string
	RoleID      int64
}

// UpdateUser updates profile/role fields for an existing user.
func (s *Store) UpdateUser(ctx context.Context, id int64, p UpdateUserParams) (User, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET display_name = $2, email = $3, role_id = $4, updated_at = now()
		WHERE id = $1`,
		id, p.DisplayName, p.Email, p.RoleID,
	)
	if err != nil {
		return User{}, fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, pgx.ErrNoRows
	}
	return s.GetUserByID(ctx, id)
}

// DeactivateUser soft-deletes a user (is_active=false); existing sessions
// are not implicitly revoked here — callers invoke RevokeAllForUser too.
func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetPasswordHash overwrites a user's password hash and sets
// must_change_password to mustChange.
func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string, mustChange bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, must_change_password = $3, updated_at = now() WHERE id = $1`,
		id, hash, mustChange,
	)
	return err
}

// RecordFailedLogin increments failed_attempts and, once the threshold is
// reached, sets locked_until (spec §4.2 login algorithm step 5).
func (s *Store) RecordFailedLogin(ctx context.Context, id int64, threshold int, lockDuration time.Duration) (failedAttempts int, lockedUntil *time.Time, err error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET failed_attempts = failed_attempts + 1 WHERE id = $1 RETURNING failed_attempts`,
		id,
	)
	if err = row.Scan(&failedAttempts); err != nil {
		return 0, nil, fmt.Errorf("incrementing failed attempts: %w", err)
	}

	if failedAttempts >= threshold {
		until := time.Now().Add(lockDuration)
		if _, err = s.db.Exec(ctx, `UPDATE users SET locked_until = $2 WHERE id = $1`, id, until); err != nil {
			return failedAttempts, nil, fmt.Errorf("setting lockout: %w", err)
		}
		lockedUntil = &until
	}
	return failedAttempts, lockedUntil, nil
}

// ResetLoginFailures clears failed_attempts and locked_until after a
// successful login, and bumps last_login.
func (s *Store) ResetLoginFailures(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login = now() WHERE id = $1`,
		id,
	)
	return err
}

// ClearLockout clears a lockout and resets failed_attempts to zero (used by
// admin reset-password, spec §4.2 "Admin reset").
func (s *Store) ClearLockout(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET failed_attempts = 0, locked_until = NULL WHERE id = $1`, id)
	return err
}

// --- Sessions ---

// Session mirrors spec §3's Session entity.
type Session struct {
	ID             string
	UserID         int64
	ClientIP       *string
	ClientHostname *string
	UserAgent      *string
	CreatedAt      time.Time
	LastActivity   time.Time
	ExpiresAt      time.Time
	IsActive       bool
}

// NewSessionID generates an opaque random session id with >=256 bits of
// entropy (spec §3 Session invariant).
func NewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

const sessionColumns = `id, user_id, client_ip, client_hostname, user_agent, created_at, last_activity, expires_at, is_active`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.ClientIP, &s.ClientHostname, &s.UserAgent,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt, &s.IsActive)
	return s, err
}

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, userID int64, clientIP, clientHostname, userAgent *string, ttl time.Duration) (Session, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, client_ip, client_hostname, user_agent, created_at, last_activity, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, true)
		RETURNING `+sessionColumns,
		NewSessionID(), userID, clientIP, clientHostname, userAgent, now, now.Add(ttl),
	)
	return scanSession(row)
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// TouchSession bumps last_activity to now (spec §4.2 "On success, bump last_activity").
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET last_activity = now() WHERE id = $1 AND is_active`, id)
	return err
}

// RevokeSession marks a single session inactive (logout, kick).
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE sessions SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RevokeAllForUser invalidates every active session for a user (spec §4.2
// "Force disconnect"). Returns the number of sessions revoked.
func (s *Store) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE sessions SET is_active = false WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SweepExpired marks every session whose expires_at has passed inactive
// (Scheduler's periodic session sweep, spec §4.6). Returns the count swept.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE sessions SET is_active = false WHERE is_active AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActiveSessions returns every currently active session, newest first
// (admin "GET /admin/sessions").
func (s *Store) ListActiveSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
