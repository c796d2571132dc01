package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/telemetry"
)

// Service implements spec §4.2 AuthCore: password policy, lockout, session
// issuance/validation, and permission resolution.
type Service struct {
	store     *Store
	sessions  *SessionManager
	logger    *slog.Logger
	tokenTTL  time.Duration
	lockoutN  int
	lockoutTTL time.Duration
}

// Config bundles AuthCore's tunables (spec §5: "both are configurable").
type Config struct {
	TokenTTL         time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
}

// NewService creates an AuthCore service.
func NewService(store *Store, sessions *SessionManager, logger *slog.Logger, cfg Config) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 8 * time.Hour
	}
	if cfg.LockoutThreshold == 0 {
		cfg.LockoutThreshold = 5
	}
	if cfg.LockoutDuration == 0 {
		cfg.LockoutDuration = 15 * time.Minute
	}
	return &Service{
		store:      store,
		sessions:   sessions,
		logger:     logger,
		tokenTTL:   cfg.TokenTTL,
		lockoutN:   cfg.LockoutThreshold,
		lockoutTTL: cfg.LockoutDuration,
	}
}

// LoginResult is returned on a successful login (spec §6 POST /auth/login
// response shape).
type LoginResult struct {
	AccessToken        string      `json:"access_token"`
	TokenType          string      `json:"token_type"`
	ExpiresAt          time.Time   `json:"expires_at"`
	MustChangePassword bool        `json:"must_change_password"`
	User               User        `json:"user"`
	Permissions        Capabilities `json:"permissions"`
}

// Login implements spec §4.2's login algorithm exactly.
func (s *Service) Login(ctx context.Context, username, password string, clientIP, clientHostname, userAgent *string) (*LoginResult, error) {
	normalized := NormalizeUsername(username)

	user, err := s.store.GetUserByUsername(ctx, normalized)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("unknown_user").Inc()
		if err == pgx.ErrNoRows {
			return nil, apperr.New(apperr.KindAuthFailed, "invalid username or password")
		}
		return nil, apperr.Wrap(err, "looking up user")
	}

	if !user.IsActive {
		telemetry.LoginAttemptsTotal.WithLabelValues("disabled").Inc()
		return nil, apperr.New(apperr.KindAuthFailed, "account disabled")
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		telemetry.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		remaining := int(time.Until(*user.LockedUntil).Minutes()) + 1
		return nil, &apperr.Error{
			Kind:    apperr.KindLocked,
			Message: fmt.Sprintf("compte verrouillé; réessayez dans %d minutes", remaining),
			RetryIn: user.LockedUntil.Format(time.RFC3339),
		}
	}

	if !VerifyPassword(user.PasswordHash, password) {
		telemetry.LoginAttemptsTotal.WithLabelValues("bad_password").Inc()
		failedAttempts, _, recErr := s.store.RecordFailedLogin(ctx, user.ID, s.lockoutN, s.lockoutTTL)
		if recErr != nil {
			s.logger.Error("recording failed login", "error", recErr, "username", normalized)
		}
		remaining := s.lockoutN - failedAttempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, apperr.New(apperr.KindAuthFailed, fmt.Sprintf("invalid username or password (%d tentative(s) restante(s))", remaining))
	}

	if err := s.store.ResetLoginFailures(ctx, user.ID); err != nil {
		s.logger.Error("resetting login failures", "error", err, "username", normalized)
	}

	sess, err := s.store.CreateSession(ctx, user.ID, clientIP, clientHostname, userAgent, s.tokenTTL)
	if err != nil {
		return nil, apperr.Wrap(err, "creating session")
	}

	token, err := s.sessions.IssueToken(user.Username, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, apperr.Wrap(err, "issuing token")
	}

	perms, err := s.effectivePermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return &LoginResult{
		AccessToken:        token,
		TokenType:          "bearer",
		ExpiresAt:          sess.ExpiresAt,
		MustChangePassword: user.MustChangePassword,
		User:               user,
		Permissions:        perms,
	}, nil
}

// Authenticate validates a bearer token end-to-end: JWT signature/exp, then
// the session validity invariant (spec §3: is_active ∧ now < expires_at ∧
// user.is_active), bumping last_activity on success.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*Identity, error) {
	claims, err := s.sessions.ValidateToken(rawToken)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthFailed, "invalid or expired token")
	}

	sess, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthFailed, "session not found")
	}
	if !sess.IsActive || time.Now().After(sess.ExpiresAt) {
		return nil, apperr.New(apperr.KindAuthFailed, "session expired or revoked")
	}

	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.New(apperr.KindAuthFailed, "user not found")
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.KindAuthFailed, "account disabled")
	}

	if err := s.store.TouchSession(ctx, sess.ID); err != nil {
		s.logger.Warn("touching session", "error", err, "session_id", sess.ID)
	}

	perms, err := s.effectivePermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:        user.ID,
		Username:      user.Username,
		DisplayName:   user.DisplayName,
		Role:          user.RoleName,
		IsSystemAdmin: user.IsSystemAdmin,
		SessionID:     sess.ID,
		Permissions:   perms,
	}, nil
}

// effectivePermissions resolves the capability vector for a user (spec
// §4.2 Permission resolution): is_system_admin bypasses to the full set.
func (s *Service) effectivePermissions(ctx context.Context, user User) (Capabilities, error) {
	if user.IsSystemAdmin {
		return Full(), nil
	}
	role, err := s.store.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return nil, apperr.Wrap(err, "resolving role")
	}
	return role.Capabilities, nil
}

// Logout revokes a single session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.RevokeSession(ctx, sessionID); err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return apperr.Wrap(err, "revoking session")
	}
	return nil
}

// Refresh issues a new token for the caller's session and revokes the
// previous one (spec §6 "issue-new-invalidate-old").
func (s *Service) Refresh(ctx context.Context, id *Identity) (*LoginResult, error) {
	old := id.SessionID
	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "looking up user")
	}

	sess, err := s.store.CreateSession(ctx, user.ID, nil, nil, nil, s.tokenTTL)
	if err != nil {
		return nil, apperr.Wrap(err, "creating session")
	}
	token, err := s.sessions.IssueToken(user.Username, sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, apperr.Wrap(err, "issuing token")
	}
	if err := s.store.RevokeSession(ctx, old); err != nil && err != pgx.ErrNoRows {
		s.logger.Warn("revoking previous session on refresh", "error", err)
	}

	perms, err := s.effectivePermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   sess.ExpiresAt,
		User:        user,
		Permissions: perms,
	}, nil
}

// ChangePassword verifies the current password, enforces strength, refuses
// reuse, and clears must_change_password (spec §4.2 "Change password").
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return apperr.Wrap(err, "looking up user")
	}

	if !VerifyPassword(user.PasswordHash, current) {
		return apperr.New(apperr.KindAuthFailed, "current password is incorrect")
	}
	if current == next {
		return apperr.New(apperr.KindValidation, "new password must be different from the current password")
	}
	if err := ValidatePasswordStrength(next); err != nil {
		return apperr.New(apperr.KindValidation, err.Error())
	}

	hash, err := HashPassword(next)
	if err != nil {
		return apperr.Wrap(err, "hashing password")
	}
	if err := s.store.SetPasswordHash(ctx, userID, hash, false); err != nil {
		return apperr.Wrap(err, "updating password")
	}
	return nil
}

// AdminResetPassword generates a new temporary password and forces a change
// on next login (spec §4.2 "Admin reset").
func (s *Service) AdminResetPassword(ctx context.Context, userID int64) (string, error) {
	temp := GenerateTempPassword()
	hash, err := HashPassword(temp)
	if err != nil {
		return "", apperr.Wrap(err, "hashing password")
	}
	if err := s.store.SetPasswordHash(ctx, userID, hash, true); err != nil {
		return "", apperr.Wrap(err, "updating password")
	}
	if err := s.store.ClearLockout(ctx, userID); err != nil {
		return "", apperr.Wrap(err, "clearing lockout")
	}
	return temp, nil
}

// ForceDisconnect invalidates every active session for a user by username
// (spec §4.2 "Force disconnect"). Returns the number of sessions revoked.
func (s *Service) ForceDisconnect(ctx context.Context, username string) (int64, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, apperr.NotFound("user")
	}
	return s.store.RevokeAllForUser(ctx, user.ID)
}

// SweepExpiredSessions marks expired sessions inactive (Scheduler task).
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.SweepExpired(ctx)
}

// BootstrapAdmin creates the first system-admin user if none exists, with a
// generated temporary password printed once to the operator log (spec
// §4.2). Returns true if a user was created.
func (s *Service) BootstrapAdmin(ctx context.Context) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, apperr.Wrap(err, "counting users")
	}
	if count > 0 {
		return false, nil
	}

	if err := s.store.SeedRolesIfEmpty(ctx); err != nil {
		return false, apperr.Wrap(err, "seeding roles")
	}
	adminRole, err := s.store.GetRoleByName(ctx, "admin")
	if err != nil {
		return false, apperr.Wrap(err, "looking up admin role")
	}

	temp := GenerateTempPassword()
	hash, err := HashPassword(temp)
	if err != nil {
		return false, apperr.Wrap(err, "hashing password")
	}

	_, err = s.store.CreateUser(ctx, CreateUserParams{
		Username:           "ADMIN",
		DisplayName:        "Administrator",
		PasswordHash:       hash,
		MustChangePassword: true,
		RoleID:             adminRole.ID,
		IsSystemAdmin:      true,
	})
	if err != nil {
		return false, apperr.Wrap(err, "creating bootstrap admin")
	}

	s.logger.Info("bootstrap admin user created",
		"username", "ADMIN",
		"temporary_password", temp,
		"note", "change this password immediately",
	)
	return true, nil
}
