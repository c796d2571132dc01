// Package authapi serves the public /auth REST surface (spec §6
// Authentication), sitting above internal/auth and internal/audit so
// neither of those lower-level packages needs to import the other's
// HTTP-facing concerns.
package authapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves /auth/login, /logout, /refresh, /change-password, /me.
type Handler struct {
	service     *auth.Service
	rateLimiter *auth.RateLimiter
	audit       *audit.Writer
}

// NewHandler creates an auth Handler.
func NewHandler(service *auth.Service, rateLimiter *auth.RateLimiter, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, rateLimiter: rateLimiter, audit: auditLog}
}

// Routes mounts the /auth endpoints. /login is public; the rest require a
// valid bearer token, resolved into the request context by auth.Middleware
// applied here to those routes only (the /auth mount sits outside the
// /api/v1 sub-router and its middleware) — RequireAuth then rejects a
// caller with no resolved identity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	authed := r.With(auth.Middleware(h.service, slog.Default()), auth.RequireAuth)
	authed.Post("/logout", h.handleLogout)
	authed.Post("/refresh", h.handleRefresh)
	authed.Post("/change-password", h.handleChangePassword)
	authed.Get("/me", h.handleMe)
	return r
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, ok := strings.Cut(r.RemoteAddr, ":")
	if !ok {
		return r.RemoteAddr
	}
	return host
}

type loginRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Hostname *string `json:"hostname"`
}

// handleLogin implements spec §6 POST /auth/login, throttled per-IP by
// RateLimiter (spec §4.2's lockout is per-account; the IP throttle is an
// additional ambient defense against distributed credential stuffing).
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	ip := clientIP(r)
	result, err := h.rateLimiter.Check(r.Context(), ip)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "checking rate limit"))
		return
	}
	if !result.Allowed {
		httpserver.RespondAppError(w, &apperr.Error{Kind: apperr.KindLocked, Message: "too many login attempts from this address", RetryIn: result.RetryAt.Format(time.RFC3339)})
		return
	}

	ua := r.UserAgent()
	loginResult, err := h.service.Login(r.Context(), req.Username, req.Password, &ip, req.Hostname, &ua)
	if err != nil {
		_ = h.rateLimiter.Record(r.Context(), ip)
		h.audit.Log(audit.Entry{Username: req.Username, Action: audit.ActionLoginFailed, ClientIP: &ip})
		httpserver.RespondAppError(w, err)
		return
	}

	_ = h.rateLimiter.Reset(r.Context(), ip)
	h.audit.Log(audit.Entry{Username: loginResult.User.Username, Action: audit.ActionLogin, ClientIP: &ip})
	httpserver.Respond(w, http.StatusOK, loginResult)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if err := h.service.Logout(r.Context(), identity.SessionID); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionLogout, "session", nil, nil, nil)
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	result, err := h.service.Refresh(r.Context(), identity)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	identity := auth.FromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionPasswordChanged, "user", &identity.UserID, nil, nil)
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"user_id":         identity.UserID,
		"username":        identity.Username,
		"display_name":    identity.DisplayName,
		"role":            identity.Role,
		"is_system_admin": identity.IsSystemAdmin,
		"permissions":     identity.Permissions,
	})
}
