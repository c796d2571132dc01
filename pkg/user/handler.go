// Package user implements the admin-managed User REST surface (spec §6
// admin endpoints), wrapping internal/auth.Store and Service rather than
// duplicating user persistence in its own package.
package user

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves /admin/users and the per-user reset-password operation
// (spec §6); deactivating a user also revokes all of that user's sessions.
type Handler struct {
	store   *auth.Store
	service *auth.Service
	audit   *audit.Writer
}

// NewHandler creates a user admin Handler.
func NewHandler(store *auth.Store, service *auth.Service, auditLog *audit.Writer) *Handler {
	return &Handler{store: store, service: service, audit: auditLog}
}

// Routes mounts the admin user endpoints, all gated on manage_rights.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ManageRights)).Get("/", h.handleList)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/", h.handleCreate)
	r.With(auth.RequireCapability(auth.ManageRights)).Put("/{id}", h.handleUpdate)
	r.With(auth.RequireCapability(auth.ManageRights)).Delete("/{id}", h.handleDeactivate)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/{id}/reset-password", h.handleResetPassword)
	return r
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func respondUserNotFound(w http.ResponseWriter) {
	httpserver.RespondAppError(w, apperr.NotFound("user"))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "listing users"))
		return
	}
	httpserver.Respond(w, http.StatusOK, users)
}

type createRequest struct {
	Username      string  `json:"username" validate:"required"`
	DisplayName   string  `json:"display_name" validate:"required"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Password      *string `json:"password"`
	RoleName      string  `json:"role_name" validate:"required"`
	IsSystemAdmin bool    `json:"is_system_admin"`
}

// handleCreate creates a user. When the caller omits password, one is
// generated and must_change_password is forced true; when the caller
// supplies a password explicitly, must_change_password is false (spec §9
// Open Question resolution).
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	role, err := h.store.GetRoleByName(r.Context(), req.RoleName)
	if err != nil {
		httpserver.RespondAppError(w, apperr.New(apperr.KindValidation, "unknown role_name"))
		return
	}

	var plain string
	mustChange := false
	if req.Password == nil || *req.Password == "" {
		plain = auth.GenerateTempPassword()
		mustChange = true
	} else {
		if err := auth.ValidatePasswordStrength(*req.Password); err != nil {
			httpserver.RespondAppError(w, apperr.New(apperr.KindValidation, err.Error()))
			return
		}
		plain = *req.Password
	}

	hash, err := auth.HashPassword(plain)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "hashing password"))
		return
	}

	created, err := h.store.CreateUser(r.Context(), auth.CreateUserParams{
		Username:           req.Username,
		DisplayName:        req.DisplayName,
		Email:              req.Email,
		PasswordHash:       hash,
		MustChangePassword: mustChange,
		RoleID:             role.ID,
		IsSystemAdmin:      req.IsSystemAdmin,
	})
	if err != nil {
		httpserver.RespondAppError(w, apperr.Conflict("a user with this username already exists"))
		return
	}

	h.audit.LogFromRequest(r, audit.ActionCreate, "user", &created.ID, nil, created)

	resp := struct {
		auth.User
		TemporaryPassword string `json:"temporary_password,omitempty"`
	}{User: created}
	if mustChange {
		resp.TemporaryPassword = plain
	}
	httpserver.Respond(w, http.StatusCreated, resp)
}

type updateRequest struct {
	DisplayName string  `json:"display_name" validate:"required"`
	Email       *string `json:"email" validate:"omitempty,email"`
	RoleName    string  `json:"role_name" validate:"required"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	before, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		respondUserNotFound(w)
		return
	}
	var req updateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	role, err := h.store.GetRoleByName(r.Context(), req.RoleName)
	if err != nil {
		httpserver.RespondAppError(w, apperr.New(apperr.KindValidation, "unknown role_name"))
		return
	}
	updated, err := h.store.UpdateUser(r.Context(), id, auth.UpdateUserParams{
		DisplayName: req.DisplayName, Email: req.Email, RoleID: role.ID,
	})
	if err != nil {
		respondUserNotFound(w)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionUpdate, "user", &updated.ID, before, updated)
	httpserver.Respond(w, http.StatusOK, updated)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	before, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		respondUserNotFound(w)
		return
	}
	if err := h.store.DeactivateUser(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "deactivating user"))
		return
	}
	if _, err := h.service.ForceDisconnect(r.Context(), before.Username); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDeactivate, "user", &id, before, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	temp, err := h.service.AdminResetPassword(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionPasswordReset, "user", &id, nil, nil)
	httpserver.Respond(w, http.StatusOK, map[string]string{"temp_password": temp})
}
