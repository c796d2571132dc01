// Package admin implements role management and the session/backup/config
// operator surface that isn't owned by a specific domain package (spec §6
// admin endpoints).
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/config"
	"github.com/freightplan/planningserver/internal/httpserver"
	"github.com/freightplan/planningserver/internal/livesync"
	"github.com/freightplan/planningserver/internal/snapshot"
)

// Handler serves role, session, backup, and config administration (spec §6
// /admin/roles, /admin/sessions, /admin/backups, /admin/config).
type Handler struct {
	authStore   *auth.Store
	authService *auth.Service
	audit       *audit.Writer
	hub         *livesync.Hub
	snapshots   *snapshot.Service
	cfg         *config.Config
}

// NewHandler creates an admin Handler.
func NewHandler(authStore *auth.Store, authService *auth.Service, auditLog *audit.Writer, hub *livesync.Hub, snapshots *snapshot.Service, cfg *config.Config) *Handler {
	return &Handler{authStore: authStore, authService: authService, audit: auditLog, hub: hub, snapshots: snapshots, cfg: cfg}
}

// Routes mounts the role, session, backup, and config administration
// endpoints, all gated on manage_rights.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ManageRights)).Get("/roles", h.handleListRoles)
	r.With(auth.RequireCapability(auth.ManageRights)).Put("/roles/{name}", h.handleUpdateRole)
	r.With(auth.RequireCapability(auth.ManageRights)).Get("/sessions", h.handleListSessions)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/sessions/disconnect/{username}", h.handleDisconnectUser)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/sessions/{sid}/kick", h.handleKickSession)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/sessions/kick-all", h.handleKickAll)
	r.With(auth.RequireCapability(auth.ManageRights)).Get("/backups", h.handleListBackups)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/backups", h.handleCreateBackup)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/backups/restore/{file}", h.handleRestoreBackup)
	r.With(auth.RequireCapability(auth.ManageRights)).Delete("/backups/{file}", h.handleDeleteBackup)
	r.With(auth.RequireCapability(auth.ManageRights)).Post("/backups/cleanup", h.handleCleanupBackups)
	r.With(auth.RequireCapability(auth.ManageRights)).Get("/config", h.handleGetConfig)
	return r
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.authStore.ListRoles(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "listing roles"))
		return
	}
	httpserver.Respond(w, http.StatusOK, roles)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var caps auth.Capabilities
	if err := json.NewDecoder(r.Body).Decode(&caps); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid capability payload")
		return
	}
	role, err := h.authStore.UpdateRoleCapabilities(r.Context(), name, caps)
	if err != nil {
		httpserver.RespondAppError(w, apperr.NotFound("role"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionUpdate, "role", &role.ID, nil, role)
	httpserver.Respond(w, http.StatusOK, role)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.authStore.ListActiveSessions(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "listing sessions"))
		return
	}
	httpserver.Respond(w, http.StatusOK, sessions)
}

// handleDisconnectUser revokes every session for a username (spec §6
// force disconnect; §8 scenario 6: channels close within 1s, old tokens
// 401 immediately after).
func (h *Handler) handleDisconnectUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	revoked, err := h.authService.ForceDisconnect(r.Context(), username)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.hub.DetachUser(username)
	h.audit.LogFromRequest(r, audit.ActionForceDisconnect, "user", nil, nil, map[string]any{"username": username, "sessions_revoked": revoked})
	httpserver.Respond(w, http.StatusOK, map[string]int64{"sessions_revoked": revoked})
}

// handleKickSession revokes a single session by id (spec §6
// POST /admin/sessions/{sid}/kick).
func (h *Handler) handleKickSession(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	if err := h.authStore.RevokeSession(r.Context(), sid); err != nil {
		httpserver.RespondAppError(w, apperr.NotFound("session"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionSessionKick, "session", nil, nil, map[string]any{"session_id": sid})
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) handleKickAll(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.authStore.ListActiveSessions(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "listing sessions"))
		return
	}
	seen := make(map[int64]bool)
	var revoked int64
	for _, s := range sessions {
		if seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		n, err := h.authStore.RevokeAllForUser(r.Context(), s.UserID)
		if err == nil {
			revoked += n
		}
	}
	h.hub.Broadcast(livesync.Envelope{Type: livesync.EnvelopeRefreshRequired, Data: livesync.RefreshRequiredData{Entity: "session"}})
	h.audit.LogFromRequest(r, audit.ActionSessionKickAll, "session", nil, nil, map[string]any{"sessions_revoked": revoked})
	httpserver.Respond(w, http.StatusOK, map[string]int64{"sessions_revoked": revoked})
}

func (h *Handler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.snapshots.List(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "listing backups"))
		return
	}
	httpserver.Respond(w, http.StatusOK, backups)
}

func (h *Handler) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	meta, err := h.snapshots.Create(r.Context(), description)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "creating backup"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionBackupCreate, "backup", nil, nil, meta)
	httpserver.Respond(w, http.StatusCreated, map[string]any{"backup_file": meta.Filename, "metadata": meta})
}

func (h *Handler) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	safetyFile, err := h.snapshots.Restore(r.Context(), file)
	if err != nil {
		if err == snapshot.ErrNotFound {
			httpserver.RespondAppError(w, apperr.NotFound("backup"))
			return
		}
		httpserver.RespondAppError(w, apperr.Wrap(err, "restoring backup"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionBackupRestore, "backup", nil, nil, map[string]string{"file": file, "safety_file": safetyFile})
	httpserver.Respond(w, http.StatusOK, map[string]string{"restored_file": file, "safety_file": safetyFile})
}

func (h *Handler) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if err := h.snapshots.Delete(r.Context(), file); err != nil {
		if err == snapshot.ErrNotFound {
			httpserver.RespondAppError(w, apperr.NotFound("backup"))
			return
		}
		httpserver.RespondAppError(w, apperr.Wrap(err, "deleting backup"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "backup", nil, nil, map[string]string{"file": file})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCleanupBackups(w http.ResponseWriter, r *http.Request) {
	retention := h.cfg.BackupRetentionDays
	if v := r.URL.Query().Get("retention_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retention = n
		}
	}
	deleted, err := h.snapshots.Cleanup(r.Context(), retention)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "cleaning up backups"))
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "backup", nil, nil, map[string]int{"deleted": deleted})
	httpserver.Respond(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// handleGetConfig reports non-secret runtime configuration (spec §6
// GET /admin/config) — no secrets (session secret, database URL) included.
func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"mode":                  h.cfg.Mode,
		"log_level":             h.cfg.LogLevel,
		"session_token_ttl":     h.cfg.SessionTokenTTL.String(),
		"lockout_threshold":     h.cfg.LockoutThreshold,
		"lockout_duration":      h.cfg.LockoutDuration.String(),
		"backup_dir":            h.cfg.BackupDir,
		"backup_retention_days": h.cfg.BackupRetentionDays,
		"auto_backup_hour":      h.cfg.AutoBackupHour,
		"scheduler_tick":        h.cfg.SchedulerTick.String(),
		"session_sweep_every":   h.cfg.SessionSweepEvery.String(),
	})
}
