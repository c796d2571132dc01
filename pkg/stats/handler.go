package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
	"github.com/freightplan/planningserver/internal/reqlog"
)

// Handler serves the /stats REST surface (spec §6, §4.8).
type Handler struct {
	store  *Store
	reqlog *reqlog.Store
}

// NewHandler creates a stats Handler.
func NewHandler(store *Store, reqlogStore *reqlog.Store) *Handler {
	return &Handler{store: store, reqlog: reqlogStore}
}

// Routes mounts the stats endpoints, all gated on view_analyse.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewAnalyse)).Get("/dashboard", h.handleDashboard)
	r.With(auth.RequireCapability(auth.ViewAnalyse)).Get("/tables", h.handleTables)
	r.With(auth.RequireCapability(auth.ViewAnalyse)).Get("/activity/users", h.handleUserActivity)
	r.With(auth.RequireCapability(auth.ViewAnalyse)).Get("/api", h.handleAPIStats)
	r.With(auth.RequireCapability(auth.ViewAnalyse)).Get("/users/{username}", h.handleUserStats)
	return r
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.Dashboard(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing dashboard"))
		return
	}
	httpserver.Respond(w, http.StatusOK, d)
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.TableCounts(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "counting tables"))
		return
	}
	httpserver.Respond(w, http.StatusOK, counts)
}

func daysParam(r *http.Request) time.Time {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

func (h *Handler) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.reqlog.ActivityByUser(r.Context(), daysParam(r))
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing user activity"))
		return
	}
	httpserver.Respond(w, http.StatusOK, activity)
}

type apiStatsResponse struct {
	TopPaths           []reqlog.PathStat     `json:"top_paths"`
	StatusDistribution []reqlog.StatusBucket `json:"status_distribution"`
	AvgResponseMS      float64               `json:"avg_response_ms"`
}

func (h *Handler) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	since := daysParam(r)

	topPaths, err := h.reqlog.TopPaths(r.Context(), since, 10)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing top paths"))
		return
	}
	distribution, err := h.reqlog.StatusDistribution(r.Context(), since)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing status distribution"))
		return
	}
	avg, err := h.reqlog.AvgResponseMS(r.Context(), since)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing average response time"))
		return
	}

	httpserver.Respond(w, http.StatusOK, apiStatsResponse{
		TopPaths: topPaths, StatusDistribution: distribution, AvgResponseMS: avg,
	})
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	stats, err := h.store.UserStats(r.Context(), username)
	if err != nil {
		httpserver.RespondAppError(w, apperr.Wrap(err, "computing user stats"))
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}
