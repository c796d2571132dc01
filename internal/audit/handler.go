package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves the audit log query surface for the operational dashboard
// (spec §4.4), gated on the manage_rights capability by the caller's router
// wiring.
type Handler struct {
	store *Store
}

// NewHandler creates an audit log Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns a chi.Router with audit log routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseLimitOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	f := Filter{
		UsernamePrefix: r.URL.Query().Get("username"),
		Action:         Action(r.URL.Query().Get("action")),
		Limit:          params.Limit,
		Offset:         params.Offset,
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}

	records, total, err := h.store.ListFiltered(r.Context(), f)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewListPage(records, params, total))
}
