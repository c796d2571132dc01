package route

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves the Route REST surface (spec §6).
type Handler struct {
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a route Handler.
func NewHandler(service *Service, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, audit: auditLog}
}

// Routes mounts the route endpoints behind capability gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/", h.handleList)
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/{id}", h.handleGet)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Post("/", h.handleCreate)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Put("/{id}", h.handleUpdate)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Delete("/{id}", h.handleDeactivate)
	return r
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseLimitOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	f := Filter{
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
		Limit:      params.Limit,
		Offset:     params.Offset,
	}
	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewListPage(items, params, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, item)
}

type createRequest struct {
	Code             string   `json:"code" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	Description      *string  `json:"description"`
	Origin           string   `json:"origin" validate:"required"`
	Destination      string   `json:"destination" validate:"required"`
	Country          *string  `json:"country"`
	DefaultStartTime *string  `json:"default_start_time"`
	DefaultEndTime   *string  `json:"default_end_time"`
	OperatingDays    []int32  `json:"operating_days"`
	AvgPalletCount   *float64 `json:"avg_pallet_count"`
	Color            *string  `json:"color"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.service.Create(r.Context(), CreateParams{
		Code: req.Code, Name: req.Name, Description: req.Description,
		Origin: req.Origin, Destination: req.Destination, Country: req.Country,
		DefaultStartTime: req.DefaultStartTime, DefaultEndTime: req.DefaultEndTime,
		OperatingDays: req.OperatingDays, AvgPalletCount: req.AvgPalletCount, Color: req.Color,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	h.audit.LogFromRequest(r, audit.ActionCreate, "route", &item.ID, nil, item)
	httpserver.Respond(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	before, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.service.Update(r.Context(), id, UpdateParams{
		Name: req.Name, Description: req.Description, Origin: req.Origin, Destination: req.Destination,
		Country: req.Country, DefaultStartTime: req.DefaultStartTime, DefaultEndTime: req.DefaultEndTime,
		OperatingDays: req.OperatingDays, AvgPalletCount: req.AvgPalletCount, Color: req.Color,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	h.audit.LogFromRequest(r, audit.ActionUpdate, "route", &item.ID, before, item)
	httpserver.Respond(w, http.StatusOK, item)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	before, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	h.audit.LogFromRequest(r, audit.ActionDeactivate, "route", &id, before, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
