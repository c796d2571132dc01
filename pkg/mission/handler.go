package mission

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves the Mission REST surface (spec §6).
type Handler struct {
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a mission Handler.
func NewHandler(service *Service, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, audit: auditLog}
}

// Routes mounts the mission endpoints behind capability gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/", h.handleList)
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/by-date/{date}", h.handleByDate)
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/{id}", h.handleGet)
	r.With(auth.RequireCapability(auth.EditPlanning)).Post("/", h.handleCreate)
	r.With(auth.RequireCapability(auth.EditPlanning)).Post("/bulk", h.handleBulkCreate)
	r.With(auth.RequireCapability(auth.EditPlanning)).Put("/{id}", h.handleUpdate)
	r.With(auth.RequireCapability(auth.EditPlanning)).Delete("/{id}", h.handleDelete)
	return r
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseLimitOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	f := Filter{Limit: params.Limit, Offset: params.Offset}
	q := r.URL.Query()
	if v := q.Get("date_debut"); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			f.DateFrom = &d
		}
	}
	if v := q.Get("date_fin"); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			f.DateTo = &d
		}
	}
	if v := q.Get("chauffeur_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.DriverID = &id
		}
	}
	if v := q.Get("voyage_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.RouteID = &id
		}
	}
	if v := q.Get("statut"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewListPage(items, params, total))
}

func (h *Handler) handleByDate(w http.ResponseWriter, r *http.Request) {
	d, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}
	items, err := h.service.ByDate(r.Context(), d)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
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

type missionRequest struct {
	Date        time.Time  `json:"date" validate:"required"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	RouteID     *int64     `json:"route_id"`
	DriverID    *int64     `json:"driver_id"`
	SSTID       *int64     `json:"sst_id"`
	Kind        string     `json:"kind" validate:"required,oneof=delivery pickup"`
	Origin      *string    `json:"origin"`
	Destination *string    `json:"destination"`
	Country     *string    `json:"country"`
	PalletCount int        `json:"pallet_count" validate:"gte=0"`
	WeightKG    *float64   `json:"weight_kg"`
	Tractor     *string    `json:"tractor"`
	Trailer     *string    `json:"trailer"`
	Status      string     `json:"status" validate:"required,oneof=planned in_progress done cancelled"`
	Note        *string    `json:"note"`
	CostSST     *float64   `json:"cost_sst"`
	Revenue     *float64   `json:"revenue"`
}

func toCreateParams(req missionRequest) CreateParams {
	return CreateParams{
		Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime, RouteID: req.RouteID,
		DriverID: req.DriverID, SSTID: req.SSTID, Kind: Kind(req.Kind), Origin: req.Origin,
		Destination: req.Destination, Country: req.Country, PalletCount: req.PalletCount,
		WeightKG: req.WeightKG, Tractor: req.Tractor, Trailer: req.Trailer, Status: Status(req.Status),
		Note: req.Note, CostSST: req.CostSST, Revenue: req.Revenue,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	identity := auth.FromContext(r.Context())
	item, warnings, err := h.service.Create(r.Context(), toCreateParams(req), identity.Username)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "mission", &item.ID, nil, item)
	httpserver.RespondWithWarnings(w, http.StatusCreated, item, warnings)
}

func (h *Handler) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var reqs []missionRequest
	if !httpserver.DecodeAndValidate(w, r, &reqs) {
		return
	}
	params := make([]CreateParams, 0, len(reqs))
	for _, req := range reqs {
		params = append(params, toCreateParams(req))
	}
	identity := auth.FromContext(r.Context())
	items, err := h.service.BulkCreate(r.Context(), params, identity.Username)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	for _, item := range items {
		h.audit.LogFromRequest(r, audit.ActionBulkCreate, "mission", &item.ID, nil, item)
	}
	httpserver.Respond(w, http.StatusCreated, items)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	before, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	var req missionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	identity := auth.FromContext(r.Context())
	item, warnings, err := h.service.Update(r.Context(), id, UpdateParams(toCreateParams(req)), identity.Username)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionUpdate, "mission", &item.ID, before, item)
	httpserver.RespondWithWarnings(w, http.StatusOK, item, warnings)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	before, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "mission", &id, before, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
