package subcontractor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves the Subcontractor and tariff REST surface (spec §6).
type Handler struct {
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a subcontractor Handler.
func NewHandler(service *Service, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, audit: auditLog}
}

// Routes mounts the subcontractor endpoints behind capability gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/", h.handleList)
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/tariffs", h.handleListAllTariffs)
	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/{id}", h.handleGet)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Post("/", h.handleCreate)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Put("/{id}", h.handleUpdate)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Delete("/{id}", h.handleDeactivate)

	r.With(auth.RequireCapability(auth.ViewPlanning)).Get("/{id}/tariffs", h.handleListTariffsBySST)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Post("/{id}/tariffs", h.handleCreateTariff)
	r.With(auth.RequireCapability(auth.ManageVoyages)).Delete("/tariffs/{tariffId}", h.handleDeleteTariff)
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
	f := Filter{ActiveOnly: r.URL.Query().Get("active_only") == "true", Limit: params.Limit, Offset: params.Offset}
	items, total, err := h.service.List(r.Context(), f)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewListPage(items, params, total))
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

type createRequest struct {
	Code        string  `json:"code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Address     *string `json:"address"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.Create(r.Context(), CreateParams{
		Code: req.Code, Name: req.Name, ContactName: req.ContactName, Phone: req.Phone,
		Email: req.Email, Address: req.Address,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "subcontractor", &item.ID, nil, item)
	httpserver.Respond(w, http.StatusCreated, item)
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
	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.Update(r.Context(), id, UpdateParams{
		Name: req.Name, ContactName: req.ContactName, Phone: req.Phone, Email: req.Email, Address: req.Address,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionUpdate, "subcontractor", &item.ID, before, item)
	httpserver.Respond(w, http.StatusOK, item)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDeactivate, "subcontractor", &id, before, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

type tariffRequest struct {
	Unit        string     `json:"unit" validate:"required,oneof=per_trip per_pallet per_km"`
	Destination string     `json:"destination" validate:"required"`
	Country     *string    `json:"country"`
	Price       float64    `json:"price" validate:"required,gte=0"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
}

func (h *Handler) handleListTariffsBySST(w http.ResponseWriter, r *http.Request) {
	sstID, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	items, err := h.service.ListTariffsBySST(r.Context(), sstID)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleListAllTariffs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAllTariffs(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleCreateTariff(w http.ResponseWriter, r *http.Request) {
	sstID, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	var req tariffRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.CreateTariff(r.Context(), sstID, TariffParams{
		Unit: TariffUnit(req.Unit), Destination: req.Destination, Country: req.Country,
		Price: req.Price, ValidFrom: req.ValidFrom, ValidTo: req.ValidTo,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "subcontractor_tariff", &item.ID, nil, item)
	httpserver.Respond(w, http.StatusCreated, item)
}

func (h *Handler) handleDeleteTariff(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "tariffId")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := h.service.DeleteTariff(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "subcontractor_tariff", &id, nil, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
