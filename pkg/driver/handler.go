package driver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves the Driver REST surface (spec §6), including unavailability
// windows and the available-on-date partition.
type Handler struct {
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a driver Handler.
func NewHandler(service *Service, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, audit: auditLog}
}

// Routes mounts the driver endpoints behind capability gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewDrivers)).Get("/", h.handleList)
	r.With(auth.RequireCapability(auth.ViewDrivers)).Get("/available", h.handleAvailableOn)
	r.With(auth.RequireCapability(auth.ViewDrivers)).Get("/{id}", h.handleGet)
	r.With(auth.RequireCapability(auth.ManageDrivers)).Post("/", h.handleCreate)
	r.With(auth.RequireCapability(auth.ManageDrivers)).Put("/{id}", h.handleUpdate)
	r.With(auth.RequireCapability(auth.ManageDrivers)).Delete("/{id}", h.handleDeactivate)

	r.With(auth.RequireCapability(auth.ViewDrivers)).Get("/{id}/unavailabilities", h.handleListUnavailabilities)
	r.With(auth.RequireCapability(auth.EditDriverPlanning)).Post("/{id}/unavailabilities", h.handleCreateUnavailability)
	r.With(auth.RequireCapability(auth.EditDriverPlanning)).Delete("/unavailabilities/{unavailId}", h.handleDeleteUnavailability)
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

func (h *Handler) handleAvailableOn(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD")
		return
	}
	part, err := h.service.AvailableDriversOn(r.Context(), d)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, part)
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
	Code             string     `json:"code" validate:"required"`
	LastName         string     `json:"last_name" validate:"required"`
	FirstName        string     `json:"first_name" validate:"required"`
	Phone            *string    `json:"phone"`
	Email            *string    `json:"email" validate:"omitempty,email"`
	ContractType     *string    `json:"contract_type"`
	HireDate         *time.Time `json:"hire_date"`
	HasPermit        bool       `json:"has_permit"`
	HasADR           bool       `json:"has_adr"`
	HasFIMO          bool       `json:"has_fimo"`
	PreferredTractor *string    `json:"preferred_tractor"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.Create(r.Context(), CreateParams{
		Code: req.Code, LastName: req.LastName, FirstName: req.FirstName, Phone: req.Phone,
		Email: req.Email, ContractType: req.ContractType, HireDate: req.HireDate,
		HasPermit: req.HasPermit, HasADR: req.HasADR, HasFIMO: req.HasFIMO,
		PreferredTractor: req.PreferredTractor,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "driver", &item.ID, nil, item)
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
		LastName: req.LastName, FirstName: req.FirstName, Phone: req.Phone, Email: req.Email,
		ContractType: req.ContractType, HireDate: req.HireDate, HasPermit: req.HasPermit,
		HasADR: req.HasADR, HasFIMO: req.HasFIMO, PreferredTractor: req.PreferredTractor,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionUpdate, "driver", &item.ID, before, item)
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
	h.audit.LogFromRequest(r, audit.ActionDeactivate, "driver", &id, before, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

type unavailabilityRequest struct {
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required"`
	ReasonCode string    `json:"reason_code" validate:"required,oneof=leave sick training other"`
	Note       *string   `json:"note"`
}

func (h *Handler) handleListUnavailabilities(w http.ResponseWriter, r *http.Request) {
	driverID, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	items, err := h.service.ListUnavailabilities(r.Context(), driverID)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

func (h *Handler) handleCreateUnavailability(w http.ResponseWriter, r *http.Request) {
	driverID, err := parseID(r, "id")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	var req unavailabilityRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.CreateUnavailability(r.Context(), driverID, req.StartDate, req.EndDate, req.ReasonCode, req.Note)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "driver_unavailability", &item.ID, nil, item)
	httpserver.Respond(w, http.StatusCreated, item)
}

func (h *Handler) handleDeleteUnavailability(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "unavailId")
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := h.service.DeleteUnavailability(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "driver_unavailability", &id, nil, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
