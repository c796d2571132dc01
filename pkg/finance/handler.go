package finance

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/freightplan/planningserver/internal/audit"
	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/httpserver"
)

// Handler serves pallet revenues and the finance aggregate endpoints
// (spec §4.8 StatsSvc, §6).
type Handler struct {
	service *Service
	audit   *audit.Writer
}

// NewHandler creates a finance Handler.
func NewHandler(service *Service, auditLog *audit.Writer) *Handler {
	return &Handler{service: service, audit: auditLog}
}

// Routes mounts the finance endpoints behind capability gates.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireCapability(auth.ViewFinance)).Get("/revenues", h.handleListRevenues)
	r.With(auth.RequireCapability(auth.ManageFinance)).Post("/revenues", h.handleCreateRevenue)
	r.With(auth.RequireCapability(auth.ManageFinance)).Delete("/revenues/{id}", h.handleDeleteRevenue)

	r.With(auth.RequireCapability(auth.ViewFinance)).Get("/stats", h.handleFinanceStats)
	r.With(auth.RequireCapability(auth.ViewFinance)).Get("/stats/monthly", h.handleMonthlyStats)
	r.With(auth.RequireCapability(auth.ViewFinance)).Get("/stats/yearly", h.handleYearlyStats)
	return r
}

func (h *Handler) handleListRevenues(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRevenues(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, items)
}

type revenueRequest struct {
	Destination    string     `json:"destination" validate:"required"`
	Country        *string    `json:"country"`
	PricePerPallet float64    `json:"price_per_pallet" validate:"gte=0"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidTo        *time.Time `json:"valid_to"`
}

func (h *Handler) handleCreateRevenue(w http.ResponseWriter, r *http.Request) {
	var req revenueRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	item, err := h.service.CreateRevenue(r.Context(), RevenueParams{
		Destination: req.Destination, Country: req.Country, PricePerPallet: req.PricePerPallet,
		ValidFrom: req.ValidFrom, ValidTo: req.ValidTo,
	})
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionCreate, "pallet_revenue", &item.ID, nil, item)
	httpserver.Respond(w, http.StatusCreated, item)
}

func (h *Handler) handleDeleteRevenue(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}
	if err := h.service.DeleteRevenue(r.Context(), id); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	h.audit.LogFromRequest(r, audit.ActionDelete, "pallet_revenue", &id, nil, nil)
	httpserver.Respond(w, http.StatusNoContent, nil)
}

func parseDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", v)
}

func (h *Handler) handleFinanceStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from, err := parseDate(r, "from", now.AddDate(0, -1, 0))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(r, "to", now)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "to must be YYYY-MM-DD")
		return
	}
	stats, err := h.service.FinanceStats(r.Context(), from, to)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "year is required")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "month is required")
		return
	}
	stats, err := h.service.MonthlyStats(r.Context(), year, month)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

func (h *Handler) handleYearlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "year is required")
		return
	}
	stats, err := h.service.YearlyStats(r.Context(), year)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}
