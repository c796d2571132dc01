package mission

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/store"
	"github.com/freightplan/planningserver/pkg/driver"
	"github.com/freightplan/planningserver/pkg/route"
)

// RouteSummary is the optional expanded route view embedded in a Mission
// response alongside the scalar route_id (spec §9 Open Question: one
// canonical shape carrying both).
type RouteSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Response is the Mission wire shape: the stored entity plus an optional
// expanded route view.
type Response struct {
	Mission
	Route *RouteSummary `json:"route,omitempty"`
}

// Service wraps Store with domain error mapping, driver-availability
// validation and route expansion (spec §3, §7).
type Service struct {
	pool      *pgxpool.Pool
	store     *Store
	routes    *route.Store
	drivers   *driver.Store
}

// NewService creates a mission Service.
func NewService(pool *pgxpool.Pool, store *Store, routes *route.Store, drivers *driver.Store) *Service {
	return &Service{pool: pool, store: store, routes: routes, drivers: drivers}
}

func (s *Service) expand(ctx context.Context, m Mission) Response {
	resp := Response{Mission: m}
	if m.RouteID == nil {
		return resp
	}
	r, err := s.routes.Get(ctx, *m.RouteID)
	if err != nil {
		return resp
	}
	resp.Route = &RouteSummary{ID: r.ID, Code: r.Code, Name: r.Name}
	return resp
}

func (s *Service) Get(ctx context.Context, id int64) (Response, error) {
	m, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, apperr.NotFound("mission")
	}
	if err != nil {
		return Response{}, apperr.Wrap(err, "fetching mission")
	}
	return s.expand(ctx, m), nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Response, int, error) {
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "listing missions")
	}
	out := make([]Response, 0, len(items))
	for _, m := range items {
		out = append(out, s.expand(ctx, m))
	}
	return out, total, nil
}

func (s *Service) ByDate(ctx context.Context, d time.Time) ([]Response, error) {
	items, err := s.store.ByDate(ctx, d)
	if err != nil {
		return nil, apperr.Wrap(err, "listing missions by date")
	}
	out := make([]Response, 0, len(items))
	for _, m := range items {
		out = append(out, s.expand(ctx, m))
	}
	return out, nil
}

// validate enforces the Mission invariants (spec §3) and checks driver
// eligibility, returning hard errors and soft warnings separately per §7.
func (s *Service) validate(ctx context.Context, driverID *int64, date time.Time, palletCount int, startTime, endTime *time.Time) (errs, warnings []apperr.FieldProblem) {
	if palletCount < 0 {
		errs = append(errs, apperr.FieldProblem{Field: "pallet_count", Message: "must not be negative"})
	}
	if startTime != nil && endTime != nil && startTime.After(*endTime) {
		errs = append(errs, apperr.FieldProblem{Field: "start_time", Message: "must not be after end_time"})
	}
	if driverID != nil {
		d, err := s.drivers.Get(ctx, *driverID)
		if err != nil {
			errs = append(errs, apperr.FieldProblem{Field: "driver_id", Message: "driver not found"})
			return errs, warnings
		}
		if !d.IsActive {
			warnings = append(warnings, apperr.FieldProblem{Field: "driver_id", Message: "driver is not active"})
		}
		part, err := s.drivers.AvailableDriversOn(ctx, date)
		if err == nil {
			for _, u := range part.Unavailable {
				if u.ID == *driverID {
					warnings = append(warnings, apperr.FieldProblem{Field: "driver_id", Message: "driver is unavailable on this date"})
					break
				}
			}
		}
	}
	return errs, warnings
}

func (s *Service) Create(ctx context.Context, p CreateParams, by string) (Response, []apperr.FieldProblem, error) {
	errs, warnings := s.validate(ctx, p.DriverID, p.Date, p.PalletCount, p.StartTime, p.EndTime)
	if len(errs) > 0 {
		return Response{}, warnings, apperr.Validation(errs, warnings)
	}
	m, err := s.store.Create(ctx, p, by)
	if store.IsUniqueViolation(err) {
		return Response{}, warnings, apperr.Conflict("a mission with conflicting unique fields already exists")
	}
	if err != nil {
		return Response{}, warnings, apperr.Wrap(err, "creating mission")
	}
	return s.expand(ctx, m), warnings, nil
}

// BulkCreate creates several missions inside one transaction (spec §4.1
// bulk_create_missions) — all succeed or all roll back.
func (s *Service) BulkCreate(ctx context.Context, params []CreateParams, by string) ([]Response, error) {
	var out []Response
	err := store.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		txStore := NewStore(tx)
		for _, p := range params {
			errs, _ := s.validate(ctx, p.DriverID, p.Date, p.PalletCount, p.StartTime, p.EndTime)
			if len(errs) > 0 {
				return apperr.Validation(errs, nil)
			}
			m, err := txStore.Create(ctx, p, by)
			if store.IsUniqueViolation(err) {
				return apperr.Conflict("a mission with conflicting unique fields already exists")
			}
			if err != nil {
				return apperr.Wrap(err, "creating mission")
			}
			out = append(out, s.expand(ctx, m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id int64, p UpdateParams, by string) (Response, []apperr.FieldProblem, error) {
	errs, warnings := s.validate(ctx, p.DriverID, p.Date, p.PalletCount, p.StartTime, p.EndTime)
	if len(errs) > 0 {
		return Response{}, warnings, apperr.Validation(errs, warnings)
	}
	m, err := s.store.Update(ctx, id, p, by)
	if errors.Is(err, pgx.ErrNoRows) {
		return Response{}, warnings, apperr.NotFound("mission")
	}
	if store.IsUniqueViolation(err) {
		return Response{}, warnings, apperr.Conflict("a mission with conflicting unique fields already exists")
	}
	if err != nil {
		return Response{}, warnings, apperr.Wrap(err, "updating mission")
	}
	return s.expand(ctx, m), warnings, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("mission")
	}
	if err != nil {
		return apperr.Wrap(err, "deleting mission")
	}
	return nil
}
