package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/store"
)

// Service wraps Store with domain error mapping (spec §7).
type Service struct {
	store *Store
}

// NewService creates a driver Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id int64) (Driver, error) {
	d, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, apperr.NotFound("driver")
	}
	if err != nil {
		return Driver{}, apperr.Wrap(err, "fetching driver")
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Driver, int, error) {
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "listing drivers")
	}
	return items, total, nil
}

func (s *Service) Create(ctx context.Context, p CreateParams) (Driver, error) {
	d, err := s.store.Create(ctx, p)
	if store.IsUniqueViolation(err) {
		return Driver{}, apperr.Conflict("a driver with this code already exists")
	}
	if err != nil {
		return Driver{}, apperr.Wrap(err, "creating driver")
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (Driver, error) {
	d, err := s.store.Update(ctx, id, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, apperr.NotFound("driver")
	}
	if err != nil {
		return Driver{}, apperr.Wrap(err, "updating driver")
	}
	return d, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.store.Deactivate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("driver")
	}
	if err != nil {
		return apperr.Wrap(err, "deactivating driver")
	}
	return nil
}

// CreateUnavailability validates the start<=end invariant (spec §3) before
// inserting.
func (s *Service) CreateUnavailability(ctx context.Context, driverID int64, startDate, endDate time.Time, reasonCode string, note *string) (Unavailability, error) {
	if startDate.After(endDate) {
		return Unavailability{}, apperr.New(apperr.KindValidation, "start_date must be on or before end_date")
	}
	switch reasonCode {
	case "leave", "sick", "training", "other":
	default:
		return Unavailability{}, apperr.New(apperr.KindValidation, fmt.Sprintf("invalid reason_code %q", reasonCode))
	}

	u, err := s.store.CreateUnavailability(ctx, driverID, startDate, endDate, reasonCode, note)
	if err != nil {
		return Unavailability{}, apperr.Wrap(err, "creating unavailability")
	}
	return u, nil
}

func (s *Service) DeleteUnavailability(ctx context.Context, id int64) error {
	err := s.store.DeleteUnavailability(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("unavailability")
	}
	if err != nil {
		return apperr.Wrap(err, "deleting unavailability")
	}
	return nil
}

func (s *Service) ListUnavailabilities(ctx context.Context, driverID int64) ([]Unavailability, error) {
	items, err := s.store.ListUnavailabilities(ctx, driverID)
	if err != nil {
		return nil, apperr.Wrap(err, "listing unavailabilities")
	}
	return items, nil
}

func (s *Service) AvailableDriversOn(ctx context.Context, d time.Time) (AvailabilityPartition, error) {
	part, err := s.store.AvailableDriversOn(ctx, d)
	if err != nil {
		return AvailabilityPartition{}, apperr.Wrap(err, "computing driver availability")
	}
	return part, nil
}
