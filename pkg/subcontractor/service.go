package subcontractor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/store"
)

// Service wraps Store with domain error mapping (spec §7).
type Service struct {
	store *Store
}

// NewService creates a subcontractor Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id int64) (Subcontractor, error) {
	item, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subcontractor{}, apperr.NotFound("subcontractor")
	}
	if err != nil {
		return Subcontractor{}, apperr.Wrap(err, "fetching subcontractor")
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Subcontractor, int, error) {
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "listing subcontractors")
	}
	return items, total, nil
}

func (s *Service) Create(ctx context.Context, p CreateParams) (Subcontractor, error) {
	item, err := s.store.Create(ctx, p)
	if store.IsUniqueViolation(err) {
		return Subcontractor{}, apperr.Conflict("a subcontractor with this code already exists")
	}
	if err != nil {
		return Subcontractor{}, apperr.Wrap(err, "creating subcontractor")
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (Subcontractor, error) {
	item, err := s.store.Update(ctx, id, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subcontractor{}, apperr.NotFound("subcontractor")
	}
	if err != nil {
		return Subcontractor{}, apperr.Wrap(err, "updating subcontractor")
	}
	return item, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.store.Deactivate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("subcontractor")
	}
	if err != nil {
		return apperr.Wrap(err, "deactivating subcontractor")
	}
	return nil
}

func (s *Service) CreateTariff(ctx context.Context, sstID int64, p TariffParams) (Tariff, error) {
	switch p.Unit {
	case UnitPerTrip, UnitPerPallet, UnitPerKM:
	default:
		return Tariff{}, apperr.New(apperr.KindValidation, "invalid tariff unit")
	}
	t, err := s.store.CreateTariff(ctx, sstID, p)
	if err != nil {
		return Tariff{}, apperr.Wrap(err, "creating tariff")
	}
	return t, nil
}

func (s *Service) ListTariffsBySST(ctx context.Context, sstID int64) ([]Tariff, error) {
	items, err := s.store.ListTariffsBySST(ctx, sstID)
	if err != nil {
		return nil, apperr.Wrap(err, "listing tariffs")
	}
	return items, nil
}

func (s *Service) ListAllTariffs(ctx context.Context) ([]Tariff, error) {
	items, err := s.store.ListAllTariffs(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "listing tariffs")
	}
	return items, nil
}

func (s *Service) DeleteTariff(ctx context.Context, id int64) error {
	err := s.store.DeleteTariff(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("tariff")
	}
	if err != nil {
		return apperr.Wrap(err, "deleting tariff")
	}
	return nil
}
