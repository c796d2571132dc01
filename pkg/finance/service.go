package finance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/apperr"
	"github.com/freightplan/planningserver/internal/store"
)

// Service wraps Store with domain error mapping (spec §7).
type Service struct {
	store *Store
}

// NewService creates a finance Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreateRevenue(ctx context.Context, p RevenueParams) (PalletRevenue, error) {
	if p.PricePerPallet < 0 {
		return PalletRevenue{}, apperr.New(apperr.KindValidation, "price_per_pallet must not be negative")
	}
	if p.ValidFrom != nil && p.ValidTo != nil && p.ValidFrom.After(*p.ValidTo) {
		return PalletRevenue{}, apperr.New(apperr.KindValidation, "valid_from must not be after valid_to")
	}
	item, err := s.store.CreateRevenue(ctx, p)
	if store.IsUniqueViolation(err) {
		return PalletRevenue{}, apperr.Conflict("a pallet revenue for this destination already exists")
	}
	if err != nil {
		return PalletRevenue{}, apperr.Wrap(err, "creating pallet revenue")
	}
	return item, nil
}

func (s *Service) ListRevenues(ctx context.Context) ([]PalletRevenue, error) {
	items, err := s.store.ListRevenues(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "listing pallet revenues")
	}
	return items, nil
}

func (s *Service) DeleteRevenue(ctx context.Context, id int64) error {
	err := s.store.DeleteRevenue(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("pallet revenue")
	}
	if err != nil {
		return apperr.Wrap(err, "deleting pallet revenue")
	}
	return nil
}

func (s *Service) FinanceStats(ctx context.Context, from, to time.Time) ([]CountryStats, error) {
	if from.After(to) {
		return nil, apperr.New(apperr.KindValidation, "from must not be after to")
	}
	stats, err := s.store.FinanceStats(ctx, from, to)
	if err != nil {
		return nil, apperr.Wrap(err, "computing finance stats")
	}
	return stats, nil
}

func (s *Service) MonthlyStats(ctx context.Context, year, month int) ([]DayBucket, error) {
	if month < 1 || month > 12 {
		return nil, apperr.New(apperr.KindValidation, "month must be between 1 and 12")
	}
	stats, err := s.store.MonthlyStats(ctx, year, month)
	if err != nil {
		return nil, apperr.Wrap(err, "computing monthly stats")
	}
	return stats, nil
}

func (s *Service) YearlyStats(ctx context.Context, year int) ([]MonthBucket, error) {
	stats, err := s.store.YearlyStats(ctx, year)
	if err != nil {
		return nil, apperr.Wrap(err, "computing yearly stats")
	}
	return stats, nil
}
