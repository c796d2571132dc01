package route

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

// NewService creates a route Service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id int64) (Route, error) {
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, apperr.NotFound("route")
	}
	if err != nil {
		return Route{}, apperr.Wrap(err, "fetching route")
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Route, int, error) {
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "listing routes")
	}
	return items, total, nil
}

func (s *Service) Create(ctx context.Context, p CreateParams) (Route, error) {
	r, err := s.store.Create(ctx, p)
	if store.IsUniqueViolation(err) {
		return Route{}, apperr.Conflict("a route with this code already exists")
	}
	if err != nil {
		return Route{}, apperr.Wrap(err, "creating route")
	}
	return r, nil
}

func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (Route, error) {
	r, err := s.store.Update(ctx, id, p)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, apperr.NotFound("route")
	}
	if err != nil {
		return Route{}, apperr.Wrap(err, "updating route")
	}
	return r, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	err := s.store.Deactivate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("route")
	}
	if err != nil {
		return apperr.Wrap(err, "deactivating route")
	}
	return nil
}
