// Package route implements the Route (Voyage) domain entity (spec §3, §4.1):
// transport line templates referenced by missions.
package route

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Route is a transport line template (Voyage in the original domain).
type Route struct {
	ID               int64
	Handle           uuid.UUID
	Code             string
	Name             string
	Description      *string
	Origin           string
	Destination      string
	Country          *string
	DefaultStartTime *string
	DefaultEndTime   *string
	OperatingDays    []int32
	AvgPalletCount   *float64
	IsActive         bool
	Color            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store persists Route entities.
type Store struct {
	db store.DBTX
}

// NewStore creates a Route Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const columns = `id, handle, code, name, description, origin, destination, country,
	default_start_time, default_end_time, operating_days, avg_pallet_count, is_active, color,
	created_at, updated_at`

func scanRoute(row pgx.Row) (Route, error) {
	var r Route
	err := row.Scan(&r.ID, &r.Handle, &r.Code, &r.Name, &r.Description, &r.Origin, &r.Destination,
		&r.Country, &r.DefaultStartTime, &r.DefaultEndTime, &r.OperatingDays, &r.AvgPalletCount,
		&r.IsActive, &r.Color, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Get returns a route by id.
func (s *Store) Get(ctx context.Context, id int64) (Route, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM routes WHERE id = $1", columns), id)
	return scanRoute(row)
}

// GetByCode returns a route by its unique upper-cased code.
func (s *Store) GetByCode(ctx context.Context, code string) (Route, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM routes WHERE code = $1", columns), strings.ToUpper(code))
	return scanRoute(row)
}

// Filter holds list_routes query fields (spec §4.1: "same CRUD shape" as missions).
type Filter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// List returns routes matching filter, ordered by code ascending, plus total count.
func (s *Store) List(ctx context.Context, f Filter) ([]Route, int, error) {
	where := ""
	if f.ActiveOnly {
		where = "WHERE is_active = true"
	}

	var total int
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM routes %s", where)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting routes: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM routes %s ORDER BY code ASC LIMIT $1 OFFSET $2", columns, where), limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing routes: %w", err)
	}
	defer rows.Close()

	var out []Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning route: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// CreateParams are the fields accepted on create.
type CreateParams struct {
	Code             string
	Name             string
	Description      *string
	Origin           string
	Destination      string
	Country          *string
	DefaultStartTime *string
	DefaultEndTime   *string
	OperatingDays    []int32
	AvgPalletCount   *float64
	Color            *string
}

// Create inserts a new route. Code collisions return pgx's unique_violation,
// which the service layer maps to apperr.Conflict.
func (s *Store) Create(ctx context.Context, p CreateParams) (Route, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO routes (handle, code, name, description, origin, destination, country,
			default_start_time, default_end_time, operating_days, avg_pallet_count, is_active, color,
			created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, now(), now())
		RETURNING id`,
		strings.ToUpper(p.Code), p.Name, p.Description, p.Origin, p.Destination, p.Country,
		p.DefaultStartTime, p.DefaultEndTime, p.OperatingDays, p.AvgPalletCount, p.Color,
	).Scan(&id)
	if err != nil {
		return Route{}, err
	}
	return s.Get(ctx, id)
}

// UpdateParams are the fields accepted on update.
type UpdateParams struct {
	Name             string
	Description      *string
	Origin           string
	Destination      string
	Country          *string
	DefaultStartTime *string
	DefaultEndTime   *string
	OperatingDays    []int32
	AvgPalletCount   *float64
	Color            *string
}

// Update modifies an existing route's mutable fields (code is immutable
// after creation to preserve existing mission references).
func (s *Store) Update(ctx context.Context, id int64, p UpdateParams) (Route, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE routes SET name = $2, description = $3, origin = $4, destination = $5, country = $6,
			default_start_time = $7, default_end_time = $8, operating_days = $9, avg_pallet_count = $10,
			color = $11, updated_at = now()
		WHERE id = $1`,
		id, p.Name, p.Description, p.Origin, p.Destination, p.Country,
		p.DefaultStartTime, p.DefaultEndTime, p.OperatingDays, p.AvgPalletCount, p.Color,
	)
	if err != nil {
		return Route{}, err
	}
	if tag.RowsAffected() == 0 {
		return Route{}, pgx.ErrNoRows
	}
	return s.Get(ctx, id)
}

// Deactivate soft-deletes a route (spec §4.1: "delete is soft").
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "UPDATE routes SET is_active = false, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
