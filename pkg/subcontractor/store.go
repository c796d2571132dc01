// Package subcontractor implements the Subcontractor (SST) entity and its
// tariff schedule (spec §3, §4.1).
package subcontractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Subcontractor is an external carrier used when in-house capacity is
// exhausted (SST in the original domain).
type Subcontractor struct {
	ID         int64
	Handle     uuid.UUID
	Code       string
	Name       string
	ContactName *string
	Phone      *string
	Email      *string
	Address    *string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TariffUnit is the pricing unit a tariff is expressed in.
type TariffUnit string

const (
	UnitPerTrip   TariffUnit = "per_trip"
	UnitPerPallet TariffUnit = "per_pallet"
	UnitPerKM     TariffUnit = "per_km"
)

// Tariff mirrors spec §3's SubcontractorTariff entity.
type Tariff struct {
	ID          int64
	SSTID       int64
	Unit        TariffUnit
	Destination string
	Country     *string
	Price       float64
	ValidFrom   *time.Time
	ValidTo     *time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// Store persists Subcontractor entities and tariffs.
type Store struct {
	db store.DBTX
}

// NewStore creates a Subcontractor Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const columns = `id, handle, code, name, contact_name, phone, email, address, is_active, created_at, updated_at`

func scanSST(row pgx.Row) (Subcontractor, error) {
	var s Subcontractor
	err := row.Scan(&s.ID, &s.Handle, &s.Code, &s.Name, &s.ContactName, &s.Phone, &s.Email,
		&s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *Store) Get(ctx context.Context, id int64) (Subcontractor, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM subcontractors WHERE id = $1", columns), id)
	return scanSST(row)
}

func (s *Store) GetByCode(ctx context.Context, code string) (Subcontractor, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM subcontractors WHERE code = $1", columns), strings.ToUpper(code))
	return scanSST(row)
}

// Filter holds Subcontractor list query fields.
type Filter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (s *Store) List(ctx context.Context, f Filter) ([]Subcontractor, int, error) {
	where := ""
	if f.ActiveOnly {
		where = "WHERE is_active = true"
	}

	var total int
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM subcontractors %s", where)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting subcontractors: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM subcontractors %s ORDER BY name ASC LIMIT $1 OFFSET $2", columns, where), limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing subcontractors: %w", err)
	}
	defer rows.Close()

	var out []Subcontractor
	for rows.Next() {
		item, err := scanSST(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning subcontractor: %w", err)
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// CreateParams are the fields accepted on create.
type CreateParams struct {
	Code        string
	Name        string
	ContactName *string
	Phone       *string
	Email       *string
	Address     *string
}

func (s *Store) Create(ctx context.Context, p CreateParams) (Subcontractor, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO subcontractors (handle, code, name, contact_name, phone, email, address, is_active, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, true, now(), now())
		RETURNING id`,
		strings.ToUpper(p.Code), p.Name, p.ContactName, p.Phone, p.Email, p.Address,
	).Scan(&id)
	if err != nil {
		return Subcontractor{}, err
	}
	return s.Get(ctx, id)
}

// UpdateParams are the fields accepted on update.
type UpdateParams struct {
	Name        string
	ContactName *string
	Phone       *string
	Email       *string
	Address     *string
}

func (s *Store) Update(ctx context.Context, id int64, p UpdateParams) (Subcontractor, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE subcontractors SET name = $2, contact_name = $3, phone = $4, email = $5, address = $6, updated_at = now()
		WHERE id = $1`,
		id, p.Name, p.ContactName, p.Phone, p.Email, p.Address,
	)
	if err != nil {
		return Subcontractor{}, err
	}
	if tag.RowsAffected() == 0 {
		return Subcontractor{}, pgx.ErrNoRows
	}
	return s.Get(ctx, id)
}

func (s *Store) Deactivate(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "UPDATE subcontractors SET is_active = false, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const tariffColumns = "id, sst_id, unit, destination, country, price, valid_from, valid_to, is_active, created_at"

func scanTariff(row pgx.Row) (Tariff, error) {
	var t Tariff
	err := row.Scan(&t.ID, &t.SSTID, &t.Unit, &t.Destination, &t.Country, &t.Price,
		&t.ValidFrom, &t.ValidTo, &t.IsActive, &t.CreatedAt)
	return t, err
}

// TariffParams are the fields accepted when creating a tariff.
type TariffParams struct {
	Unit        TariffUnit
	Destination string
	Country     *string
	Price       float64
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

// CreateTariff inserts a new tariff for a subcontractor.
func (s *Store) CreateTariff(ctx context.Context, sstID int64, p TariffParams) (Tariff, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO subcontractor_tariffs (sst_id, unit, destination, country, price, valid_from, valid_to, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, now())
		RETURNING id`,
		sstID, p.Unit, p.Destination, p.Country, p.Price, p.ValidFrom, p.ValidTo,
	).Scan(&id)
	if err != nil {
		return Tariff{}, err
	}
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM subcontractor_tariffs WHERE id = $1", tariffColumns), id)
	return scanTariff(row)
}

// ListTariffsBySST returns every tariff for a given subcontractor
// (list_by_sst in spec §4.1).
func (s *Store) ListTariffsBySST(ctx context.Context, sstID int64) ([]Tariff, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM subcontractor_tariffs WHERE sst_id = $1 ORDER BY destination ASC", tariffColumns), sstID)
	if err != nil {
		return nil, fmt.Errorf("listing tariffs: %w", err)
	}
	defer rows.Close()

	var out []Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tariff: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTariffs returns every tariff across all subcontractors
// (list_all in spec §4.1).
func (s *Store) ListAllTariffs(ctx context.Context) ([]Tariff, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM subcontractor_tariffs ORDER BY sst_id ASC, destination ASC", tariffColumns))
	if err != nil {
		return nil, fmt.Errorf("listing tariffs: %w", err)
	}
	defer rows.Close()

	var out []Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tariff: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTariff removes a tariff.
func (s *Store) DeleteTariff(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM subcontractor_tariffs WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
