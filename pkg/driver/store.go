// Package driver implements the Driver (Chauffeur) entity and its
// unavailability windows (spec §3, §4.1).
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Driver is a company or contracted driver (Chauffeur).
type Driver struct {
	ID               int64
	Handle           uuid.UUID
	Code             string
	LastName         string
	FirstName        string
	Phone            *string
	Email            *string
	ContractType     *string
	HireDate         *time.Time
	HasPermit        bool
	HasADR           bool
	HasFIMO          bool
	PreferredTractor *string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName returns the derived "FirstName LastName" display form.
func (d Driver) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Store persists Driver entities and their unavailability windows.
type Store struct {
	db store.DBTX
}

// NewStore creates a Driver Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const columns = `id, handle, code, last_name, first_name, phone, email, contract_type, hire_date,
	has_permit, has_adr, has_fimo, preferred_tractor, is_active, created_at, updated_at`

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.Handle, &d.Code, &d.LastName, &d.FirstName, &d.Phone, &d.Email,
		&d.ContractType, &d.HireDate, &d.HasPermit, &d.HasADR, &d.HasFIMO, &d.PreferredTractor,
		&d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) Get(ctx context.Context, id int64) (Driver, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM drivers WHERE id = $1", columns), id)
	return scanDriver(row)
}

func (s *Store) GetByCode(ctx context.Context, code string) (Driver, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM drivers WHERE code = $1", columns), strings.ToUpper(code))
	return scanDriver(row)
}

// Filter holds Driver list query fields.
type Filter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (s *Store) List(ctx context.Context, f Filter) ([]Driver, int, error) {
	where := ""
	if f.ActiveOnly {
		where = "WHERE is_active = true"
	}

	var total int
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM drivers %s", where)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting drivers: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM drivers %s ORDER BY last_name ASC, first_name ASC LIMIT $1 OFFSET $2", columns, where),
		limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing drivers: %w", err)
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning driver: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// CreateParams are the fields accepted on create.
type CreateParams struct {
	Code             string
	LastName         string
	FirstName        string
	Phone            *string
	Email            *string
	ContractType     *string
	HireDate         *time.Time
	HasPermit        bool
	HasADR           bool
	HasFIMO          bool
	PreferredTractor *string
}

func (s *Store) Create(ctx context.Context, p CreateParams) (Driver, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO drivers (handle, code, last_name, first_name, phone, email, contract_type, hire_date,
			has_permit, has_adr, has_fimo, preferred_tractor, is_active, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, now(), now())
		RETURNING id`,
		strings.ToUpper(p.Code), p.LastName, p.FirstName, p.Phone, p.Email, p.ContractType, p.HireDate,
		p.HasPermit, p.HasADR, p.HasFIMO, p.PreferredTractor,
	).Scan(&id)
	if err != nil {
		return Driver{}, err
	}
	return s.Get(ctx, id)
}

// UpdateParams are the fields accepted on update.
type UpdateParams struct {
	LastName         string
	FirstName        string
	Phone            *string
	Email            *string
	ContractType     *string
	HireDate         *time.Time
	HasPermit        bool
	HasADR           bool
	HasFIMO          bool
	PreferredTractor *string
}

func (s *Store) Update(ctx context.Context, id int64, p UpdateParams) (Driver, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET last_name = $2, first_name = $3, phone = $4, email = $5, contract_type = $6,
			hire_date = $7, has_permit = $8, has_adr = $9, has_fimo = $10, preferred_tractor = $11,
			updated_at = now()
		WHERE id = $1`,
		id, p.LastName, p.FirstName, p.Phone, p.Email, p.ContractType, p.HireDate,
		p.HasPermit, p.HasADR, p.HasFIMO, p.PreferredTractor,
	)
	if err != nil {
		return Driver{}, err
	}
	if tag.RowsAffected() == 0 {
		return Driver{}, pgx.ErrNoRows
	}
	return s.Get(ctx, id)
}

// Deactivate soft-deletes a driver.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "UPDATE drivers SET is_active = false, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Unavailability mirrors spec §3's DriverUnavailability entity.
type Unavailability struct {
	ID         int64
	DriverID   int64
	StartDate  time.Time
	EndDate    time.Time
	ReasonCode string
	Note       *string
	CreatedAt  time.Time
}

const unavailColumns = "id, driver_id, start_date, end_date, reason_code, note, created_at"

func scanUnavailability(row pgx.Row) (Unavailability, error) {
	var u Unavailability
	err := row.Scan(&u.ID, &u.DriverID, &u.StartDate, &u.EndDate, &u.ReasonCode, &u.Note, &u.CreatedAt)
	return u, err
}

// CreateUnavailability inserts a new unavailability window. The caller must
// have already validated start_date <= end_date (spec §3 invariant).
func (s *Store) CreateUnavailability(ctx context.Context, driverID int64, startDate, endDate time.Time, reasonCode string, note *string) (Unavailability, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO driver_unavailabilities (driver_id, start_date, end_date, reason_code, note, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id`,
		driverID, startDate, endDate, reasonCode, note,
	).Scan(&id)
	if err != nil {
		return Unavailability{}, err
	}
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM driver_unavailabilities WHERE id = $1", unavailColumns), id)
	return scanUnavailability(row)
}

// DeleteUnavailability hard-deletes an unavailability window.
func (s *Store) DeleteUnavailability(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM driver_unavailabilities WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListUnavailabilities returns every unavailability window for a driver.
func (s *Store) ListUnavailabilities(ctx context.Context, driverID int64) ([]Unavailability, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM driver_unavailabilities WHERE driver_id = $1 ORDER BY start_date DESC", unavailColumns), driverID)
	if err != nil {
		return nil, fmt.Errorf("listing unavailabilities: %w", err)
	}
	defer rows.Close()

	var out []Unavailability
	for rows.Next() {
		u, err := scanUnavailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unavailability: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AvailabilityPartition is the {available, unavailable} split returned by
// AvailableDriversOn (spec §4.1).
type AvailabilityPartition struct {
	Available   []Driver
	Unavailable []Driver
}

// AvailableDriversOn partitions active drivers by whether an unavailability
// window covers date D.
func (s *Store) AvailableDriversOn(ctx context.Context, d time.Time) (AvailabilityPartition, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, EXISTS (
			SELECT 1 FROM driver_unavailabilities u
			WHERE u.driver_id = drivers.id AND u.start_date <= $1 AND u.end_date >= $1
		) AS is_unavailable
		FROM drivers WHERE is_active = true ORDER BY last_name ASC, first_name ASC`, columns), d)
	if err != nil {
		return AvailabilityPartition{}, fmt.Errorf("querying driver availability: %w", err)
	}
	defer rows.Close()

	var part AvailabilityPartition
	for rows.Next() {
		var drv Driver
		var unavailable bool
		if err := rows.Scan(&drv.ID, &drv.Handle, &drv.Code, &drv.LastName, &drv.FirstName, &drv.Phone,
			&drv.Email, &drv.ContractType, &drv.HireDate, &drv.HasPermit, &drv.HasADR, &drv.HasFIMO,
			&drv.PreferredTractor, &drv.IsActive, &drv.CreatedAt, &drv.UpdatedAt, &unavailable); err != nil {
			return AvailabilityPartition{}, fmt.Errorf("scanning driver availability: %w", err)
		}
		if unavailable {
			part.Unavailable = append(part.Unavailable, drv)
		} else {
			part.Available = append(part.Available, drv)
		}
	}
	return part, rows.Err()
}
