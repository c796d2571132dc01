// Package mission implements the Mission entity, the central record of the
// planning domain (spec §3, §4.1).
package mission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Kind is the mission's delivery or pickup classification.
type Kind string

const (
	KindDelivery Kind = "delivery"
	KindPickup   Kind = "pickup"
)

// Status is the mission's lifecycle state.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Mission is the central entity of the planning domain (spec §3).
type Mission struct {
	ID          int64
	Handle      uuid.UUID
	Date        time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	RouteID     *int64
	DriverID    *int64
	SSTID       *int64
	Kind        Kind
	Origin      *string
	Destination *string
	Country     *string
	PalletCount int
	WeightKG    *float64
	Tractor     *string
	Trailer     *string
	Status      Status
	Note        *string
	CostSST     *float64
	Revenue     *float64
	CreatedBy   string
	UpdatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists Mission entities.
type Store struct {
	db store.DBTX
}

// NewStore creates a mission Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const columns = `id, handle, date, start_time, end_time, route_id, driver_id, sst_id, kind,
	origin, destination, country, pallet_count, weight_kg, tractor, trailer, status, note,
	cost_sst, revenue, created_by, updated_by, created_at, updated_at`

func scanMission(row pgx.Row) (Mission, error) {
	var m Mission
	err := row.Scan(&m.ID, &m.Handle, &m.Date, &m.StartTime, &m.EndTime, &m.RouteID, &m.DriverID,
		&m.SSTID, &m.Kind, &m.Origin, &m.Destination, &m.Country, &m.PalletCount, &m.WeightKG,
		&m.Tractor, &m.Trailer, &m.Status, &m.Note, &m.CostSST, &m.Revenue,
		&m.CreatedBy, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *Store) Get(ctx context.Context, id int64) (Mission, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM missions WHERE id = $1", columns), id)
	return scanMission(row)
}

// Filter holds list_missions query fields (spec §4.1).
type Filter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	DriverID *int64
	RouteID  *int64
	Status   *Status
	Limit    int
	Offset   int
}

// List returns missions matching the filter, ordered by (date desc,
// start_time asc) per spec §4.1.
func (s *Store) List(ctx context.Context, f Filter) ([]Mission, int, error) {
	where, args := buildWhere(f)

	var total int
	countQuery := fmt.Sprintf("SELECT count(*) FROM missions %s", where)
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting missions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	listQuery := fmt.Sprintf(
		"SELECT %s FROM missions %s ORDER BY date DESC, start_time ASC NULLS LAST LIMIT $%d OFFSET $%d",
		columns, where, len(args)-1, len(args))
	rows, err := s.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing missions: %w", err)
	}
	defer rows.Close()

	out, err := scanMissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.DateFrom != nil {
		add("date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("date <= $%d", *f.DateTo)
	}
	if f.DriverID != nil {
		add("driver_id = $%d", *f.DriverID)
	}
	if f.RouteID != nil {
		add("route_id = $%d", *f.RouteID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanMissions(rows pgx.Rows) ([]Mission, error) {
	var out []Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ByDate returns every mission on date D, ordered by start_time
// nulls-last (spec §4.1 missions_by_date).
func (s *Store) ByDate(ctx context.Context, d time.Time) ([]Mission, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM missions WHERE date = $1 ORDER BY start_time ASC NULLS LAST", columns), d)
	if err != nil {
		return nil, fmt.Errorf("listing missions by date: %w", err)
	}
	defer rows.Close()
	return scanMissions(rows)
}

// CreateParams are the fields accepted when creating a mission.
type CreateParams struct {
	Date        time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	RouteID     *int64
	DriverID    *int64
	SSTID       *int64
	Kind        Kind
	Origin      *string
	Destination *string
	Country     *string
	PalletCount int
	WeightKG    *float64
	Tractor     *string
	Trailer     *string
	Status      Status
	Note        *string
	CostSST     *float64
	Revenue     *float64
}

func (s *Store) Create(ctx context.Context, p CreateParams, by string) (Mission, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO missions (handle, date, start_time, end_time, route_id, driver_id, sst_id, kind,
			origin, destination, country, pallet_count, weight_kg, tractor, trailer, status, note,
			cost_sst, revenue, created_by, updated_by, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $19, now(), now())
		RETURNING id`,
		p.Date, p.StartTime, p.EndTime, p.RouteID, p.DriverID, p.SSTID, p.Kind, p.Origin,
		p.Destination, p.Country, p.PalletCount, p.WeightKG, p.Tractor, p.Trailer, p.Status,
		p.Note, p.CostSST, p.Revenue, by,
	).Scan(&id)
	if err != nil {
		return Mission{}, err
	}
	return s.Get(ctx, id)
}

// BulkCreate inserts several missions in a single call (spec §4.1
// bulk_create_missions). Callers are expected to run this inside a
// transaction via store.WithTx when partial failure must roll back.
func (s *Store) BulkCreate(ctx context.Context, params []CreateParams, by string) ([]Mission, error) {
	out := make([]Mission, 0, len(params))
	for _, p := range params {
		m, err := s.Create(ctx, p, by)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// UpdateParams are the fields accepted when updating a mission.
type UpdateParams struct {
	Date        time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	RouteID     *int64
	DriverID    *int64
	SSTID       *int64
	Kind        Kind
	Origin      *string
	Destination *string
	Country     *string
	PalletCount int
	WeightKG    *float64
	Tractor     *string
	Trailer     *string
	Status      Status
	Note        *string
	CostSST     *float64
	Revenue     *float64
}

func (s *Store) Update(ctx context.Context, id int64, p UpdateParams, by string) (Mission, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE missions SET date = $2, start_time = $3, end_time = $4, route_id = $5, driver_id = $6,
			sst_id = $7, kind = $8, origin = $9, destination = $10, country = $11, pallet_count = $12,
			weight_kg = $13, tractor = $14, trailer = $15, status = $16, note = $17, cost_sst = $18,
			revenue = $19, updated_by = $20, updated_at = now()
		WHERE id = $1`,
		id, p.Date, p.StartTime, p.EndTime, p.RouteID, p.DriverID, p.SSTID, p.Kind, p.Origin,
		p.Destination, p.Country, p.PalletCount, p.WeightKG, p.Tractor, p.Trailer, p.Status,
		p.Note, p.CostSST, p.Revenue, by,
	)
	if err != nil {
		return Mission{}, err
	}
	if tag.RowsAffected() == 0 {
		return Mission{}, pgx.ErrNoRows
	}
	return s.Get(ctx, id)
}

// Delete hard-deletes a mission (spec §4.1 delete_mission).
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM missions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
