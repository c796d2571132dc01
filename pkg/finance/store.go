// Package finance implements PalletRevenue and the financial aggregate
// queries over missions (spec §3 PalletRevenue, §4.1 finance_stats /
// monthly_stats / yearly_stats).
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// PalletRevenue is a per-destination revenue used to estimate mission
// revenue.
type PalletRevenue struct {
	ID          int64
	Destination string
	Country     *string
	PricePerPallet float64
	ValidFrom   *time.Time
	ValidTo     *time.Time
	CreatedAt   time.Time
}

// Store persists PalletRevenue entities and runs aggregate queries.
type Store struct {
	db store.DBTX
}

// NewStore creates a finance Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const revenueColumns = "id, destination, country, price_per_pallet, valid_from, valid_to, created_at"

func scanRevenue(row pgx.Row) (PalletRevenue, error) {
	var r PalletRevenue
	err := row.Scan(&r.ID, &r.Destination, &r.Country, &r.PricePerPallet, &r.ValidFrom, &r.ValidTo, &r.CreatedAt)
	return r, err
}

// RevenueParams are the fields accepted when creating a pallet revenue.
type RevenueParams struct {
	Destination    string
	Country        *string
	PricePerPallet float64
	ValidFrom      *time.Time
	ValidTo        *time.Time
}

func (s *Store) CreateRevenue(ctx context.Context, p RevenueParams) (PalletRevenue, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO pallet_revenues (destination, country, price_per_pallet, valid_from, valid_to, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id`,
		p.Destination, p.Country, p.PricePerPallet, p.ValidFrom, p.ValidTo,
	).Scan(&id)
	if err != nil {
		return PalletRevenue{}, err
	}
	row := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM pallet_revenues WHERE id = $1", revenueColumns), id)
	return scanRevenue(row)
}

func (s *Store) ListRevenues(ctx context.Context) ([]PalletRevenue, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT %s FROM pallet_revenues ORDER BY destination ASC", revenueColumns))
	if err != nil {
		return nil, fmt.Errorf("listing pallet revenues: %w", err)
	}
	defer rows.Close()

	var out []PalletRevenue
	for rows.Next() {
		r, err := scanRevenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pallet revenue: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRevenue(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM pallet_revenues WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountryStats is one row of finance_stats's country-grouped aggregate.
type CountryStats struct {
	Country    string  `json:"country"`
	Pallets    int64   `json:"pallets"`
	Revenue    float64 `json:"revenue"`
	SSTCost    float64 `json:"sst_cost"`
	Margin     float64 `json:"gross_margin"`
}

// FinanceStats sums pallets/revenue/sst_cost and computes gross margin over
// a date range, grouped by country (spec §4.1 finance_stats).
func (s *Store) FinanceStats(ctx context.Context, from, to time.Time) ([]CountryStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT coalesce(country, 'unknown') AS country,
			coalesce(sum(pallet_count), 0) AS pallets,
			coalesce(sum(revenue), 0) AS revenue,
			coalesce(sum(cost_sst), 0) AS sst_cost
		FROM missions
		WHERE date >= $1 AND date <= $2
		GROUP BY country
		ORDER BY country ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("computing finance stats: %w", err)
	}
	defer rows.Close()

	var out []CountryStats
	for rows.Next() {
		var c CountryStats
		if err := rows.Scan(&c.Country, &c.Pallets, &c.Revenue, &c.SSTCost); err != nil {
			return nil, fmt.Errorf("scanning finance stats: %w", err)
		}
		c.Margin = c.Revenue - c.SSTCost
		out = append(out, c)
	}
	return out, rows.Err()
}

// DayBucket is one row of monthly_stats's per-day aggregate.
type DayBucket struct {
	Day      int     `json:"day"`
	Missions int64   `json:"missions"`
	Revenue  float64 `json:"revenue"`
}

// MonthlyStats buckets mission counts and revenue per day of month y/m
// (spec §4.1 monthly_stats).
func (s *Store) MonthlyStats(ctx context.Context, year, month int) ([]DayBucket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT extract(day FROM date)::int AS day, count(*) AS missions, coalesce(sum(revenue), 0) AS revenue
		FROM missions
		WHERE extract(year FROM date) = $1 AND extract(month FROM date) = $2
		GROUP BY day
		ORDER BY day ASC`, year, month)
	if err != nil {
		return nil, fmt.Errorf("computing monthly stats: %w", err)
	}
	defer rows.Close()

	var out []DayBucket
	for rows.Next() {
		var b DayBucket
		if err := rows.Scan(&b.Day, &b.Missions, &b.Revenue); err != nil {
			return nil, fmt.Errorf("scanning monthly stats: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MonthBucket is one row of yearly_stats's per-month aggregate.
type MonthBucket struct {
	Month    int     `json:"month"`
	Missions int64   `json:"missions"`
	Revenue  float64 `json:"revenue"`
}

// YearlyStats buckets mission counts and revenue per month of year y
// (spec §4.1 yearly_stats).
func (s *Store) YearlyStats(ctx context.Context, year int) ([]MonthBucket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT extract(month FROM date)::int AS month, count(*) AS missions, coalesce(sum(revenue), 0) AS revenue
		FROM missions
		WHERE extract(year FROM date) = $1
		GROUP BY month
		ORDER BY month ASC`, year)
	if err != nil {
		return nil, fmt.Errorf("computing yearly stats: %w", err)
	}
	defer rows.Close()

	var out []MonthBucket
	for rows.Next() {
		var b MonthBucket
		if err := rows.Scan(&b.Month, &b.Missions, &b.Revenue); err != nil {
			return nil, fmt.Errorf("scanning yearly stats: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
