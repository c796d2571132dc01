// Package stats implements StatsSvc (spec §4.8): read-only aggregates over
// Store and AuditLog for the operational dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/freightplan/planningserver/internal/reqlog"
	"github.com/freightplan/planningserver/internal/store"
)

// Store runs the dashboard/table/activity aggregate queries directly
// against the domain tables, grounded on the teacher's stats/telemetry
// package's raw count/sum queries (no ORM, no generated query layer).
type Store struct {
	db     store.DBTX
	reqlog *reqlog.Store
}

// NewStore creates a stats Store.
func NewStore(db store.DBTX, reqlogStore *reqlog.Store) *Store {
	return &Store{db: db, reqlog: reqlogStore}
}

// Dashboard is the spec §4.8 dashboard aggregate.
type Dashboard struct {
	MissionsToday      int64  `json:"missions_today"`
	MissionsCreatedToday int64 `json:"missions_created_today"`
	MissionsModifiedToday int64 `json:"missions_modified_today"`
	ActiveRoutes       int64  `json:"active_routes"`
	ActiveDrivers      int64  `json:"active_drivers"`
	UserCount          int64  `json:"user_count"`
	RequestsToday      int64  `json:"requests_today"`
	ErrorsToday        int64  `json:"errors_today"`
	DatabaseSizeBytes  int64  `json:"database_size_bytes"`
}

// Dashboard computes the spec §4.8 dashboard snapshot. "database file size"
// is translated to Postgres's pg_database_size, since this module backs the
// single embedded relational store with a Postgres database rather than a
// literal file (see DESIGN.md).
func (s *Store) Dashboard(ctx context.Context) (Dashboard, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	var d Dashboard

	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM missions WHERE date = $1", today).Scan(&d.MissionsToday); err != nil {
		return d, fmt.Errorf("counting missions today: %w", err)
	}
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM missions WHERE created_at >= $1", today).Scan(&d.MissionsCreatedToday); err != nil {
		return d, fmt.Errorf("counting missions created today: %w", err)
	}
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM missions WHERE updated_at >= $1 AND updated_at <> created_at", today).Scan(&d.MissionsModifiedToday); err != nil {
		return d, fmt.Errorf("counting missions modified today: %w", err)
	}
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM routes WHERE is_active = true").Scan(&d.ActiveRoutes); err != nil {
		return d, fmt.Errorf("counting active routes: %w", err)
	}
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM drivers WHERE is_active = true").Scan(&d.ActiveDrivers); err != nil {
		return d, fmt.Errorf("counting active drivers: %w", err)
	}
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&d.UserCount); err != nil {
		return d, fmt.Errorf("counting users: %w", err)
	}

	requestsToday, err := s.reqlog.CountSince(ctx, today)
	if err != nil {
		return d, fmt.Errorf("counting requests today: %w", err)
	}
	d.RequestsToday = requestsToday

	errorsToday, err := s.reqlog.ErrorCountSince(ctx, today)
	if err != nil {
		return d, fmt.Errorf("counting errors today: %w", err)
	}
	d.ErrorsToday = errorsToday

	if err := s.db.QueryRow(ctx, "SELECT pg_database_size(current_database())").Scan(&d.DatabaseSizeBytes); err != nil {
		return d, fmt.Errorf("reading database size: %w", err)
	}

	return d, nil
}

// TableCount is one row of the table-row-counts aggregate.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

var countedTables = []string{
	"users", "roles", "sessions", "routes", "drivers", "driver_unavailabilities",
	"subcontractors", "subcontractor_tariffs", "pallet_revenues", "missions",
	"audit_log", "request_log",
}

// TableCounts returns a row count for every domain table.
func (s *Store) TableCounts(ctx context.Context) ([]TableCount, error) {
	out := make([]TableCount, 0, len(countedTables))
	for _, table := range countedTables {
		var n int64
		// table is drawn from the fixed countedTables list above, never from
		// request input, so this string-built query carries no injection risk.
		if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting rows in %s: %w", table, err)
		}
		out = append(out, TableCount{Table: table, Rows: n})
	}
	return out, nil
}

// UserStats is the spec §4.8 "user stats" aggregate for a single user.
type UserStats struct {
	Username        string     `json:"username"`
	RequestCount    int64      `json:"request_count"`
	ActionBreakdown []ActionCount `json:"action_breakdown"`
	LastActivity    *time.Time `json:"last_activity"`
}

// ActionCount is one row of a user's audit action breakdown.
type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// UserStats aggregates request volume and audit action breakdown for a
// single user.
func (s *Store) UserStats(ctx context.Context, username string) (UserStats, error) {
	u := UserStats{Username: username}

	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM request_log WHERE username = $1", username).Scan(&u.RequestCount); err != nil {
		return u, fmt.Errorf("counting user requests: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT action, count(*) AS n FROM audit_log WHERE username = $1
		GROUP BY action ORDER BY n DESC`, username)
	if err != nil {
		return u, fmt.Errorf("querying user action breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a ActionCount
		if err := rows.Scan(&a.Action, &a.Count); err != nil {
			return u, fmt.Errorf("scanning action count: %w", err)
		}
		u.ActionBreakdown = append(u.ActionBreakdown, a)
	}
	if err := rows.Err(); err != nil {
		return u, err
	}

	var last *time.Time
	if err := s.db.QueryRow(ctx, "SELECT max(created_at) FROM audit_log WHERE username = $1", username).Scan(&last); err != nil {
		return u, fmt.Errorf("reading last activity: %w", err)
	}
	u.LastActivity = last

	return u, nil
}
