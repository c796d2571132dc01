package reqlog

import (
	"context"
	"fmt"
	"time"

	"github.com/freightplan/planningserver/internal/store"
)

// Store runs read-side aggregate queries over request_log for StatsSvc
// (spec §4.8 "API stats").
type Store struct {
	db store.DBTX
}

// NewStore creates a reqlog read Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

// CountSince returns the number of requests recorded since t.
func (s *Store) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM request_log WHERE created_at >= $1", t).Scan(&n)
	return n, err
}

// ErrorCountSince returns the number of requests with status >= 400
// recorded since t.
func (s *Store) ErrorCountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, "SELECT count(*) FROM request_log WHERE created_at >= $1 AND status_code >= 400", t).Scan(&n)
	return n, err
}

// PathStat is one row of the top-paths-by-count aggregate.
type PathStat struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// TopPaths returns the most frequently hit paths since t.
func (s *Store) TopPaths(ctx context.Context, t time.Time, limit int) ([]PathStat, error) {
	rows, err := s.db.Query(ctx, `
		SELECT path, count(*) AS n FROM request_log
		WHERE created_at >= $1
		GROUP BY path ORDER BY n DESC LIMIT $2`, t, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top paths: %w", err)
	}
	defer rows.Close()

	var out []PathStat
	for rows.Next() {
		var p PathStat
		if err := rows.Scan(&p.Path, &p.Count); err != nil {
			return nil, fmt.Errorf("scanning path stat: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StatusBucket is one row of the status-distribution aggregate.
type StatusBucket struct {
	StatusCode int   `json:"status_code"`
	Count      int64 `json:"count"`
}

// StatusDistribution returns request counts grouped by status code since t.
func (s *Store) StatusDistribution(ctx context.Context, t time.Time) ([]StatusBucket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status_code, count(*) AS n FROM request_log
		WHERE created_at >= $1
		GROUP BY status_code ORDER BY status_code ASC`, t)
	if err != nil {
		return nil, fmt.Errorf("querying status distribution: %w", err)
	}
	defer rows.Close()

	var out []StatusBucket
	for rows.Next() {
		var b StatusBucket
		if err := rows.Scan(&b.StatusCode, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning status bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AvgResponseMS returns the average response time over non-null durations
// since t (spec §4.8 "avg response time ms (over non-null)").
func (s *Store) AvgResponseMS(ctx context.Context, t time.Time) (float64, error) {
	var avg *float64
	err := s.db.QueryRow(ctx, `
		SELECT avg(response_time_ms) FROM request_log
		WHERE created_at >= $1 AND response_time_ms IS NOT NULL`, t).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// UserActivity is one row of the per-user activity aggregate.
type UserActivity struct {
	Username     string    `json:"username"`
	RequestCount int64     `json:"request_count"`
	LastSeen     time.Time `json:"last_seen"`
}

// ActivityByUser returns request counts and last-seen timestamps per user
// since t (spec §4.8 "activity per user over N days").
func (s *Store) ActivityByUser(ctx context.Context, t time.Time) ([]UserActivity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT username, count(*) AS n, max(created_at) AS last_seen
		FROM request_log
		WHERE created_at >= $1 AND username IS NOT NULL
		GROUP BY username ORDER BY n DESC`, t)
	if err != nil {
		return nil, fmt.Errorf("querying activity by user: %w", err)
	}
	defer rows.Close()

	var out []UserActivity
	for rows.Next() {
		var a UserActivity
		if err := rows.Scan(&a.Username, &a.RequestCount, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning user activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
