package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/freightplan/planningserver/internal/store"
)

// Store is the read side of AuditLog: filtered, paginated queries over the
// audit_log table (spec §4.4).
type Store struct {
	db store.DBTX
}

// NewStore creates an audit query Store.
func NewStore(db store.DBTX) *Store {
	return &Store{db: db}
}

const recordColumns = "id, username, session_ref, action, entity_kind, entity_id, before, after, client_ip, created_at"

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.Username, &rec.SessionRef, &rec.Action, &rec.EntityKind,
		&rec.EntityID, &rec.Before, &rec.After, &rec.ClientIP, &rec.CreatedAt)
	return rec, err
}

// Filter holds the AuditLog query surface (spec §4.4): username
// (prefix-insensitive), action, date window, limit/offset.
type Filter struct {
	UsernamePrefix string
	Action         Action
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}

// ListFiltered returns audit records matching filter, newest first, plus the
// total count ignoring limit/offset.
func (s *Store) ListFiltered(ctx context.Context, f Filter) ([]Record, int, error) {
	var clauses []string
	var args []any
	n := 1

	if f.UsernamePrefix != "" {
		clauses = append(clauses, fmt.Sprintf("username ILIKE $%d", n))
		args = append(args, f.UsernamePrefix+"%")
		n++
	}
	if f.Action != "" {
		clauses = append(clauses, fmt.Sprintf("action = $%d", n))
		args = append(args, f.Action)
		n++
	}
	if f.From != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", n))
		args = append(args, *f.From)
		n++
	}
	if f.To != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", n))
		args = append(args, *f.To)
		n++
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM audit_log %s", where)
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit records: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	listArgs := append(append([]any{}, args...), limit, f.Offset)
	listSQL := fmt.Sprintf(
		"SELECT %s FROM audit_log %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		recordColumns, where, n, n+1,
	)

	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning audit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
