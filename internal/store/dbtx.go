// Package store defines the small hand-written DBTX abstraction every
// domain Store is built on. The teacher's stores are generated by sqlc into
// an internal/db package; that generated package (and the .sql files that
// would produce it) are absent from the retrieval pack (see DESIGN.md).
// Rather than fabricate sqlc output, every Store here is hand-written raw
// SQL against this interface, following the shape the teacher itself uses
// directly for anything dynamic (filter/search queries).
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every Store method
// works unmodified whether called directly against the pool or inside a
// transaction opened by the request pipeline.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn inside a single database transaction, committing on
// success and rolling back on error or panic. This is the chokepoint for
// RequestPipeline step 4 ("Execute the Store operation inside a single
// transaction").
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// IsUniqueViolation reports whether err is a Postgres unique_violation
// (code 23505). Every domain store uses this to detect code/username
// collisions without duplicating pgconn handling per package.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
