// Package sqlc is a hand-written, sqlc-shaped repository: typed Queries,
// *Params/row structs, and WithTx for participating in a caller-owned
// transaction. This is where the ON CONFLICT DO NOTHING / RETURNING /
// SKIP LOCKED / advisory-lock SQL lives.
package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so a Queries value
// built on the pool can be rebound onto a transaction via WithTx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the repository's entry point.
type Queries struct {
	db DBTX
}

// New builds a Queries bound to db (usually the shared *pgxpool.Pool).
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx, so a caller can compose several
// queries into one atomic unit of work.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
